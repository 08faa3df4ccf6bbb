package extractor

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func grayImage(width, height int, value uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: value, G: value, B: value, A: 255})
		}
	}
	return img
}

// TestDenoiseRemovesSpeckle 中值滤波应抹掉孤立噪点
func TestDenoiseRemovesSpeckle(t *testing.T) {
	img := grayImage(5, 5, 255)
	img.SetNRGBA(2, 2, color.NRGBA{R: 0, G: 0, B: 0, A: 255}) // 白底上的单个黑噪点

	out := denoise(img)

	assert.EqualValues(t, 255, out.NRGBAAt(2, 2).R, "孤立黑点应被周围白色中值覆盖")
	assert.EqualValues(t, 255, out.NRGBAAt(0, 0).R, "背景应保持不变")
}

// TestDenoisePreservesSolidRegions 大块连续区域不应被滤波破坏
func TestDenoisePreservesSolidRegions(t *testing.T) {
	img := grayImage(6, 6, 30)
	out := denoise(img)

	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			assert.EqualValues(t, 30, out.NRGBAAt(x, y).R, "均匀区域的中值就是自身")
		}
	}
}

func TestMedianOf(t *testing.T) {
	assert.EqualValues(t, 5, medianOf([]uint8{9, 5, 1}))
	assert.EqualValues(t, 140, medianOf([]uint8{255, 0, 140, 140, 255, 0, 140, 1, 254}))
	assert.EqualValues(t, 7, medianOf([]uint8{7}))
}

// TestBinarizeThreshold 高于阈值的像素归白，其余归黑
func TestBinarizeThreshold(t *testing.T) {
	img := grayImage(2, 1, 200)
	img.SetNRGBA(1, 0, color.NRGBA{R: 80, G: 80, B: 80, A: 255})

	out := binarize(img, 140)

	assert.EqualValues(t, 255, out.NRGBAAt(0, 0).R)
	assert.EqualValues(t, 0, out.NRGBAAt(1, 0).R)
}
