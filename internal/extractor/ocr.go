package extractor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // 注册JPEG解码器
	"image/png"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	fitz "github.com/gen2brain/go-fitz"
	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog"

	"candidate-engine-go/internal/constants"
	"candidate-engine-go/internal/logger"
)

// OCRConfig OCR策略的运行参数
type OCRConfig struct {
	// Languages tesseract语言码，例如 eng, fra
	Languages []string
	// RenderDPI PDF页面栅格化分辨率
	RenderDPI int
	// MaxPages 单文档OCR页数上限，0表示不限制
	MaxPages int
	// Timeout 单文档OCR总时长上限，超时后保留已识别页面，0表示不限制
	Timeout time.Duration
}

// fillOCRDefaults 补齐未设置的参数
func (c *OCRConfig) fillDefaults() {
	if len(c.Languages) == 0 {
		c.Languages = constants.OCRLanguages
	}
	if c.RenderDPI == 0 {
		c.RenderDPI = constants.OCRRenderDPI
	}
}

// PDFOCRStrategy 扫描件PDF的OCR回退策略
// 逐页栅格化后做图像预处理再送入tesseract，页面文本按页序拼接
type PDFOCRStrategy struct {
	config OCRConfig
	log    zerolog.Logger
}

var _ TextStrategy = (*PDFOCRStrategy)(nil)

// NewPDFOCRStrategy 创建PDF OCR回退策略
func NewPDFOCRStrategy(config OCRConfig) *PDFOCRStrategy {
	config.fillDefaults()
	return &PDFOCRStrategy{
		config: config,
		log:    logger.Component("pdf_ocr"),
	}
}

// Name 实现TextStrategy接口
func (s *PDFOCRStrategy) Name() string {
	return "pdf_ocr"
}

// Extract 实现TextStrategy接口
// 单页失败只记录日志并跳过，保证能拿回其余页面的文本
func (s *PDFOCRStrategy) Extract(ctx context.Context, data []byte) (string, error) {
	startTime := time.Now()

	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", fmt.Errorf("打开PDF做栅格化失败: %w", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if s.config.MaxPages > 0 && pageCount > s.config.MaxPages {
		pageCount = s.config.MaxPages
	}

	var pages []string
	for i := 0; i < pageCount; i++ {
		if err := ctx.Err(); err != nil {
			s.log.Warn().Err(err).Int("page", i).Msg("OCR时间预算耗尽，保留已识别页面")
			break
		}

		img, err := doc.ImageDPI(i, float64(s.config.RenderDPI))
		if err != nil {
			s.log.Warn().Err(err).Int("page", i).Msg("页面栅格化失败，跳过")
			continue
		}

		pageText, err := recognizeImage(img, s.config.Languages)
		if err != nil {
			s.log.Warn().Err(err).Int("page", i).Msg("页面OCR失败，跳过")
			continue
		}
		pages = append(pages, pageText)
	}

	text := strings.Join(pages, "\n\n")
	s.log.Info().
		Int("pages", pageCount).
		Int("text_length", len(text)).
		Dur("duration", time.Since(startTime)).
		Msg("PDF OCR完成")
	return text, nil
}

// ImageOCRStrategy 图片简历（JPEG/PNG）的OCR提取策略
type ImageOCRStrategy struct {
	config OCRConfig
	log    zerolog.Logger
}

var _ TextStrategy = (*ImageOCRStrategy)(nil)

// NewImageOCRStrategy 创建图片OCR策略
func NewImageOCRStrategy(config OCRConfig) *ImageOCRStrategy {
	config.fillDefaults()
	return &ImageOCRStrategy{
		config: config,
		log:    logger.Component("image_ocr"),
	}
}

// Name 实现TextStrategy接口
func (s *ImageOCRStrategy) Name() string {
	return "image_ocr"
}

// Extract 实现TextStrategy接口
func (s *ImageOCRStrategy) Extract(ctx context.Context, data []byte) (string, error) {
	startTime := time.Now()

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("解码图片失败: %w", err)
	}

	text, err := recognizeImage(img, s.config.Languages)
	if err != nil {
		return "", err
	}

	s.log.Info().
		Int("text_length", len(text)).
		Dur("duration", time.Since(startTime)).
		Msg("图片OCR完成")
	return text, nil
}

// recognizeImage 预处理后送入tesseract识别
func recognizeImage(img image.Image, languages []string) (string, error) {
	processed := preprocessForOCR(img)

	var buf bytes.Buffer
	if err := png.Encode(&buf, processed); err != nil {
		return "", fmt.Errorf("编码预处理图像失败: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(languages...); err != nil {
		return "", fmt.Errorf("设置OCR语言失败: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("加载OCR图像失败: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR识别失败: %w", err)
	}
	return text, nil
}

// preprocessForOCR 针对简历扫描件的预处理管线
// 灰度 → 对比度增强 → 锐化 → 中值去噪 → 二值化，提高tesseract在低质量扫描上的命中率
func preprocessForOCR(img image.Image) image.Image {
	processed := imaging.Grayscale(img)
	processed = imaging.AdjustContrast(processed, constants.OCRContrastPercent)
	processed = imaging.Sharpen(processed, 1.0)
	processed = denoise(processed)
	return binarize(processed, constants.OCRBinarizeThreshold)
}

// denoise 3x3中值滤波，先压掉扫描噪点再二值化，避免椒盐噪点被阈值放大
func denoise(img *image.NRGBA) *image.NRGBA {
	bounds := img.Bounds()
	out := image.NewNRGBA(bounds)
	var window [9]uint8
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			n := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < bounds.Min.X || nx >= bounds.Max.X || ny < bounds.Min.Y || ny >= bounds.Max.Y {
						continue
					}
					// 灰度图三通道相同，取R即可
					window[n] = img.NRGBAAt(nx, ny).R
					n++
				}
			}
			m := medianOf(window[:n])
			out.SetNRGBA(x, y, color.NRGBA{R: m, G: m, B: m, A: 255})
		}
	}
	return out
}

// medianOf 插入排序取中值，窗口最多9个元素
func medianOf(values []uint8) uint8 {
	for i := 1; i < len(values); i++ {
		for j := i; j > 0 && values[j] < values[j-1]; j-- {
			values[j], values[j-1] = values[j-1], values[j]
		}
	}
	return values[len(values)/2]
}

// binarize 按固定灰度阈值二值化
func binarize(img *image.NRGBA, threshold uint8) *image.NRGBA {
	bounds := img.Bounds()
	out := image.NewNRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			// 灰度图三通道相同，取R即可
			c := img.NRGBAAt(x, y)
			v := uint8(0)
			if c.R > threshold {
				v = 255
			}
			out.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return out
}
