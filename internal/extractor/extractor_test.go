package extractor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candidate-engine-go/internal/types"
)

// fakeStrategy 可编程的提取策略，用于验证回退链行为
type fakeStrategy struct {
	name   string
	text   string
	err    error
	called bool
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Extract(ctx context.Context, data []byte) (string, error) {
	f.called = true
	return f.text, f.err
}

var pdfSample = []byte("%PDF-1.7 sample document bytes")

// TestExtractStopsAtFirstSufficientStrategy 首个产出达到可用长度的策略胜出，后续策略不再调用
func TestExtractStopsAtFirstSufficientStrategy(t *testing.T) {
	longText := strings.Repeat("张三 后端工程师 ", 200) // 远超100字符

	primary := &fakeStrategy{name: "pdf_text_layer", text: longText}
	secondary := &fakeStrategy{name: "pdf_tika", text: "should not be used"}
	ocr := &fakeStrategy{name: "pdf_ocr", text: "should not be used"}

	e := NewTextExtractor(WithPDFStrategies(primary, secondary, ocr))

	result, err := e.Extract(context.Background(), pdfSample)
	require.NoError(t, err)

	assert.Equal(t, types.FormatPDF, result.Format)
	assert.Equal(t, "pdf_text_layer", result.Strategy)
	assert.Equal(t, longText, result.Text)
	assert.False(t, result.UsedOCR)
	assert.False(t, result.Truncated)
	assert.False(t, secondary.called, "主策略已产出足量文本时不应调用次级策略")
	assert.False(t, ocr.called, "主策略已产出足量文本时不应调用OCR")
}

// TestExtractFallsThroughToOCR 文本层与Tika产出不足时回退到OCR
func TestExtractFallsThroughToOCR(t *testing.T) {
	ocrText := strings.Repeat("OCR recovered resume text. ", 20)

	primary := &fakeStrategy{name: "pdf_text_layer", text: ""} // 扫描件无文本层
	secondary := &fakeStrategy{name: "pdf_tika", err: errors.New("tika不可达")}
	ocr := &fakeStrategy{name: "pdf_ocr", text: ocrText}

	e := NewTextExtractor(WithPDFStrategies(primary, secondary, ocr))

	result, err := e.Extract(context.Background(), pdfSample)
	require.NoError(t, err)

	assert.Equal(t, "pdf_ocr", result.Strategy)
	assert.Equal(t, ocrText, result.Text)
	assert.True(t, result.UsedOCR)
	assert.False(t, result.Truncated)
	assert.True(t, primary.called)
	assert.True(t, secondary.called)
}

// TestExtractAllStrategiesInsufficientFails 全部策略不足可用长度时提取失败，结果仍带最长候选供排查
func TestExtractAllStrategiesInsufficientFails(t *testing.T) {
	primary := &fakeStrategy{name: "pdf_text_layer", text: "short"}
	secondary := &fakeStrategy{name: "pdf_tika", text: "slightly longer but still short"}
	ocr := &fakeStrategy{name: "pdf_ocr", text: "tiny"}

	e := NewTextExtractor(WithPDFStrategies(primary, secondary, ocr))

	result, err := e.Extract(context.Background(), pdfSample)
	require.Error(t, err, "不足100字符的产出不应视为提取成功")
	assert.ErrorIs(t, err, ErrNoUsableText)

	assert.Equal(t, "pdf_tika", result.Strategy, "应保留最长的候选文本")
	assert.Equal(t, "slightly longer but still short", result.Text)
	assert.True(t, result.Truncated)
}

// TestExtractInsufficientPlainTextFails 纯文本碎片同样受可用长度约束
func TestExtractInsufficientPlainTextFails(t *testing.T) {
	e := NewTextExtractor()

	result, err := e.Extract(context.Background(), []byte("John Doe john@example.com"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoUsableText)
	assert.True(t, result.Truncated)
}

// TestExtractHTMLContent HTML内容应报误下载错误
func TestExtractHTMLContent(t *testing.T) {
	e := NewTextExtractor()

	result, err := e.Extract(context.Background(), []byte("<html><body>Please log in</body></html>"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHTMLContent)
	assert.Equal(t, types.FormatHTML, result.Format)
}

// TestExtractUnknownFormatFailsWhenNothingSalvaged 未知格式抢救无果时报不支持错误
func TestExtractUnknownFormatFailsWhenNothingSalvaged(t *testing.T) {
	e := NewTextExtractor()

	result, err := e.Extract(context.Background(), []byte{0x00, 0x01, 0x02, 0x03, 0xFE, 0xFF, 0x00, 0x00})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Equal(t, types.FormatUnknown, result.Format)
}

// TestExtractUnknownFormatSalvagedByChain 未知格式按全量策略链抢救，任一策略产出足量文本即成功
func TestExtractUnknownFormatSalvagedByChain(t *testing.T) {
	salvaged := strings.Repeat("recovered resume content without a magic prefix ", 5)
	pdf := &fakeStrategy{name: "pdf_text_layer", err: errors.New("不是PDF")}
	docxStrategy := &fakeStrategy{name: "docx", text: salvaged}

	e := NewTextExtractor(
		WithPDFStrategies(pdf),
		WithDOCXStrategy(docxStrategy),
	)

	result, err := e.Extract(context.Background(), []byte{0x00, 0x01, 0x02, 0x03, 0xFE, 0xFF})
	require.NoError(t, err, "抢救链产出足量文本时不应报错")

	assert.Equal(t, types.FormatUnknown, result.Format)
	assert.Equal(t, "docx", result.Strategy)
	assert.Equal(t, salvaged, result.Text)
	assert.True(t, pdf.called, "抢救链应先尝试PDF策略")
}

// TestExtractPlainText 纯文本载荷不需要任何提取策略
func TestExtractPlainText(t *testing.T) {
	e := NewTextExtractor()

	body := []byte("Jane Doe\nSenior Backend Engineer\njane@example.com\n+33 6 12 34 56 78\n" +
		"Experience: 8 years building distributed systems in Go and Python at Acme Corp.\n")
	result, err := e.Extract(context.Background(), body)
	require.NoError(t, err)
	assert.Equal(t, types.FormatText, result.Format)
	assert.Equal(t, string(body), result.Text)
	assert.Equal(t, "plain_text", result.Strategy)
	assert.False(t, result.UsedOCR)
}

// TestExtractImageRoutesToOCR 图片格式直接走OCR策略
func TestExtractImageRoutesToOCR(t *testing.T) {
	ocrText := strings.Repeat("name and contact details from a photographed resume ", 5)
	imageOCR := &fakeStrategy{name: "image_ocr", text: ocrText}

	e := NewTextExtractor(WithImageStrategy(imageOCR))

	jpegData := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10}
	result, err := e.Extract(context.Background(), jpegData)
	require.NoError(t, err)

	assert.Equal(t, types.FormatJPEG, result.Format)
	assert.Equal(t, "image_ocr", result.Strategy)
	assert.True(t, result.UsedOCR)
	assert.True(t, imageOCR.called)
}

// TestExtractDOCX DOCX格式走专用策略
func TestExtractDOCX(t *testing.T) {
	docxText := strings.Repeat("Experience: Backend Engineer at Acme Corp. ", 10)
	docxStrategy := &fakeStrategy{name: "docx", text: docxText}

	e := NewTextExtractor(WithDOCXStrategy(docxStrategy))

	data := append([]byte("PK\x03\x04"), []byte("[Content_Types].xml")...)
	result, err := e.Extract(context.Background(), data)
	require.NoError(t, err)

	assert.Equal(t, types.FormatDOCX, result.Format)
	assert.Equal(t, "docx", result.Strategy)
	assert.False(t, result.UsedOCR)
}
