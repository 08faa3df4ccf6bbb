package extractor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"candidate-engine-go/internal/constants"
	"candidate-engine-go/internal/logger"
	"candidate-engine-go/internal/types"
)

// TextExtractor 文档文本提取器
// 先魔数探测格式，再按格式走策略链：PDF依次尝试文本层、Tika、OCR，
// 任一策略产出达到可用长度即停止；全部不足时提取失败
type TextExtractor struct {
	pdfStrategies []TextStrategy
	docxStrategy  TextStrategy
	imageStrategy TextStrategy
	minTextLength int
	log           zerolog.Logger
}

// Option 提取器配置选项
type Option func(*TextExtractor)

// WithPDFStrategies 设置PDF策略链，按优先级排列
func WithPDFStrategies(strategies ...TextStrategy) Option {
	return func(e *TextExtractor) {
		e.pdfStrategies = strategies
	}
}

// WithDOCXStrategy 设置DOCX提取策略
func WithDOCXStrategy(strategy TextStrategy) Option {
	return func(e *TextExtractor) {
		e.docxStrategy = strategy
	}
}

// WithImageStrategy 设置图片OCR策略
func WithImageStrategy(strategy TextStrategy) Option {
	return func(e *TextExtractor) {
		e.imageStrategy = strategy
	}
}

// WithMinTextLength 设置文本可用长度下限
func WithMinTextLength(n int) Option {
	return func(e *TextExtractor) {
		e.minTextLength = n
	}
}

// NewTextExtractor 创建文本提取器
func NewTextExtractor(options ...Option) *TextExtractor {
	e := &TextExtractor{
		minTextLength: constants.MinSufficientTextLength,
		log:           logger.Component("text_extractor"),
	}
	for _, option := range options {
		option(e)
	}
	return e
}

// Extract 从原始文档字节中提取文本
// 未知格式按全量策略链抢救，文本不足可用长度视为提取失败，
// 此时仍返回最长候选供上层记录排查
func (e *TextExtractor) Extract(ctx context.Context, data []byte) (*types.ExtractionResult, error) {
	startTime := time.Now()

	format := DetectFormat(data)
	result := &types.ExtractionResult{Format: format}

	switch format {
	case types.FormatHTML:
		e.log.Warn().Msg("检测到HTML内容，疑似下载到错误页而非简历")
		return result, ErrHTMLContent
	case types.FormatUnknown:
		// 魔数识别不了的内容按 PDF -> DOCX -> 图片OCR 的顺序抢救
		e.runChain(ctx, e.salvageStrategies(), data, result)
		if strings.TrimSpace(result.Text) == "" {
			return result, ErrUnsupportedFormat
		}
	case types.FormatText:
		result.Text = string(data)
		result.Strategy = "plain_text"
	case types.FormatPDF:
		e.runChain(ctx, e.pdfStrategies, data, result)
	case types.FormatDOCX:
		e.runChain(ctx, []TextStrategy{e.docxStrategy}, data, result)
	case types.FormatJPEG, types.FormatPNG:
		e.runChain(ctx, []TextStrategy{e.imageStrategy}, data, result)
	}

	usable := len(strings.TrimSpace(result.Text))
	if usable < e.minTextLength {
		result.Truncated = true
		e.log.Warn().
			Str("format", string(format)).
			Str("strategy", result.Strategy).
			Int("text_length", usable).
			Msg("所有策略产出均未达到可用长度")
		return result, fmt.Errorf("%w: 最长候选仅%d字符", ErrNoUsableText, usable)
	}

	e.log.Info().
		Str("format", string(format)).
		Str("strategy", result.Strategy).
		Bool("used_ocr", result.UsedOCR).
		Int("text_length", len(result.Text)).
		Dur("duration", time.Since(startTime)).
		Msg("文本提取完成")

	return result, nil
}

// salvageStrategies 未知格式的抢救链：全部PDF策略之后补DOCX与图片OCR
func (e *TextExtractor) salvageStrategies() []TextStrategy {
	strategies := make([]TextStrategy, 0, len(e.pdfStrategies)+2)
	strategies = append(strategies, e.pdfStrategies...)
	strategies = append(strategies, e.docxStrategy, e.imageStrategy)
	return strategies
}

// runChain 逐个尝试策略，首个达到可用长度的结果胜出
// 所有策略都不足时保留最长的候选文本
func (e *TextExtractor) runChain(ctx context.Context, strategies []TextStrategy, data []byte, result *types.ExtractionResult) {
	for _, strategy := range strategies {
		if strategy == nil {
			continue
		}

		text, err := strategy.Extract(ctx, data)
		if err != nil {
			e.log.Warn().Err(err).Str("strategy", strategy.Name()).Msg("提取策略失败，尝试下一策略")
			continue
		}

		if len(strings.TrimSpace(text)) >= e.minTextLength {
			result.Text = text
			result.Strategy = strategy.Name()
			result.UsedOCR = isOCRStrategy(strategy)
			return
		}

		e.log.Debug().
			Str("strategy", strategy.Name()).
			Int("text_length", len(text)).
			Msg("提取文本长度不足，尝试下一策略")

		if len(text) > len(result.Text) {
			result.Text = text
			result.Strategy = strategy.Name()
			result.UsedOCR = isOCRStrategy(strategy)
		}
	}
}

// isOCRStrategy 策略是否属于OCR路径
func isOCRStrategy(strategy TextStrategy) bool {
	switch strategy.(type) {
	case *PDFOCRStrategy, *ImageOCRStrategy:
		return true
	}
	return strings.Contains(strategy.Name(), "ocr")
}
