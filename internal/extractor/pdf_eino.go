package extractor

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
	"github.com/rs/zerolog"

	"candidate-engine-go/internal/logger"
)

// EinoPDFStrategy 基于Eino PDF Parser的文本层提取策略
// 文本型PDF的首选路径，扫描件在这里只会得到空文本
type EinoPDFStrategy struct {
	parser  *pdf.PDFParser
	timeout time.Duration
	log     zerolog.Logger
}

// EinoPDFOption PDF文本层策略的配置选项
type EinoPDFOption func(*EinoPDFStrategy)

// WithEinoTimeout 配置单次解析超时
func WithEinoTimeout(timeout time.Duration) EinoPDFOption {
	return func(s *EinoPDFStrategy) {
		s.timeout = timeout
	}
}

var _ TextStrategy = (*EinoPDFStrategy)(nil)

// NewEinoPDFStrategy 初始化文本层提取策略
// 不按页面分割，以获取整个文档的连续文本
func NewEinoPDFStrategy(ctx context.Context, options ...EinoPDFOption) (*EinoPDFStrategy, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{
		ToPages: false,
	})
	if err != nil {
		return nil, fmt.Errorf("创建Eino PDF解析器失败: %w", err)
	}

	strategy := &EinoPDFStrategy{
		parser:  p,
		timeout: 30 * time.Second,
		log:     logger.Component("pdf_text_layer"),
	}

	for _, option := range options {
		option(strategy)
	}

	return strategy, nil
}

// Name 实现TextStrategy接口
func (s *EinoPDFStrategy) Name() string {
	return "pdf_text_layer"
}

// Extract 实现TextStrategy接口，提取PDF的嵌入文本层
func (s *EinoPDFStrategy) Extract(ctx context.Context, data []byte) (string, error) {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	docs, err := s.parser.Parse(ctx, bytes.NewReader(data),
		einoParser.WithURI("resume.pdf"),
	)
	if err != nil {
		return "", fmt.Errorf("PDF文本层解析失败: %w", err)
	}
	if len(docs) == 0 {
		return "", nil
	}

	var sb strings.Builder
	for i, doc := range docs {
		sb.WriteString(doc.Content)
		if i < len(docs)-1 {
			sb.WriteString("\n\n")
		}
	}

	text := sb.String()
	s.log.Debug().
		Int("text_length", len(text)).
		Dur("duration", time.Since(startTime)).
		Msg("PDF文本层提取完成")
	return text, nil
}
