package extractor

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	docx "github.com/fumiama/go-docx"
	"github.com/rs/zerolog"

	"candidate-engine-go/internal/logger"
)

// DOCXStrategy Office Open XML文档的文本提取策略
// 按文档顺序拼接段落，表格单元格以" | "连接、行以换行分隔
type DOCXStrategy struct {
	log zerolog.Logger
}

var _ TextStrategy = (*DOCXStrategy)(nil)

// NewDOCXStrategy 创建DOCX提取策略
func NewDOCXStrategy() *DOCXStrategy {
	return &DOCXStrategy{
		log: logger.Component("docx"),
	}
}

// Name 实现TextStrategy接口
func (s *DOCXStrategy) Name() string {
	return "docx"
}

// Extract 实现TextStrategy接口
func (s *DOCXStrategy) Extract(ctx context.Context, data []byte) (string, error) {
	startTime := time.Now()

	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("解析DOCX文档失败: %w", err)
	}

	var sb strings.Builder
	for _, item := range doc.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			text := paragraphText(it)
			if strings.TrimSpace(text) != "" {
				sb.WriteString(text)
				sb.WriteString("\n")
			}
		case *docx.Table:
			sb.WriteString(tableText(it))
		}
	}

	text := sb.String()
	s.log.Debug().
		Int("text_length", len(text)).
		Dur("duration", time.Since(startTime)).
		Msg("DOCX提取完成")
	return text, nil
}

// paragraphText 拼接一个段落内全部Run的文本
func paragraphText(p *docx.Paragraph) string {
	var sb strings.Builder
	for _, child := range p.Children {
		switch c := child.(type) {
		case *docx.Run:
			sb.WriteString(runText(c))
		case *docx.Hyperlink:
			sb.WriteString(runText(&c.Run))
		}
	}
	return sb.String()
}

// runText 拼接一个Run内的文本节点
func runText(r *docx.Run) string {
	var sb strings.Builder
	for _, child := range r.Children {
		switch c := child.(type) {
		case *docx.Text:
			sb.WriteString(c.Text)
		case *docx.Tab:
			sb.WriteString("\t")
		}
	}
	return sb.String()
}

// tableText 将表格线性化为文本：单元格以" | "连接，行以换行分隔
func tableText(t *docx.Table) string {
	var sb strings.Builder
	for _, row := range t.TableRows {
		cells := make([]string, 0, len(row.TableCells))
		for _, cell := range row.TableCells {
			var cellText strings.Builder
			for _, p := range cell.Paragraphs {
				if cellText.Len() > 0 {
					cellText.WriteString(" ")
				}
				cellText.WriteString(paragraphText(p))
			}
			cells = append(cells, strings.TrimSpace(cellText.String()))
		}
		line := strings.TrimSpace(strings.Join(cells, " | "))
		if line != "" {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
