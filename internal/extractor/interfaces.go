package extractor

import (
	"context"
	"errors"
)

// TextStrategy 一种文本提取策略
// 同一格式可以注册多个策略，提取器按优先级逐个尝试
type TextStrategy interface {
	// Name 策略名，用于日志和提取结果回溯
	Name() string

	// Extract 从原始文档字节中提取纯文本
	// 返回空文本不算错误，由上层判断是否达到可用长度
	Extract(ctx context.Context, data []byte) (string, error)
}

var (
	// ErrUnsupportedFormat 魔数探测无法识别的格式
	ErrUnsupportedFormat = errors.New("不支持的文档格式")

	// ErrHTMLContent 下载到的是HTML页面而非简历文档
	ErrHTMLContent = errors.New("文档内容为HTML，疑似下载到错误页")

	// ErrNoUsableText 所有策略都未能提取出达到可用长度的文本
	ErrNoUsableText = errors.New("未能提取出可用文本")
)
