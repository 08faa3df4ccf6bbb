package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"candidate-engine-go/internal/logger"
)

// TikaPDFStrategy 基于Apache Tika服务器的PDF提取策略
// 文本层路径失败或产出不足时的次级路径，对损坏或非标准PDF更宽容
type TikaPDFStrategy struct {
	// Tika服务器地址，例如 http://localhost:9998
	ServerURL string
	// HTTP客户端，可配置超时等参数
	Client *http.Client
	log    zerolog.Logger
}

// TikaOption 定义配置选项函数
type TikaOption func(*TikaPDFStrategy)

// WithTikaTimeout 配置HTTP客户端超时时间
func WithTikaTimeout(timeout time.Duration) TikaOption {
	return func(s *TikaPDFStrategy) {
		s.Client.Timeout = timeout
	}
}

// WithTikaClient 注入自定义HTTP客户端，主要用于测试
func WithTikaClient(client *http.Client) TikaOption {
	return func(s *TikaPDFStrategy) {
		s.Client = client
	}
}

var _ TextStrategy = (*TikaPDFStrategy)(nil)

// NewTikaPDFStrategy 创建一个新的Tika PDF提取策略
func NewTikaPDFStrategy(serverURL string, options ...TikaOption) *TikaPDFStrategy {
	strategy := &TikaPDFStrategy{
		ServerURL: serverURL,
		Client: &http.Client{
			Timeout: 60 * time.Second,
		},
		log: logger.Component("pdf_tika"),
	}

	for _, option := range options {
		option(strategy)
	}

	return strategy
}

// Name 实现TextStrategy接口
func (s *TikaPDFStrategy) Name() string {
	return "pdf_tika"
}

// Extract 实现TextStrategy接口，将PDF交给Tika服务器做纯文本提取
func (s *TikaPDFStrategy) Extract(ctx context.Context, data []byte) (string, error) {
	startTime := time.Now()

	url := fmt.Sprintf("%s/tika", s.ServerURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("Accept", "text/plain")

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("发送请求到Tika服务器失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("tika服务器返回错误状态码: %d", resp.StatusCode)
	}

	textBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取Tika响应失败: %w", err)
	}

	s.log.Debug().
		Int("text_length", len(textBytes)).
		Dur("duration", time.Since(startTime)).
		Msg("Tika提取完成")
	return string(textBytes), nil
}
