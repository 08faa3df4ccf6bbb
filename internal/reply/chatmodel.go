package reply

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"candidate-engine-go/internal/logger"
)

const (
	// defaultChatBaseURL OpenAI兼容的DashScope入口
	defaultChatBaseURL   = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	defaultChatModelName = "qwen-turbo"
	defaultChatTimeout   = 30 * time.Second
)

// chatCompletionRequest OpenAI兼容的chat completions请求体
type chatCompletionRequest struct {
	Model       string                `json:"model"`
	Messages    []*einoschema.Message `json:"messages"`
	Temperature *float64              `json:"temperature,omitempty"`
	MaxTokens   int                   `json:"max_tokens,omitempty"`
}

type chatCompletionChoice struct {
	Index        int    `json:"index"`
	FinishReason string `json:"finish_reason"`
	Message      struct {
		Role    string  `json:"role"`
		Content *string `json:"content"`
	} `json:"message"`
}

type chatCompletionResponse struct {
	ID      string                 `json:"id"`
	Model   string                 `json:"model"`
	Choices []chatCompletionChoice `json:"choices"`
}

// OpenAIChatModel 走OpenAI兼容HTTP接口的eino聊天模型
// 回复分类只需要纯文本补全，不做工具绑定
type OpenAIChatModel struct {
	apiKey      string
	modelName   string
	endpoint    string
	temperature *float64
	maxTokens   int
	httpClient  *http.Client
	log         zerolog.Logger
}

var _ model.ToolCallingChatModel = (*OpenAIChatModel)(nil)

// ChatModelOption 聊天模型选项
type ChatModelOption func(*OpenAIChatModel)

// WithChatTimeout 设置单次请求超时
func WithChatTimeout(timeout time.Duration) ChatModelOption {
	return func(m *OpenAIChatModel) {
		if timeout > 0 {
			m.httpClient.Timeout = timeout
		}
	}
}

// WithChatTemperature 设置采样温度
func WithChatTemperature(temperature float64) ChatModelOption {
	return func(m *OpenAIChatModel) {
		m.temperature = &temperature
	}
}

// WithChatMaxTokens 设置补全token上限
func WithChatMaxTokens(maxTokens int) ChatModelOption {
	return func(m *OpenAIChatModel) {
		if maxTokens > 0 {
			m.maxTokens = maxTokens
		}
	}
}

// NewOpenAIChatModel 创建OpenAI兼容的聊天模型客户端
func NewOpenAIChatModel(apiKey, baseURL, modelName string, opts ...ChatModelOption) (*OpenAIChatModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API密钥不能为空")
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultChatBaseURL
	}
	if strings.TrimSpace(modelName) == "" {
		modelName = defaultChatModelName
	}

	m := &OpenAIChatModel{
		apiKey:     apiKey,
		modelName:  modelName,
		endpoint:   strings.TrimRight(baseURL, "/") + "/chat/completions",
		httpClient: &http.Client{Timeout: defaultChatTimeout},
		log:        logger.Component("chat_model"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Generate 实现model.BaseChatModel接口
func (m *OpenAIChatModel) Generate(ctx context.Context, messages []*einoschema.Message, options ...model.Option) (*einoschema.Message, error) {
	reqPayload := chatCompletionRequest{
		Model:       m.modelName,
		Messages:    messages,
		Temperature: m.temperature,
		MaxTokens:   m.maxTokens,
	}

	jsonData, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("序列化请求体失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+m.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("发送HTTP请求失败: %w", err)
	}
	defer httpResp.Body.Close()

	bodyBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API请求失败，状态 %s: %s", httpResp.Status, string(bodyBytes))
	}

	var resp chatCompletionResponse
	if err := json.Unmarshal(bodyBytes, &resp); err != nil {
		return nil, fmt.Errorf("反序列化API响应失败: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("API响应不含任何选项: %s", string(bodyBytes))
	}

	choice := resp.Choices[0]
	content := ""
	if choice.Message.Content != nil {
		content = *choice.Message.Content
	}

	role := einoschema.RoleType(choice.Message.Role)
	if role == "" {
		role = einoschema.RoleType("assistant")
	}

	m.log.Debug().
		Str("model", m.modelName).
		Str("finish_reason", choice.FinishReason).
		Int("content_length", len(content)).
		Msg("聊天补全完成")

	return &einoschema.Message{Role: role, Content: content}, nil
}

// Stream 实现model.BaseChatModel接口，本客户端不支持流式输出
func (m *OpenAIChatModel) Stream(ctx context.Context, messages []*einoschema.Message, options ...model.Option) (*einoschema.StreamReader[*einoschema.Message], error) {
	return nil, fmt.Errorf("OpenAIChatModel不支持流式输出")
}

// WithTools 实现model.ToolCallingChatModel接口，回复分类不使用工具调用
func (m *OpenAIChatModel) WithTools(tools []*einoschema.ToolInfo) (model.ToolCallingChatModel, error) {
	return nil, fmt.Errorf("OpenAIChatModel不支持工具调用")
}
