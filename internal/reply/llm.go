package reply

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"candidate-engine-go/internal/logger"
	"candidate-engine-go/internal/types"
)

// llmSystemPrompt 回复分类的系统提示词
// 要求模型只输出JSON，分类值限定在固定枚举内
const llmSystemPrompt = `You are an assistant that classifies candidate replies in a recruiting conversation.
Return ONLY a JSON object with this exact shape:
{
  "classification": "interested" | "not_interested" | "question" | "needs_clarification",
  "requires_human_review": boolean,
  "suggested_reply": string,
  "questions": [string],
  "extracted_fields": [{"name": string, "value": string, "confidence": number}]
}
Rules:
- "not_interested" only when the candidate clearly declines.
- "question" when the candidate asks something; set requires_human_review to true and draft a suggested_reply.
- "needs_clarification" when the candidate asks for more information about the outreach itself.
- extracted_fields may only use these names: %s.
- confidence is between 0 and 1. Omit fields you are not confident about.`

// llmReplyResult LLM返回的JSON结构
type llmReplyResult struct {
	Classification      string   `json:"classification"`
	RequiresHumanReview bool     `json:"requires_human_review"`
	SuggestedReply      string   `json:"suggested_reply"`
	Questions           []string `json:"questions"`
	ExtractedFields     []struct {
		Name       string  `json:"name"`
		Value      string  `json:"value"`
		Confidence float64 `json:"confidence"`
	} `json:"extracted_fields"`
}

// LLMClassifier 基于eino模型的回复分类器
type LLMClassifier struct {
	llmModel   model.ToolCallingChatModel
	timeout    time.Duration
	maxRetries int
	log        zerolog.Logger
}

var _ Classifier = (*LLMClassifier)(nil)

// LLMClassifierOption LLM分类器选项
type LLMClassifierOption func(*LLMClassifier)

// WithLLMTimeout 设置单次调用超时
func WithLLMTimeout(timeout time.Duration) LLMClassifierOption {
	return func(c *LLMClassifier) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithLLMMaxRetries 设置最大重试次数
func WithLLMMaxRetries(maxRetries int) LLMClassifierOption {
	return func(c *LLMClassifier) {
		if maxRetries >= 0 {
			c.maxRetries = maxRetries
		}
	}
}

// NewLLMClassifier 创建LLM回复分类器
func NewLLMClassifier(llmModel model.ToolCallingChatModel, opts ...LLMClassifierOption) (*LLMClassifier, error) {
	if llmModel == nil {
		return nil, fmt.Errorf("LLM模型不能为空")
	}
	c := &LLMClassifier{
		llmModel:   llmModel,
		timeout:    60 * time.Second,
		maxRetries: 2,
		log:        logger.Component("llm_classifier"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Classify 调用LLM对回复分类并提取字段
func (c *LLMClassifier) Classify(ctx context.Context, replyText string, askedFields []types.FieldKey) (*types.ReplyAnalysis, error) {
	if strings.TrimSpace(replyText) == "" {
		return nil, fmt.Errorf("回复文本为空")
	}

	keyNames := make([]string, 0, len(types.AllFieldKeys()))
	for _, key := range types.AllFieldKeys() {
		keyNames = append(keyNames, string(key))
	}
	systemContent := fmt.Sprintf(llmSystemPrompt, strings.Join(keyNames, ", "))

	userContent := replyText
	if len(askedFields) > 0 {
		asked := make([]string, 0, len(askedFields))
		for _, key := range askedFields {
			asked = append(asked, string(key))
		}
		userContent = fmt.Sprintf("Fields we previously asked the candidate about: %s\n\nCandidate reply:\n%s",
			strings.Join(asked, ", "), replyText)
	}

	response, err := c.callLLM(ctx, systemContent, userContent)
	if err != nil {
		return nil, err
	}

	return c.parseResponse(response, replyText, askedFields)
}

// callLLM 带重试的LLM调用
func (c *LLMClassifier) callLLM(ctx context.Context, systemContent, userContent string) (string, error) {
	messages := []*einoschema.Message{
		{Role: "system", Content: systemContent},
		{Role: "user", Content: userContent},
	}

	retryDelay := 2 * time.Second
	var response *einoschema.Message
	var err error

	for retry := 0; retry <= c.maxRetries; retry++ {
		if retry > 0 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("上下文已取消: %w", ctx.Err())
			case <-time.After(retryDelay):
				retryDelay *= 2
				c.log.Warn().Int("retry", retry).Msg("重试LLM回复分类调用")
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		response, err = c.llmModel.Generate(callCtx, messages)
		cancel()

		if err == nil {
			break
		}
		if !isRetryableError(err) || retry >= c.maxRetries {
			return "", fmt.Errorf("LLM Generate失败: %w", err)
		}
	}

	return response.Content, nil
}

// parseResponse 解析并校验LLM响应
// 枚举外的分类值视为解析失败，交由上层回退
func (c *LLMClassifier) parseResponse(response, replyText string, askedFields []types.FieldKey) (*types.ReplyAnalysis, error) {
	jsonStr := extractJSON(response)
	if jsonStr == "" {
		c.log.Warn().Str("response", truncateForLog(response, 200)).Msg("无法从LLM响应中提取有效的JSON")
		return nil, fmt.Errorf("无法从LLM响应中提取有效的JSON")
	}

	var result llmReplyResult
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return nil, fmt.Errorf("解析JSON失败: %w", err)
	}

	classification := types.ReplyClassification(result.Classification)
	switch classification {
	case types.ClassificationInterested, types.ClassificationNotInterested,
		types.ClassificationQuestion, types.ClassificationNeedsClarification:
	default:
		return nil, fmt.Errorf("LLM返回了未知的分类值: %q", result.Classification)
	}

	analysis := &types.ReplyAnalysis{
		Classification:      classification,
		RequiresHumanReview: result.RequiresHumanReview,
		SuggestedReply:      result.SuggestedReply,
		CandidateQuestions:  result.Questions,
	}
	// 问题类回复一律要求人工复核
	if classification == types.ClassificationQuestion {
		analysis.RequiresHumanReview = true
	}

	seen := make(map[types.FieldKey]bool)
	for _, field := range result.ExtractedFields {
		key := types.FieldKey(field.Name)
		if !types.IsValidFieldKey(key) || field.Value == "" {
			continue
		}
		analysis.ExtractedFields = append(analysis.ExtractedFields, types.ExtractedField{
			Name:          key,
			Value:         field.Value,
			Confidence:    clampConfidence(field.Confidence),
			RawExtraction: field.Value,
			Source:        types.SourceReply,
		})
		seen[key] = true
	}

	// 正则提取兜底，补上LLM没给出的字段
	for _, field := range ExtractFromReply(replyText, askedFields) {
		if !seen[field.Name] {
			analysis.ExtractedFields = append(analysis.ExtractedFields, field)
		}
	}

	return analysis, nil
}

// isRetryableError 判断错误是否应该重试
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host")
}

var jsonBlockPattern = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")

// extractJSON 从LLM响应中提取JSON，优先代码块，回退到花括号配对
func extractJSON(text string) string {
	matches := jsonBlockPattern.FindStringSubmatch(text)
	if len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}
	level := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			level++
		case '}':
			level--
			if level == 0 {
				return strings.TrimSpace(text[start : i+1])
			}
		}
	}
	return ""
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func truncateForLog(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// FallbackClassifier 先走LLM，失败时退回关键词分类
// LLM错误只记录，从不向上传播
type FallbackClassifier struct {
	primary  Classifier
	fallback Classifier
	log      zerolog.Logger
}

var _ Classifier = (*FallbackClassifier)(nil)

// NewFallbackClassifier 创建带回退的分类器
func NewFallbackClassifier(primary, fallback Classifier) *FallbackClassifier {
	return &FallbackClassifier{
		primary:  primary,
		fallback: fallback,
		log:      logger.Component("fallback_classifier"),
	}
}

// Classify 优先主分类器，出错时回退
func (c *FallbackClassifier) Classify(ctx context.Context, replyText string, askedFields []types.FieldKey) (*types.ReplyAnalysis, error) {
	if c.primary != nil {
		analysis, err := c.primary.Classify(ctx, replyText, askedFields)
		if err == nil {
			return analysis, nil
		}
		c.log.Warn().Err(err).Msg("主分类器失败，回退到关键词分类")
	}
	return c.fallback.Classify(ctx, replyText, askedFields)
}
