package reply

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candidate-engine-go/internal/types"
)

// mockLLMModel 模拟eino聊天模型
type mockLLMModel struct {
	mockResponse string
	err          error
	callCount    int
}

// Generate 实现model.ChatModel接口
func (m *mockLLMModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	m.callCount++
	if m.err != nil {
		return nil, m.err
	}
	return &schema.Message{
		Role:    "assistant",
		Content: m.mockResponse,
	}, nil
}

// Stream 实现model.ChatModel接口
func (m *mockLLMModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, nil
}

// BindTools 实现model.ChatModel接口
func (m *mockLLMModel) BindTools(tools []*schema.ToolInfo) error {
	return nil
}

// WithTools 实现model.ToolCallingChatModel接口
func (m *mockLLMModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

func TestLLMClassifierParsesResponse(t *testing.T) {
	mockLLM := &mockLLMModel{
		mockResponse: "```json\n{\"classification\": \"question\", \"requires_human_review\": false, \"suggested_reply\": \"We will follow up with the range.\", \"questions\": [\"What is the salary?\"], \"extracted_fields\": [{\"name\": \"location\", \"value\": \"Denver\", \"confidence\": 0.9}]}\n```",
	}

	classifier, err := NewLLMClassifier(mockLLM)
	require.NoError(t, err, "创建LLM分类器不应该返回错误")

	analysis, err := classifier.Classify(context.Background(), "What is the salary? I'm based in Denver.", nil)
	require.NoError(t, err, "分类不应该返回错误")

	assert.Equal(t, types.ClassificationQuestion, analysis.Classification, "应取用LLM给出的分类")
	assert.True(t, analysis.RequiresHumanReview, "问题分类即使LLM返回false也要强制人工复核")
	assert.Equal(t, "We will follow up with the range.", analysis.SuggestedReply, "建议回复应取自LLM")

	location := lookupField(analysis.ExtractedFields, types.FieldLocation)
	require.NotNil(t, location, "应携带LLM提取的location字段")
	assert.Equal(t, "Denver", location.Value, "字段值应取自LLM")
	assert.Equal(t, types.SourceReply, location.Source, "LLM提取的字段来源必须标为reply")
}

func TestLLMClassifierRejectsUnknownClassification(t *testing.T) {
	mockLLM := &mockLLMModel{
		mockResponse: `{"classification": "maybe_later", "requires_human_review": false}`,
	}

	classifier, err := NewLLMClassifier(mockLLM)
	require.NoError(t, err, "创建LLM分类器不应该返回错误")

	_, err = classifier.Classify(context.Background(), "I'll think about it.", nil)
	assert.Error(t, err, "枚举外的分类值应报错交由上层回退")
}

func TestLLMClassifierRejectsNonJSONResponse(t *testing.T) {
	mockLLM := &mockLLMModel{
		mockResponse: "Sorry, I cannot help with that.",
	}

	classifier, err := NewLLMClassifier(mockLLM)
	require.NoError(t, err, "创建LLM分类器不应该返回错误")

	_, err = classifier.Classify(context.Background(), "Sounds good.", nil)
	assert.Error(t, err, "无法提取JSON时应报错")
}

func TestLLMClassifierFiltersInvalidFieldKeys(t *testing.T) {
	mockLLM := &mockLLMModel{
		mockResponse: `{"classification": "interested", "extracted_fields": [{"name": "favorite_color", "value": "blue", "confidence": 0.9}, {"name": "location", "value": "", "confidence": 0.9}]}`,
	}

	classifier, err := NewLLMClassifier(mockLLM)
	require.NoError(t, err, "创建LLM分类器不应该返回错误")

	analysis, err := classifier.Classify(context.Background(), "Sounds good, count me in.", nil)
	require.NoError(t, err, "分类不应该返回错误")

	assert.Nil(t, lookupField(analysis.ExtractedFields, "favorite_color"), "枚举外的字段名应被丢弃")
	assert.Nil(t, lookupField(analysis.ExtractedFields, types.FieldLocation), "空值字段应被丢弃")
}

func TestLLMClassifierSupplementsRegexExtraction(t *testing.T) {
	// LLM没给出的字段由正则提取兜底补齐
	mockLLM := &mockLLMModel{
		mockResponse: `{"classification": "interested"}`,
	}

	classifier, err := NewLLMClassifier(mockLLM)
	require.NoError(t, err, "创建LLM分类器不应该返回错误")

	analysis, err := classifier.Classify(context.Background(), "Yes! I'd need to give 2 weeks notice.", nil)
	require.NoError(t, err, "分类不应该返回错误")

	notice := lookupField(analysis.ExtractedFields, types.FieldNoticePeriod)
	require.NotNil(t, notice, "正则兜底应补上通知期字段")
	assert.Equal(t, "2 weeks", notice.Value, "通知期应归一化")
}

func TestLLMClassifierRejectsEmptyReply(t *testing.T) {
	classifier, err := NewLLMClassifier(&mockLLMModel{})
	require.NoError(t, err, "创建LLM分类器不应该返回错误")

	_, err = classifier.Classify(context.Background(), "   ", nil)
	assert.Error(t, err, "空回复应报错")
}

func TestNewLLMClassifierRequiresModel(t *testing.T) {
	_, err := NewLLMClassifier(nil)
	assert.Error(t, err, "缺少模型时应报错")
}

func TestFallbackClassifierRecoversFromLLMError(t *testing.T) {
	mockLLM := &mockLLMModel{err: errors.New("invalid api key")}
	primary, err := NewLLMClassifier(mockLLM, WithLLMMaxRetries(0))
	require.NoError(t, err, "创建LLM分类器不应该返回错误")

	classifier := NewFallbackClassifier(primary, NewKeywordClassifier())

	analysis, err := classifier.Classify(context.Background(), "Not interested, thanks.", nil)
	require.NoError(t, err, "回退分类器不应该向上传播LLM错误")

	assert.Equal(t, types.ClassificationNotInterested, analysis.Classification, "回退结果应来自关键词分类器")
	assert.Equal(t, 1, mockLLM.callCount, "不可重试错误只应调用LLM一次")
}

func TestFallbackClassifierPrefersPrimary(t *testing.T) {
	mockLLM := &mockLLMModel{
		mockResponse: `{"classification": "needs_clarification"}`,
	}
	primary, err := NewLLMClassifier(mockLLM)
	require.NoError(t, err, "创建LLM分类器不应该返回错误")

	classifier := NewFallbackClassifier(primary, NewKeywordClassifier())

	analysis, err := classifier.Classify(context.Background(), "Tell me a bit about the team.", nil)
	require.NoError(t, err, "分类不应该返回错误")

	assert.Equal(t, types.ClassificationNeedsClarification, analysis.Classification, "主分类器成功时应采用其结果")
}

func TestFallbackClassifierWithNilPrimary(t *testing.T) {
	classifier := NewFallbackClassifier(nil, NewKeywordClassifier())

	analysis, err := classifier.Classify(context.Background(), "Yes, I'm interested!", nil)
	require.NoError(t, err, "分类不应该返回错误")
	assert.Equal(t, types.ClassificationInterested, analysis.Classification, "无主分类器时直接使用兜底")
}
