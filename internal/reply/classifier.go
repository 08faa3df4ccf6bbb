package reply

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"candidate-engine-go/internal/logger"
	"candidate-engine-go/internal/types"
)

// Classifier 回复意图分类器
type Classifier interface {
	// Classify 对一条候选人回复做意图分类与字段提取
	// askedFields是上一条外发消息中追问过的字段，用于定向提取
	Classify(ctx context.Context, replyText string, askedFields []types.FieldKey) (*types.ReplyAnalysis, error)
}

// 关键词组，按优先级检查：拒绝 > 提问 > 澄清 > 确认
var (
	declineKeywords = []string{"not interested", "no thanks", "pass", "decline"}

	questionKeywords = []string{
		"what", "when", "how", "why", "who", "which",
		"salary", "compensation", "package", "pay", "benefits",
		"remote", "hybrid", "location",
	}

	clarificationKeywords = []string{"clarif", "more info"}

	affirmativeKeywords = []string{"yes", "interested", "available", "sure"}

	compensationTopics = []string{"salary", "compensation", "pay", "package"}
	arrangementTopics  = []string{"remote", "hybrid", "office"}
	roleTopics         = []string{"role", "responsibilities", "job", "position"}
)

// 提问子话题的建议回复
const (
	suggestedReplyCompensation = "Thanks for asking! Compensation for this role is competitive and depends on experience. A member of our team will follow up with the specific range shortly."
	suggestedReplyArrangement  = "Great question! We offer flexible work arrangements for this role. Our team will share the details of the remote/hybrid policy with you shortly."
	suggestedReplyRole         = "Happy to elaborate! A member of our team will follow up with a detailed overview of the role and its responsibilities."
	suggestedReplyGeneric      = "Thanks for your question! A member of our team will get back to you with more details shortly."
)

// KeywordClassifier 确定性的关键词分类器
// 对任意输入都能给出结论，也是LLM后端失败时的兜底
type KeywordClassifier struct {
	log zerolog.Logger
}

var _ Classifier = (*KeywordClassifier)(nil)

// NewKeywordClassifier 创建关键词分类器
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		log: logger.Component("keyword_classifier"),
	}
}

// Classify 实现Classifier接口
// 分类优先级：拒绝 > 提问 > 澄清 > 确认 > 默认有意向
// 提问一律标记需人工审核，建议回复按子话题选取
func (c *KeywordClassifier) Classify(ctx context.Context, replyText string, askedFields []types.FieldKey) (*types.ReplyAnalysis, error) {
	lower := strings.ToLower(replyText)

	analysis := &types.ReplyAnalysis{
		ExtractedFields: ExtractFromReply(replyText, askedFields),
	}

	switch {
	case matchesAny(lower, declineKeywords):
		analysis.Classification = types.ClassificationNotInterested

	case strings.Contains(lower, "?") || matchesAny(lower, questionKeywords):
		analysis.Classification = types.ClassificationQuestion
		analysis.RequiresHumanReview = true
		analysis.SuggestedReply = suggestedReplyFor(lower)
		analysis.CandidateQuestions = extractQuestions(replyText)

	case matchesAny(lower, clarificationKeywords):
		analysis.Classification = types.ClassificationNeedsClarification

	case matchesAny(lower, affirmativeKeywords):
		analysis.Classification = types.ClassificationInterested

	default:
		analysis.Classification = types.ClassificationInterested
	}

	c.log.Debug().
		Str("classification", string(analysis.Classification)).
		Bool("requires_review", analysis.RequiresHumanReview).
		Int("extracted_fields", len(analysis.ExtractedFields)).
		Msg("回复分类完成")

	return analysis, nil
}

// suggestedReplyFor 按提问子话题选取建议回复
func suggestedReplyFor(lower string) string {
	switch {
	case matchesAny(lower, compensationTopics):
		return suggestedReplyCompensation
	case matchesAny(lower, arrangementTopics):
		return suggestedReplyArrangement
	case matchesAny(lower, roleTopics):
		return suggestedReplyRole
	default:
		return suggestedReplyGeneric
	}
}

// extractQuestions 取出回复中以问号结尾的句子
func extractQuestions(text string) []string {
	var questions []string
	start := 0
	for i, r := range text {
		if r == '?' {
			question := strings.TrimSpace(text[start : i+1])
			if question != "" {
				questions = append(questions, question)
			}
			start = i + 1
		} else if r == '.' || r == '!' || r == '\n' {
			start = i + 1
		}
	}
	return questions
}

// matchesAny 关键词命中检查
// 含空格的短语用子串匹配，单词用全词匹配，避免"pass"误中"passion"
func matchesAny(lower string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(keyword, " ") {
			if strings.Contains(lower, keyword) {
				return true
			}
			continue
		}
		if containsWord(lower, keyword) {
			return true
		}
	}
	return false
}

func containsWord(lowerText, word string) bool {
	idx := 0
	for {
		pos := strings.Index(lowerText[idx:], word)
		if pos < 0 {
			return false
		}
		start := idx + pos
		end := start + len(word)
		beforeOK := start == 0 || !isWordChar(lowerText[start-1])
		afterOK := end == len(lowerText) || !isWordChar(lowerText[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
