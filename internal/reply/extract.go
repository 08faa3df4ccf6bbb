package reply

import (
	"regexp"
	"strings"

	"candidate-engine-go/internal/types"
)

// 回复文本字段提取的固定置信度
// 各模式的可靠性不同：URL几乎不会误报，薪资与通知期次之
const (
	confidenceReplyURL          = 0.95
	confidenceReplySalary       = 0.85
	confidenceReplyNoticePeriod = 0.80
	confidenceReplyLocation     = 0.85
)

var (
	// noticePeriodPattern "2 weeks notice"、"1 month"、"30 days" 等
	noticePeriodPattern = regexp.MustCompile(`(?i)\b(\d+)\s*(week|month|day)s?(?:\s*(?:of\s+)?notice)?\b`)
	// immediateAvailabilityPattern 立即到岗的说法
	immediateAvailabilityPattern = regexp.MustCompile(`(?i)\b(immediately|right away|asap)\b`)

	// salaryDollarPattern "$120,000"、"$120k" 样式
	salaryDollarPattern = regexp.MustCompile(`\$\s?\d[\d,]*(?:\.\d+)?\s?[kK]?`)
	// salaryKPattern "120k"、"120K" 样式
	salaryKPattern = regexp.MustCompile(`\b\d{2,3}\s?[kK]\b`)

	// replyURLPattern 回复中的URL
	replyURLPattern = regexp.MustCompile(`(?i)\bhttps?://\S+|\b(?:www\.)?(?:github\.com|gitlab\.com|behance\.net|dribbble\.com)/\S+`)
)

// professionalDomains 可作为作品集的专业站点域名
var professionalDomains = []string{
	"github.com", "gitlab.com", "behance.net", "dribbble.com",
	".dev", ".io", ".me", "portfolio",
}

// knownCities 命名城市表，回复中的地点提取只认这些
var knownCities = []string{
	"New York", "San Francisco", "Los Angeles", "Seattle", "Austin",
	"Boston", "Chicago", "Denver", "Atlanta", "Miami", "Dallas",
	"Portland", "San Diego", "Washington", "Remote",
	"London", "Toronto", "Vancouver", "Berlin", "Paris", "Amsterdam",
	"Dublin", "Singapore", "Sydney", "Tokyo", "Bangalore",
}

// ExtractFromReply 从回复文本中提取字段观测
// 每种模式固定置信度，来源一律标记为reply
// askedFields用于限定歧义模式的落点：裸数字+k只在追问过薪资时算薪资
func ExtractFromReply(text string, askedFields []types.FieldKey) []types.ExtractedField {
	var fields []types.ExtractedField
	asked := make(map[types.FieldKey]bool, len(askedFields))
	for _, key := range askedFields {
		asked[key] = true
	}

	if value, raw := extractNoticePeriod(text); value != "" {
		fields = append(fields, replyField(types.FieldNoticePeriod, value, raw, confidenceReplyNoticePeriod))
	} else if raw := immediateAvailabilityPattern.FindString(text); raw != "" && asked[types.FieldNoticePeriod] {
		fields = append(fields, replyField(types.FieldNoticePeriod, "immediately", raw, confidenceReplyNoticePeriod))
	}

	if value, raw := extractSalary(text, asked[types.FieldExpectedSalary]); value != "" {
		fields = append(fields, replyField(types.FieldExpectedSalary, value, raw, confidenceReplySalary))
	}

	if city := extractKnownCity(text); city != "" {
		fields = append(fields, replyField(types.FieldLocation, city, city, confidenceReplyLocation))
	}

	if url := extractProfessionalURL(text); url != "" {
		fields = append(fields, replyField(types.FieldPortfolioURL, url, url, confidenceReplyURL))
	}

	return fields
}

func replyField(key types.FieldKey, value, raw string, confidence float64) types.ExtractedField {
	return types.ExtractedField{
		Name:          key,
		Value:         value,
		Confidence:    confidence,
		RawExtraction: raw,
		Source:        types.SourceReply,
	}
}

// extractNoticePeriod 归一化为"N unit(s)"形式，例如"2 weeks"
func extractNoticePeriod(text string) (value, raw string) {
	groups := noticePeriodPattern.FindStringSubmatch(text)
	if len(groups) < 3 {
		return "", ""
	}
	// 没有notice字样时要求上下文出现notice/available相关词，避免把"3 years"之类当通知期
	lower := strings.ToLower(text)
	if !strings.Contains(strings.ToLower(groups[0]), "notice") &&
		!strings.Contains(lower, "notice") &&
		!strings.Contains(lower, "start") &&
		!strings.Contains(lower, "available") {
		return "", ""
	}
	number := groups[1]
	unit := strings.ToLower(groups[2])
	if number != "1" {
		unit += "s"
	}
	return number + " " + unit, groups[0]
}

// extractSalary 提取期望薪资
// $前缀的金额总被接受；裸"120k"样式歧义较大，只在追问过薪资时接受
func extractSalary(text string, salaryAsked bool) (value, raw string) {
	if match := salaryDollarPattern.FindString(text); match != "" {
		return strings.TrimSpace(match), match
	}
	if salaryAsked {
		if match := salaryKPattern.FindString(text); match != "" {
			return strings.TrimSpace(match), match
		}
	}
	return "", ""
}

// extractKnownCity 命名城市匹配，按表内顺序取首个命中
func extractKnownCity(text string) string {
	lower := strings.ToLower(text)
	for _, city := range knownCities {
		if containsWord(lower, strings.ToLower(city)) {
			return city
		}
	}
	return ""
}

// extractProfessionalURL 过滤到专业站点域名的URL
func extractProfessionalURL(text string) string {
	matches := replyURLPattern.FindAllString(text, -1)
	for _, match := range matches {
		lower := strings.ToLower(match)
		for _, domain := range professionalDomains {
			if strings.Contains(lower, domain) {
				return strings.TrimRight(match, ".,;!)")
			}
		}
	}
	return ""
}
