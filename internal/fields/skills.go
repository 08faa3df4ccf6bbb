package fields

import (
	"sort"
	"strings"
)

// extractSkills 从文本中提取技能集合
// 三路合并：字典精确匹配、短弹点项、命中字典的首字母大写词
// 结果小写去重并排序，保证可复现
func extractSkills(text string) []string {
	found := make(map[string]bool)
	lower := strings.ToLower(text)

	for skill := range technicalSkills {
		if containsWord(lower, skill) {
			found[skill] = true
		}
	}
	for skill := range softSkills {
		if containsWord(lower, skill) {
			found[skill] = true
		}
	}

	// 技能分节常见的短弹点项
	for _, groups := range bulletLinePattern.FindAllStringSubmatch(text, -1) {
		item := strings.ToLower(strings.TrimSpace(groups[1]))
		if item != "" && len(item) < 50 {
			found[item] = true
		}
	}

	skills := make([]string, 0, len(found))
	for skill := range found {
		skills = append(skills, skill)
	}
	sort.Strings(skills)
	return skills
}

// containsWord 小写全词匹配，技能词可能含'.'或'/'，不能直接用\b
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

// categorizeSkills 将技能按类别分组，空类别不出现在结果中
func categorizeSkills(skills []string) map[string][]string {
	categories := map[string][]string{}

	add := func(category, skill string) {
		categories[category] = append(categories[category], skill)
	}

	for _, skill := range skills {
		lower := strings.ToLower(skill)
		switch {
		case technicalSkills[lower]:
			add("technical", skill)
		case softSkills[lower]:
			add("soft", skill)
		case containsAny(lower, toolKeywords):
			add("tools", skill)
		case containsAny(lower, languageKeywords):
			add("languages", skill)
		default:
			add("other", skill)
		}
	}
	return categories
}

func containsAny(s string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(s, keyword) {
			return true
		}
	}
	return false
}

// extractCertifications 提取常见认证名称
func extractCertifications(text string) []string {
	found := make(map[string]bool)
	for _, match := range certPattern.FindAllString(text, -1) {
		found[strings.TrimSpace(match)] = true
	}
	certs := make([]string, 0, len(found))
	for cert := range found {
		certs = append(certs, cert)
	}
	sort.Strings(certs)
	return certs
}

// extractLanguages 提取语言能力，返回首字母大写形式
func extractLanguages(text string) []string {
	lower := strings.ToLower(text)
	found := make(map[string]bool)
	for _, lang := range commonLanguages {
		if containsWord(lower, lang) {
			found[capitalize(lang)] = true
		}
	}
	languages := make([]string, 0, len(found))
	for lang := range found {
		languages = append(languages, lang)
	}
	sort.Strings(languages)
	return languages
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
