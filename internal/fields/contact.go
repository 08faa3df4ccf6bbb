package fields

import "strings"

// extractEmail 提取邮箱，首个非占位域名的匹配胜出
func extractEmail(text string) string {
	matches := emailPattern.FindAllString(text, -1)
	for _, match := range matches {
		lower := strings.ToLower(match)
		if isPlaceholderEmail(lower) {
			continue
		}
		return lower
	}
	return ""
}

func isPlaceholderEmail(email string) bool {
	for _, domain := range placeholderEmailDomains {
		if strings.Contains(email, domain) {
			return true
		}
	}
	return false
}

// extractPhone 提取电话并归一化
// 剔除非数字字符后要求10-15位，再补国际前缀：11位以1开头或恰好10位视为北美号码
func extractPhone(text string) string {
	for _, pattern := range phonePatterns {
		match := pattern.FindString(text)
		if match == "" {
			continue
		}
		phone := nonDigitPattern.ReplaceAllString(match, "")
		digits := strings.TrimPrefix(phone, "+")
		if len(digits) < 10 || len(digits) > 15 {
			continue
		}
		if !strings.HasPrefix(phone, "+") {
			if strings.HasPrefix(phone, "1") && len(phone) == 11 {
				phone = "+" + phone
			} else if len(phone) == 10 {
				phone = "+1" + phone
			}
		}
		return phone
	}
	return ""
}

// extractName 从文档开头提取姓名
// 前10行中找2-4个词、首字母大写占比至少80%、不含简历套话的短行
func extractName(text string) string {
	lines := strings.Split(text, "\n")
	limit := 10
	if len(lines) < limit {
		limit = len(lines)
	}

	for _, line := range lines[:limit] {
		line = strings.TrimSpace(line)
		if line == "" || len(line) >= 100 {
			continue
		}
		words := strings.Fields(line)
		if len(words) < 2 || len(words) > 4 {
			continue
		}
		capitalized := 0
		for _, w := range words {
			r := []rune(w)
			if len(r) > 0 && r[0] >= 'A' && r[0] <= 'Z' {
				capitalized++
			}
		}
		if float64(capitalized) < float64(len(words))*0.8 {
			continue
		}
		if containsNameExclusion(line) {
			continue
		}
		return line
	}
	return ""
}

func containsNameExclusion(line string) bool {
	lower := strings.ToLower(line)
	for _, keyword := range nameExclusions {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// extractLocation 提取所在地
// 依次尝试"City, ST"、"City, Country"、"based in X"，最后用门牌地址兜底
func extractLocation(text string) (value string, fromAddressFallback bool) {
	if match := cityStatePattern.FindString(text); match != "" {
		return strings.TrimSpace(match), false
	}
	if match := cityCountryPattern.FindString(text); match != "" {
		return strings.TrimSpace(match), false
	}
	if groups := basedInPattern.FindStringSubmatch(text); len(groups) > 1 {
		return strings.TrimSpace(groups[1]), false
	}
	if match := addressPattern.FindString(text); match != "" {
		return strings.TrimSpace(match), true
	}
	return "", false
}

// extractLinkedIn 提取LinkedIn链接，缺协议时补https
func extractLinkedIn(text string) string {
	match := linkedinPattern.FindString(text)
	if match == "" {
		return ""
	}
	return ensureHTTPS(match)
}

// extractGithub 提取GitHub链接
func extractGithub(text string) string {
	match := githubPattern.FindString(text)
	if match == "" {
		return ""
	}
	return ensureHTTPS(match)
}

// extractPortfolio 提取作品集链接
// 带标签的URL优先；裸URL要排除linkedin/github，避免与专用字段重复
func extractPortfolio(text string) string {
	if groups := portfolioLabeledPattern.FindStringSubmatch(text); len(groups) > 1 {
		return strings.TrimRight(groups[1], ".,;")
	}
	matches := portfolioBarePattern.FindAllString(text, -1)
	for _, match := range matches {
		lower := strings.ToLower(match)
		if strings.Contains(lower, "linkedin.com") || strings.Contains(lower, "github.com") {
			continue
		}
		return strings.TrimRight(match, ".,;")
	}
	return ""
}

func ensureHTTPS(url string) string {
	if !strings.HasPrefix(strings.ToLower(url), "http") {
		return "https://" + url
	}
	return url
}
