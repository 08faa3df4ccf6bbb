package fields

import "strings"

// splitIntoSections 按常见标题将简历文本分节
// 标题行判定：短行、去掉冒号并小写后以已知标题词开头
// 首个标题前的内容归入"contact"节
func splitIntoSections(text string) map[string]string {
	sections := make(map[string]string)
	lines := strings.Split(text, "\n")

	current := "contact"
	var buf []string

	flush := func() {
		content := strings.TrimSpace(strings.Join(buf, "\n"))
		if content != "" {
			// 同名分节内容拼接，例如正文中出现两个Experience块
			if existing, ok := sections[current]; ok {
				content = existing + "\n" + content
			}
			sections[current] = content
		}
		buf = buf[:0]
	}

	for _, line := range lines {
		if header, ok := matchSectionHeader(line); ok {
			flush()
			current = header
			continue
		}
		buf = append(buf, line)
	}
	flush()

	return sections
}

// matchSectionHeader 判断一行是否为分节标题，返回归一后的标题词
func matchSectionHeader(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || len(trimmed) > 40 {
		return "", false
	}
	normalized := strings.ToLower(strings.TrimRight(trimmed, ":"))
	for _, header := range sectionHeaders {
		if normalized == header || strings.HasPrefix(normalized, header+" ") {
			return header, true
		}
	}
	return "", false
}

// sectionText 拼接多个分节的内容
func sectionText(sections map[string]string, names ...string) string {
	var parts []string
	for _, name := range names {
		if content, ok := sections[name]; ok && content != "" {
			parts = append(parts, content)
		}
	}
	return strings.Join(parts, "\n")
}
