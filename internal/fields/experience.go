package fields

import (
	"strings"
	"time"

	"candidate-engine-go/internal/types"
)

// extractWorkExperience 从经历文本中切分并解析工作经历条目
// 以日期开头的行作为条目边界重新分段；条目内首行按"at"、逗号、连字符
// 拆出职位与公司，其余非日期行去掉弹点后作为描述
func extractWorkExperience(text string) []types.WorkExperienceEntry {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var entries []types.WorkExperienceEntry
	for _, block := range splitEntries(text, entryStartPattern) {
		entry, ok := parseExperienceBlock(block)
		if ok {
			entries = append(entries, entry)
		}
	}
	return entries
}

// splitEntries 逐行扫描，匹配边界模式的行开启新条目
func splitEntries(text string, boundary interface{ MatchString(string) bool }) []string {
	lines := strings.Split(text, "\n")
	var blocks []string
	var buf []string

	flush := func() {
		block := strings.TrimSpace(strings.Join(buf, "\n"))
		if block != "" {
			blocks = append(blocks, block)
		}
		buf = buf[:0]
	}

	for _, line := range lines {
		if len(buf) > 0 && boundary.MatchString(line) {
			flush()
		}
		buf = append(buf, line)
	}
	flush()

	return blocks
}

// parseExperienceBlock 解析单个经历块，无职位也无公司的块丢弃
func parseExperienceBlock(block string) (types.WorkExperienceEntry, bool) {
	var entry types.WorkExperienceEntry

	if groups := dateRangePattern.FindStringSubmatch(block); len(groups) > 2 {
		entry.StartDate = parseApproxDate(groups[1])
		endStr := strings.ToLower(groups[2])
		if endStr == "present" || endStr == "current" {
			entry.IsCurrent = true
		} else {
			entry.EndDate = parseApproxDate(groups[2])
		}
	}

	lines := strings.Split(block, "\n")
	var headerLine string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// 纯日期行不是标题行
		if dateRangePattern.MatchString(line) && len(dateRangePattern.FindString(line)) >= len(line)-4 {
			continue
		}
		headerLine = line
		break
	}

	if headerLine != "" {
		entry.Title, entry.Company = splitTitleCompany(headerLine)
	}

	var description []string
	seenHeader := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !seenHeader && trimmed == headerLine {
			seenHeader = true
			continue
		}
		if dateRangePattern.MatchString(trimmed) && !seenHeader {
			continue
		}
		if seenHeader && !entryStartPattern.MatchString(trimmed) {
			description = append(description, bulletPrefixPattern.ReplaceAllString(trimmed, ""))
		}
	}
	if len(description) > 0 {
		entry.Description = strings.Join(description, "\n")
	}

	if entry.Company == "" && entry.Title == "" {
		return entry, false
	}
	return entry, true
}

// splitTitleCompany 从标题行拆分职位与公司
// 依次尝试 "Title at Company"、"Title, Company"、"Title - Company"
func splitTitleCompany(line string) (title, company string) {
	for _, pattern := range []interface {
		FindStringSubmatch(string) []string
	}{titleAtCompanyPattern, titleCommaCompanyPattern, titleDashCompanyPattern} {
		if groups := pattern.FindStringSubmatch(line); len(groups) > 2 {
			return strings.TrimSpace(groups[1]), strings.TrimSpace(groups[2])
		}
	}
	return strings.TrimSpace(line), ""
}

// parseApproxDate 宽松解析日期字符串，只支持月+年、数字月/年、纯年份
// 解析失败返回nil而非报错
func parseApproxDate(s string) *time.Time {
	s = strings.TrimSpace(s)

	if groups := monthYearPattern.FindStringSubmatch(s); len(groups) > 2 {
		month := monthNumber(groups[1])
		year := atoiSafe(groups[2])
		if month > 0 && year > 0 {
			t := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
			return &t
		}
	}
	if groups := numericMonthYearPattern.FindStringSubmatch(s); len(groups) > 2 {
		month := atoiSafe(groups[1])
		year := atoiSafe(groups[2])
		if month >= 1 && month <= 12 && year > 0 {
			t := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
			return &t
		}
	}
	if bareYearPattern.MatchString(s) {
		year := atoiSafe(s)
		if year > 0 {
			t := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
			return &t
		}
	}
	return nil
}

func monthNumber(abbrev string) int {
	months := map[string]int{
		"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
		"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
	}
	return months[strings.ToLower(abbrev)]
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// currentPosition 取当前公司与职位：优先在职条目，否则开始时间最晚的条目
func currentPosition(entries []types.WorkExperienceEntry) (company, title string) {
	for _, e := range entries {
		if e.IsCurrent || (e.EndDate == nil && e.StartDate != nil) {
			return e.Company, e.Title
		}
	}
	var latest *types.WorkExperienceEntry
	for i := range entries {
		if latest == nil {
			latest = &entries[i]
			continue
		}
		li, ei := latest.StartDate, entries[i].StartDate
		if li == nil || (ei != nil && ei.After(*li)) {
			latest = &entries[i]
		}
	}
	if latest != nil {
		return latest.Company, latest.Title
	}
	return "", ""
}

// totalExperience 汇总经历时长，在职条目按当前时间计
// 返回整年数与总月数
func totalExperience(entries []types.WorkExperienceEntry, now time.Time) (years, months int) {
	totalMonths := 0
	for _, e := range entries {
		if e.StartDate == nil {
			continue
		}
		end := now
		if e.EndDate != nil {
			end = *e.EndDate
		}
		m := monthsBetween(*e.StartDate, end)
		if m > 0 {
			totalMonths += m
		}
	}
	return totalMonths / 12, totalMonths
}

func monthsBetween(start, end time.Time) int {
	return (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month())
}
