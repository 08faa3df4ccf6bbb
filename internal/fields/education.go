package fields

import (
	"strings"

	"candidate-engine-go/internal/types"
)

// extractEducation 从教育文本中切分并解析教育经历条目
// 以学位关键词开头的行作为条目边界；学位、学校、年份、专业各自独立提取
func extractEducation(text string) []types.EducationEntry {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var entries []types.EducationEntry
	for _, block := range splitEntries(text, degreeLineBoundary{}) {
		entry := parseEducationBlock(block)
		if entry != (types.EducationEntry{}) {
			entries = append(entries, entry)
		}
	}
	return entries
}

// degreeLineBoundary 以学位关键词开头的行
type degreeLineBoundary struct{}

func (degreeLineBoundary) MatchString(line string) bool {
	trimmed := strings.TrimSpace(line)
	loc := degreePattern.FindStringIndex(trimmed)
	return loc != nil && loc[0] == 0
}

// parseEducationBlock 解析单个教育块
func parseEducationBlock(block string) types.EducationEntry {
	var entry types.EducationEntry

	if match := degreePattern.FindString(block); match != "" {
		entry.Degree = strings.ToUpper(match)
	}

	lines := strings.Split(block, "\n")
	if len(lines) > 0 {
		firstLine := strings.TrimSpace(lines[0])
		if entry.Degree != "" {
			// 首行去掉学位后剩下的通常是学校名
			university := strings.TrimSpace(strings.Replace(firstLine, degreePattern.FindString(firstLine), "", 1))
			university = strings.Trim(university, " ,-–")
			if university != "" {
				entry.University = university
			}
		} else if firstLine != "" {
			entry.University = firstLine
		}
	}

	if match := yearPattern.FindString(block); match != "" {
		entry.GraduationYear = atoiSafe(match)
	}

	if groups := fieldOfStudyPattern.FindStringSubmatch(block); len(groups) > 1 {
		entry.Field = groups[1]
	}

	return entry
}

// primaryEducation 选出最高学历条目
func primaryEducation(entries []types.EducationEntry) *types.EducationEntry {
	if len(entries) == 0 {
		return nil
	}
	best := &entries[0]
	bestLevel := degreeLevel(best.Degree)
	for i := range entries[1:] {
		level := degreeLevel(entries[i+1].Degree)
		if level > bestLevel {
			best = &entries[i+1]
			bestLevel = level
		}
	}
	return best
}

// degreeLevel 学位等级，未识别的学位记1，缺失记0
func degreeLevel(degree string) int {
	if degree == "" {
		return 0
	}
	lower := strings.ToLower(degree)
	// 取所有命中关键词的最高等级，避免"mba"同时命中"ba"时取值不稳定
	best := 1
	for key, level := range degreeLevels {
		if strings.Contains(lower, key) && level > best {
			best = level
		}
	}
	return best
}
