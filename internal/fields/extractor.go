package fields

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"candidate-engine-go/internal/constants"
	"candidate-engine-go/internal/logger"
	"candidate-engine-go/internal/types"
)

// FieldExtractor 基于正则与启发式的字段提取器
// 输出完全确定：同一文本重复提取得到相同的值与置信度
// 单个字段缺失只产生零置信度条目，整体提取从不失败
type FieldExtractor struct {
	chunkSize    int
	chunkOverlap int
	maxSkills    int
	now          func() time.Time
	log          zerolog.Logger
}

// Option 字段提取器配置选项
type Option func(*FieldExtractor)

// WithChunking 设置超长文本的分块参数
func WithChunking(size, overlap int) Option {
	return func(e *FieldExtractor) {
		e.chunkSize = size
		e.chunkOverlap = overlap
	}
}

// WithMaxSkills 设置技能数量上限
func WithMaxSkills(n int) Option {
	return func(e *FieldExtractor) {
		e.maxSkills = n
	}
}

// WithClock 注入时钟，经历年限计算在测试中需要固定当前时间
func WithClock(now func() time.Time) Option {
	return func(e *FieldExtractor) {
		e.now = now
	}
}

// NewFieldExtractor 创建字段提取器
func NewFieldExtractor(options ...Option) *FieldExtractor {
	e := &FieldExtractor{
		chunkSize:    constants.FieldChunkSize,
		chunkOverlap: constants.FieldChunkOverlap,
		maxSkills:    constants.MaxSkills,
		now:          time.Now,
		log:          logger.Component("field_extractor"),
	}
	for _, option := range options {
		option(e)
	}
	return e
}

// Extract 从纯文本中提取结构化字段
// 超长文本分块：单值字段只看第一块，技能合并所有块的贡献
func (e *FieldExtractor) Extract(ctx context.Context, text string) (*types.ParsedResume, error) {
	startTime := time.Now()

	chunks := chunkText(text, e.chunkSize, e.chunkOverlap)
	first := chunks[0]

	parsed := &types.ParsedResume{RawText: text}

	// 单值字段取第一块
	email := extractEmail(first)
	phone := extractPhone(first)
	name := extractName(first)
	location, addressFallback := extractLocation(first)
	linkedin := extractLinkedIn(first)
	github := extractGithub(first)
	portfolio := extractPortfolio(first)

	// 技能合并所有块
	skillSet := make(map[string]bool)
	for _, chunk := range chunks {
		for _, skill := range extractSkills(chunk) {
			skillSet[skill] = true
		}
	}
	skills := sortedCapped(skillSet, e.maxSkills)
	parsed.Skills = skills
	parsed.SkillCategories = categorizeSkills(skills)

	// 分节后解析经历与教育
	sections := splitIntoSections(text)
	experienceText := sectionText(sections, "experience", "work", "employment")
	educationText := sectionText(sections, "education", "academic")

	parsed.WorkExperience = extractWorkExperience(experienceText)
	if len(parsed.WorkExperience) > 0 {
		parsed.CurrentCompany, parsed.CurrentTitle = currentPosition(parsed.WorkExperience)
		years, months := totalExperience(parsed.WorkExperience, e.now())
		parsed.YearsExperience = float64(years)
		parsed.TotalExperienceMonths = months
	}

	parsed.Education = extractEducation(educationText)
	parsed.Certifications = extractCertifications(text)
	parsed.Languages = extractLanguages(text)
	parsed.Summary = extractSummary(sectionText(sections, "summary", "objective"))

	// 组装带置信度的字段观测
	parsed.Fields = e.buildFields(parsed, text, fieldInputs{
		name: name, email: email, phone: phone,
		location: location, addressFallback: addressFallback,
		linkedin: linkedin, github: github, portfolio: portfolio,
	})

	e.log.Debug().
		Int("fields", len(parsed.Fields)).
		Int("skills", len(parsed.Skills)).
		Int("experience_entries", len(parsed.WorkExperience)).
		Int("chunks", len(chunks)).
		Dur("duration", time.Since(startTime)).
		Msg("字段提取完成")

	return parsed, nil
}

type fieldInputs struct {
	name, email, phone            string
	location                      string
	addressFallback               bool
	linkedin, github, portfolio   string
}

// buildFields 组装字段观测列表，缺失字段产生零置信度空值条目
func (e *FieldExtractor) buildFields(parsed *types.ParsedResume, fullText string, in fieldInputs) []types.ExtractedField {
	fields := []types.ExtractedField{
		field(types.FieldName, in.name, nameConfidence(in.name, fullText)),
		field(types.FieldEmail, in.email, emailConfidence(in.email)),
		field(types.FieldPhone, in.phone, phoneConfidence(in.phone)),
		field(types.FieldLocation, in.location, locationConfidence(in.location, in.addressFallback)),
	}

	expConf := experienceConfidence(parsed.WorkExperience)
	yearsValue := ""
	if parsed.TotalExperienceMonths > 0 {
		yearsValue = strconv.Itoa(int(parsed.YearsExperience))
	}
	fields = append(fields,
		field(types.FieldExperience, yearsValue, expConf),
		field(types.FieldCurrentCompany, parsed.CurrentCompany, expConf),
		field(types.FieldSkills, strings.Join(parsed.Skills, ", "), skillsConfidence(parsed.Skills)),
		field(types.FieldEducation, educationValue(parsed.Education), educationConfidence(parsed.Education)),
		field(types.FieldPortfolioURL, in.portfolio, urlConfidence(in.portfolio)),
	)

	if in.linkedin != "" {
		fields = append(fields, field(types.FieldLinkedInURL, in.linkedin, urlConfidence(in.linkedin)))
	}
	if in.github != "" {
		fields = append(fields, field(types.FieldGithubURL, in.github, urlConfidence(in.github)))
	}

	return fields
}

// field 构造单条观测，空值条目不带来源且置信度归零
func field(key types.FieldKey, value string, confidence float64) types.ExtractedField {
	f := types.ExtractedField{Name: key, Value: value, Confidence: clamp01(confidence)}
	if value != "" {
		f.Source = types.SourceResume
		f.RawExtraction = value
	} else {
		f.Confidence = 0
	}
	return f
}

// nameConfidence 姓名在原文中逐字出现且为2-4词形态时0.9，否则0.6
func nameConfidence(name, fullText string) float64 {
	if name == "" {
		return 0
	}
	inText := strings.Contains(strings.ToLower(fullText), strings.ToLower(name))
	words := len(strings.Fields(name))
	if inText && words >= 2 && words <= 4 {
		return 0.9
	}
	return 0.6
}

// emailConfidence 形如local@domain.tld时0.95，否则0.5
func emailConfidence(email string) float64 {
	if email == "" {
		return 0
	}
	if emailPattern.MatchString(email) {
		return 0.95
	}
	return 0.5
}

// phoneConfidence 含至少10位数字时0.9，否则0.5
func phoneConfidence(phone string) float64 {
	if phone == "" {
		return 0
	}
	digits := 0
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits >= 10 {
		return 0.9
	}
	return 0.5
}

// experienceConfidence 按公司与职位齐全的条目数计分，封顶0.9
func experienceConfidence(entries []types.WorkExperienceEntry) float64 {
	complete := 0
	for _, e := range entries {
		if e.Company != "" && e.Title != "" {
			complete++
		}
	}
	if complete == 0 {
		return 0
	}
	conf := float64(complete) * 0.3
	if conf > 0.9 {
		conf = 0.9
	}
	return conf
}

// skillsConfidence 按字典命中的技能数计分，封顶0.95
func skillsConfidence(skills []string) float64 {
	if len(skills) == 0 {
		return 0
	}
	known := 0
	for _, skill := range skills {
		if isKnownSkill(strings.ToLower(skill)) {
			known++
		}
	}
	conf := float64(known)*0.1 + 0.3
	if conf > 0.95 {
		conf = 0.95
	}
	return conf
}

// locationConfidence 命中城市正则0.7，门牌地址兜底0.5
func locationConfidence(location string, addressFallback bool) float64 {
	if location == "" {
		return 0
	}
	if addressFallback {
		return 0.5
	}
	return 0.7
}

// urlConfidence URL模式匹配可靠性高，固定0.95
func urlConfidence(url string) float64 {
	if url == "" {
		return 0
	}
	return 0.95
}

// educationConfidence 学位与学校齐全0.7，部分命中0.5
func educationConfidence(entries []types.EducationEntry) float64 {
	primary := primaryEducation(entries)
	if primary == nil {
		return 0
	}
	if primary.Degree != "" && primary.University != "" {
		return 0.7
	}
	return 0.5
}

// educationValue 最高学历的"学位, 学校"摘要
func educationValue(entries []types.EducationEntry) string {
	primary := primaryEducation(entries)
	if primary == nil {
		return ""
	}
	parts := []string{}
	if primary.Degree != "" {
		parts = append(parts, primary.Degree)
	}
	if primary.University != "" {
		parts = append(parts, primary.University)
	}
	return strings.Join(parts, ", ")
}

// extractSummary 从摘要分节取前三句有实质内容的话
func extractSummary(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	var sentences []string
	for _, sentence := range strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	}) {
		sentence = strings.TrimSpace(sentence)
		if sentence != "" && len(strings.Fields(sentence)) >= 5 {
			sentences = append(sentences, sentence)
			if len(sentences) >= 3 {
				break
			}
		}
	}
	if len(sentences) == 0 {
		return ""
	}
	return strings.Join(sentences, ". ") + "."
}

// sortedCapped 集合排序后截断到上限
func sortedCapped(set map[string]bool, max int) []string {
	items := make([]string, 0, len(set))
	for item := range set {
		items = append(items, item)
	}
	sort.Strings(items)
	if max > 0 && len(items) > max {
		items = items[:max]
	}
	return items
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
