package types

import "time"

// DocumentFormat 上传文档经魔数探测后的格式
type DocumentFormat string

const (
	// FormatPDF PDF文档
	FormatPDF DocumentFormat = "pdf"
	// FormatDOCX Office Open XML文档
	FormatDOCX DocumentFormat = "docx"
	// FormatJPEG JPEG图片
	FormatJPEG DocumentFormat = "jpeg"
	// FormatPNG PNG图片
	FormatPNG DocumentFormat = "png"
	// FormatHTML HTML内容，通常意味着下载到的是错误页而非简历
	FormatHTML DocumentFormat = "html"
	// FormatText 纯文本载荷，无需任何提取策略
	FormatText DocumentFormat = "txt"
	// FormatUnknown 无法识别的格式
	FormatUnknown DocumentFormat = "unknown"
)

// IsImage 是否为图片格式（直接走OCR路径）
func (f DocumentFormat) IsImage() bool {
	return f == FormatJPEG || f == FormatPNG
}

// WorkExperienceEntry 一段工作经历
type WorkExperienceEntry struct {
	Company     string     `json:"company"`
	Title       string     `json:"title"`
	Location    string     `json:"location,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"` // nil 且 IsCurrent 表示至今
	IsCurrent   bool       `json:"is_current"`
	Description string     `json:"description,omitempty"`
}

// EducationEntry 一段教育经历
type EducationEntry struct {
	Degree         string `json:"degree,omitempty"`
	University     string `json:"university,omitempty"`
	Field          string `json:"field,omitempty"`
	GraduationYear int    `json:"graduation_year,omitempty"`
}

// ExtractionResult 文本提取阶段的产物
type ExtractionResult struct {
	Text     string         `json:"text"`
	Format   DocumentFormat `json:"format"`
	Strategy string         `json:"strategy"` // 最终胜出的提取策略名
	// UsedOCR 是否动用了OCR回退
	UsedOCR bool `json:"used_ocr"`
	// Truncated 文本是否未达到可用长度，下游只能尽力而为
	Truncated bool `json:"truncated"`
	PageCount int  `json:"page_count,omitempty"`
}

// ParsedResume 一份简历的结构化解析聚合结果
type ParsedResume struct {
	Fields               []ExtractedField      `json:"fields"`
	WorkExperience       []WorkExperienceEntry `json:"work_experience,omitempty"`
	Education            []EducationEntry      `json:"education,omitempty"`
	Skills               []string              `json:"skills,omitempty"`
	SkillCategories      map[string][]string   `json:"skill_categories,omitempty"`
	Certifications       []string              `json:"certifications,omitempty"`
	Languages            []string              `json:"languages,omitempty"`
	YearsExperience      float64               `json:"years_experience,omitempty"`
	TotalExperienceMonths int                  `json:"total_experience_months,omitempty"`
	CurrentTitle         string                `json:"current_title,omitempty"`
	CurrentCompany       string                `json:"current_company,omitempty"`
	Summary              string                `json:"summary,omitempty"`
	RawText              string                `json:"-"`
}

// Field 按键查找解析出的字段观测，未命中返回nil
func (r *ParsedResume) Field(key FieldKey) *ExtractedField {
	for i := range r.Fields {
		if r.Fields[i].Name == key {
			return &r.Fields[i]
		}
	}
	return nil
}

// ResumeUploadMessage 简历上传事件，经RabbitMQ投递给处理器
type ResumeUploadMessage struct {
	CandidateID string    `json:"candidate_id"`
	ResumeID    string    `json:"resume_id"`
	ObjectKey   string    `json:"object_key"` // MinIO对象键
	FileName    string    `json:"file_name,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// CandidateReplyMessage 候选人回复事件
type CandidateReplyMessage struct {
	CandidateID string    `json:"candidate_id"`
	MessageID   string    `json:"message_id"`
	Body        string    `json:"body"`
	ReceivedAt  time.Time `json:"received_at"`
}
