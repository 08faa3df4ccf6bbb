package types

// FieldSource 表示某条字段证据的来源
type FieldSource string

const (
	// SourceResume 来自简历解析
	SourceResume FieldSource = "resume"
	// SourceReply 来自候选人回复的抽取
	SourceReply FieldSource = "reply"
	// SourceManual 来自HR手动录入
	SourceManual FieldSource = "manual"
)

// FieldKey 候选人档案字段的封闭枚举
// 对话状态不再使用裸map键，所有字段必须出现在这里
type FieldKey string

const (
	// FieldName 姓名
	FieldName FieldKey = "name"
	// FieldEmail 邮箱
	FieldEmail FieldKey = "email"
	// FieldPhone 电话
	FieldPhone FieldKey = "phone"
	// FieldExperience 工作年限
	FieldExperience FieldKey = "experience"
	// FieldSkills 技能列表（值为逗号连接的字符串）
	FieldSkills FieldKey = "skills"
	// FieldCurrentCompany 当前公司
	FieldCurrentCompany FieldKey = "currentCompany"
	// FieldEducation 教育背景
	FieldEducation FieldKey = "education"
	// FieldLocation 所在地
	FieldLocation FieldKey = "location"
	// FieldAvailability 可入职时间
	FieldAvailability FieldKey = "availability"
	// FieldPortfolioURL 作品集/个人网站
	FieldPortfolioURL FieldKey = "portfolioUrl"
	// FieldNoticePeriod 离职通知期
	FieldNoticePeriod FieldKey = "noticePeriod"
	// FieldExpectedSalary 期望薪资
	FieldExpectedSalary FieldKey = "expectedSalary"
	// FieldLinkedInURL LinkedIn链接
	FieldLinkedInURL FieldKey = "linkedinUrl"
	// FieldGithubURL GitHub链接
	FieldGithubURL FieldKey = "githubUrl"
)

// AllFieldKeys 返回全部字段键，顺序即为无优先级字段的兜底排序
func AllFieldKeys() []FieldKey {
	return []FieldKey{
		FieldName,
		FieldEmail,
		FieldPhone,
		FieldExperience,
		FieldSkills,
		FieldCurrentCompany,
		FieldEducation,
		FieldLocation,
		FieldAvailability,
		FieldPortfolioURL,
		FieldNoticePeriod,
		FieldExpectedSalary,
		FieldLinkedInURL,
		FieldGithubURL,
	}
}

// IsValidFieldKey 检查字段键是否在封闭枚举内
func IsValidFieldKey(k FieldKey) bool {
	for _, known := range AllFieldKeys() {
		if k == known {
			return true
		}
	}
	return false
}

// ExtractedField 一次未经调和的字段观测
// 由提取器或回复分类器产出后不可变，同一文档/回复可能产出多条
type ExtractedField struct {
	Name          FieldKey    `json:"name"`
	Value         string      `json:"value"` // 空串表示未提取到
	Confidence    float64     `json:"confidence"`
	RawExtraction string      `json:"raw_extraction,omitempty"` // 原始命中子串
	Source        FieldSource `json:"source"`
}

// FieldState 单个候选人字段经调和后的权威状态
// 只允许通过 Reconciler 的 Merge/MarkAsked 修改
type FieldState struct {
	Value      string      `json:"value"`
	Confidence float64     `json:"confidence"`
	Source     FieldSource `json:"source,omitempty"`
	// Asked 已就该字段向候选人发问且尚未得到回复
	Asked bool `json:"asked"`
	// Answered 字段在对话意义上已落定（置信度高于应答阈值）
	Answered bool `json:"answered"`
}

// CandidateFieldProfile 一个候选人的完整字段状态映射
type CandidateFieldProfile map[FieldKey]*FieldState

// Clone 返回档案的深拷贝，调用方可安全修改
func (p CandidateFieldProfile) Clone() CandidateFieldProfile {
	out := make(CandidateFieldProfile, len(p))
	for k, v := range p {
		if v == nil {
			continue
		}
		cp := *v
		out[k] = &cp
	}
	return out
}

// ReplyClassification 回复意图分类
type ReplyClassification string

const (
	// ClassificationInterested 有意向
	ClassificationInterested ReplyClassification = "interested"
	// ClassificationNotInterested 无意向
	ClassificationNotInterested ReplyClassification = "not_interested"
	// ClassificationQuestion 候选人提问
	ClassificationQuestion ReplyClassification = "question"
	// ClassificationNeedsClarification 要求澄清
	ClassificationNeedsClarification ReplyClassification = "needs_clarification"
)

// ReplyAnalysis 单条回复的分类结果，不单独持久化
// 其影响只通过 FieldState 合并与消息记录（外部协作方）落盘
type ReplyAnalysis struct {
	Classification      ReplyClassification `json:"classification"`
	ExtractedFields     []ExtractedField    `json:"extracted_fields"`
	RequiresHumanReview bool                `json:"requires_human_review"`
	SuggestedReply      string              `json:"suggested_reply,omitempty"`
	CandidateQuestions  []string            `json:"candidate_questions,omitempty"`
}
