package constants

import "time"

const (
	// EngineVersion 引擎版本号，写入解析记录便于回溯
	EngineVersion = "1.0"

	// MinSufficientTextLength 提取文本的可用长度下限（字符数）
	// 低于该值视为提取失败，继续尝试下一策略
	MinSufficientTextLength = 100

	// AnswerConfidenceThreshold 字段在对话意义上视为已落定的置信度阈值
	AnswerConfidenceThreshold = 0.5

	// FieldChunkSize 字段提取的文本分块大小（字符数）
	FieldChunkSize = 3000
	// FieldChunkOverlap 相邻分块的重叠大小（字符数）
	FieldChunkOverlap = 200

	// MaxSkills 技能列表的数量上限
	MaxSkills = 20

	// DefaultMaxPendingFields 单轮向候选人追问字段的默认上限
	DefaultMaxPendingFields = 3

	// OCRRenderDPI PDF页面栅格化送入OCR时的分辨率
	OCRRenderDPI = 300
	// OCRBinarizeThreshold 预处理二值化阈值（0-255灰度）
	OCRBinarizeThreshold = 140
	// OCRContrastPercent 预处理对比度增强百分比
	OCRContrastPercent = 50

	// ProfileCacheDuration 候选人档案Redis缓存时长
	ProfileCacheDuration = 24 * time.Hour
)

// OCRLanguages OCR识别语言集，按简历语料覆盖面排序
var OCRLanguages = []string{"eng", "fra", "spa", "deu", "ita"}

// 解析任务进度里程碑（百分比）
const (
	ProgressFetched   = 10
	ProgressExtracted = 30
	ProgressParsed    = 70
	ProgressCompleted = 100
)

// RabbitMQ队列与交换机
const (
	ResumeEventsExchange      = "candidate.events"
	ResumeUploadQueue         = "resume.upload"
	ResumeUploadRoutingKey    = "resume.uploaded"
	ResumeProcessedRoutingKey = "resume.processed"
	CandidateReplyQueue       = "candidate.reply"
	CandidateReplyRoutingKey  = "candidate.replied"
)
