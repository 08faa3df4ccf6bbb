package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Candidate 候选人主表
// FieldProfileJSON 保存经调和后的字段档案，由Reconciler整体写入
type Candidate struct {
	CandidateID       string         `gorm:"type:char(36);primaryKey"`
	PrimaryName       string         `gorm:"type:varchar(255)"`
	PrimaryPhone      string         `gorm:"type:varchar(50);uniqueIndex:idx_candidates_primary_phone_unique"`
	PrimaryEmail      string         `gorm:"type:varchar(255);uniqueIndex:idx_candidates_primary_email_unique"`
	CurrentLocation   string         `gorm:"type:varchar(255)"`
	FieldProfileJSON  datatypes.JSON `gorm:"type:json"`
	OverallConfidence float64        `gorm:"type:float;default:0"`
	RequiresReview    bool           `gorm:"default:false;index:idx_candidates_requires_review"`
	CreatedAt         time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt         time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (Candidate) TableName() string {
	return "candidates"
}

// Resume 简历提交/处理记录表
type Resume struct {
	ResumeID         string         `gorm:"type:char(36);primaryKey"`
	CandidateID      *string        `gorm:"type:char(36);index:idx_resumes_candidate_id"`
	OriginalFilename string         `gorm:"type:varchar(255)"`
	ObjectKey        string         `gorm:"type:varchar(1024)"`
	RawFileMD5       string         `gorm:"type:char(32);index:idx_resumes_raw_file_md5"`
	DetectedFormat   string         `gorm:"type:varchar(20)"`
	ExtractStrategy  string         `gorm:"type:varchar(50)"`
	UsedOCR          bool           `gorm:"default:false"`
	Truncated        bool           `gorm:"default:false"`
	WorkHistoryJSON  datatypes.JSON `gorm:"type:json"`
	EducationJSON    datatypes.JSON `gorm:"type:json"`
	SkillsJSON       datatypes.JSON `gorm:"type:json"`
	// RawTextExcerpt 提取文本的脱敏片段，供排查提取质量
	RawTextExcerpt   string         `gorm:"type:varchar(512)"`
	ProcessingStatus string         `gorm:"type:varchar(50);default:'PENDING';index:idx_resumes_processing_status"`
	ProcessingError  string         `gorm:"type:text"`
	Progress         int            `gorm:"type:int;default:0"`
	EngineVersion    string         `gorm:"type:varchar(50)"`
	SubmittedAt      time.Time      `gorm:"type:datetime(6)"`
	ParsedAt         *time.Time     `gorm:"type:datetime(6)"`
	CreatedAt        time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt        time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`

	Candidate *Candidate `gorm:"foreignKey:CandidateID;references:CandidateID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

func (Resume) TableName() string {
	return "resumes"
}

// 简历处理状态
const (
	ResumeStatusPending    = "PENDING"
	ResumeStatusProcessing = "PROCESSING"
	ResumeStatusCompleted  = "COMPLETED"
	ResumeStatusFailed     = "FAILED"
	ResumeStatusDuplicate  = "DUPLICATE"
)

// 消息方向
const (
	MessageDirectionOutbound = "OUTBOUND"
	MessageDirectionInbound  = "INBOUND"
)

// CandidateMessage 候选人沟通消息表
// 外发消息记录本轮追问的字段，入站消息记录分类结果
type CandidateMessage struct {
	MessageID           uint64         `gorm:"primaryKey;autoIncrement"`
	CandidateID         string         `gorm:"type:char(36);not null;index:idx_messages_candidate_id"`
	Direction           string         `gorm:"type:varchar(10);not null;index:idx_messages_direction"`
	Body                string         `gorm:"type:text"`
	AskedFieldsJSON     datatypes.JSON `gorm:"type:json"`
	Classification      string         `gorm:"type:varchar(50)"`
	RequiresHumanReview bool           `gorm:"default:false"`
	SuggestedReply      string         `gorm:"type:text"`
	ExternalMessageID   string         `gorm:"type:varchar(100);index:idx_messages_external_id"`
	SentAt              time.Time      `gorm:"type:datetime(6);index:idx_messages_sent_at"`
	CreatedAt           time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`

	Candidate *Candidate `gorm:"foreignKey:CandidateID;references:CandidateID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (CandidateMessage) TableName() string {
	return "candidate_messages"
}

// ToJSON 将任意值序列化为datatypes.JSON
func ToJSON(v interface{}) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("序列化为JSON失败: %w", err)
	}
	return datatypes.JSON(data), nil
}

// FromJSON 将datatypes.JSON反序列化到目标结构
func FromJSON(data datatypes.JSON, dest interface{}) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("解析JSON字段失败: %w", err)
	}
	return nil
}
