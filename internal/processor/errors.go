package processor

import (
	"errors"
	"fmt"
)

// 处理流程的基础错误类型
var (
	ErrResumeDownloadFailed = errors.New("下载简历失败")
	ErrExtractTextFailed    = errors.New("提取简历文本失败")
	ErrMisDownloadedContent = errors.New("下载内容疑似错误页而非简历")
	ErrUnsupportedDocument  = errors.New("不支持的文档格式")
	ErrFieldMergeFailed     = errors.New("字段调和失败")
	ErrUpdateStatusFailed   = errors.New("更新简历状态失败")
	ErrReplyHandlingFailed  = errors.New("处理候选人回复失败")
	// ErrCandidateBusy 候选人锁被其他消费者持有，消息应重投而非丢弃
	ErrCandidateBusy = errors.New("候选人正被其他消费者处理")
)

// ProcessError 携带操作上下文的处理错误
type ProcessError struct {
	ResumeID    string
	CandidateID string
	Op          string
	BaseErr     error
	Detail      string
}

func (e *ProcessError) Error() string {
	id := e.ResumeID
	if id == "" {
		id = e.CandidateID
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, ID:%s): %s", e.BaseErr, e.Op, id, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, ID:%s)", e.BaseErr, e.Op, id)
}

func (e *ProcessError) Unwrap() error {
	return e.BaseErr
}

// Is 支持errors.Is按基础错误类型比较
func (e *ProcessError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

func newDownloadError(resumeID, detail string) error {
	return &ProcessError{ResumeID: resumeID, Op: "download", BaseErr: ErrResumeDownloadFailed, Detail: detail}
}

func newExtractError(resumeID string, baseErr error, detail string) error {
	return &ProcessError{ResumeID: resumeID, Op: "extract", BaseErr: baseErr, Detail: detail}
}

func newMergeError(candidateID, detail string) error {
	return &ProcessError{CandidateID: candidateID, Op: "merge", BaseErr: ErrFieldMergeFailed, Detail: detail}
}

func newUpdateError(resumeID, detail string) error {
	return &ProcessError{ResumeID: resumeID, Op: "update", BaseErr: ErrUpdateStatusFailed, Detail: detail}
}

func newReplyError(candidateID, detail string) error {
	return &ProcessError{CandidateID: candidateID, Op: "reply", BaseErr: ErrReplyHandlingFailed, Detail: detail}
}
