package processor

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"candidate-engine-go/internal/constants"
	"candidate-engine-go/internal/extractor"
	"candidate-engine-go/internal/logger"
	"candidate-engine-go/internal/reconcile"
	"candidate-engine-go/internal/storage/models"
	"candidate-engine-go/internal/tracing"
	"candidate-engine-go/internal/types"
)

var processorTracer = otel.Tracer("candidate-engine-go/processor")

// ObjectFetcher 按对象键取回原始简历文件
type ObjectFetcher interface {
	GetResumeFile(ctx context.Context, objectKey string) ([]byte, error)
}

// Deduplicator 原始文件MD5去重
type Deduplicator interface {
	CheckAndSetFileMD5(ctx context.Context, md5Hex string, resumeID string) (bool, string, error)
	RemoveFileMD5(ctx context.Context, md5Hex string) error
}

// TextExtractor 文档字节到纯文本
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (*types.ExtractionResult, error)
}

// FieldParser 纯文本到结构化字段观测
type FieldParser interface {
	Extract(ctx context.Context, text string) (*types.ParsedResume, error)
}

// ResumeRepository 简历处理记录的持久化操作
type ResumeRepository interface {
	CreateResume(ctx context.Context, resume *models.Resume) error
	GetResumeByID(ctx context.Context, resumeID string) (*models.Resume, error)
	UpdateResumeProgress(ctx context.Context, resumeID string, status string, progress int) error
	FailResume(ctx context.Context, resumeID string, reason string) error
	UpdateResumeFields(ctx context.Context, resumeID string, updates map[string]interface{}) error
}

// CandidateRepository 候选人记录的查找与建档
type CandidateRepository interface {
	FindOrCreateCandidate(ctx context.Context, name, email, phone string) (*models.Candidate, error)
}

// EventPublisher 处理结果事件的发布出口
type EventPublisher interface {
	PublishJSON(ctx context.Context, exchangeName, routingKey string, data interface{}, persistent bool) error
}

// ResumeProcessedEvent 简历处理终态事件
type ResumeProcessedEvent struct {
	ResumeID    string    `json:"resume_id"`
	CandidateID string    `json:"candidate_id"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	FieldCount  int       `json:"field_count,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

// ResumeProcessor 简历处理流水线
// 取文件 -> 去重 -> 提文本 -> 解析字段 -> 调和进档案
type ResumeProcessor struct {
	fetcher       ObjectFetcher
	dedup         Deduplicator
	extractor     TextExtractor
	parser        FieldParser
	reconciler    *reconcile.Reconciler
	resumes       ResumeRepository
	candidates    CandidateRepository
	events        EventPublisher
	eventExchange string
	engineVersion string
	log           zerolog.Logger
}

// ResumeComponents 简历处理器的依赖集合
// Dedup、Candidates与Events可为空，对应能力缺席时流水线降级运行
type ResumeComponents struct {
	Fetcher    ObjectFetcher
	Dedup      Deduplicator
	Extractor  TextExtractor
	Parser     FieldParser
	Reconciler *reconcile.Reconciler
	Resumes    ResumeRepository
	Candidates CandidateRepository
	Events     EventPublisher
}

// ResumeOption 简历处理器选项
type ResumeOption func(*ResumeProcessor)

// WithEngineVersion 设置写入解析记录的引擎版本号
func WithEngineVersion(version string) ResumeOption {
	return func(p *ResumeProcessor) {
		if version != "" {
			p.engineVersion = version
		}
	}
}

// WithEventExchange 设置处理结果事件发布的交换机
func WithEventExchange(exchange string) ResumeOption {
	return func(p *ResumeProcessor) {
		if exchange != "" {
			p.eventExchange = exchange
		}
	}
}

// NewResumeProcessor 创建简历处理器
func NewResumeProcessor(comp ResumeComponents, opts ...ResumeOption) (*ResumeProcessor, error) {
	if comp.Fetcher == nil {
		return nil, fmt.Errorf("对象存储依赖不能为空")
	}
	if comp.Extractor == nil {
		return nil, fmt.Errorf("文本提取器不能为空")
	}
	if comp.Parser == nil {
		return nil, fmt.Errorf("字段解析器不能为空")
	}
	if comp.Reconciler == nil {
		return nil, fmt.Errorf("调和器不能为空")
	}
	if comp.Resumes == nil {
		return nil, fmt.Errorf("简历存储不能为空")
	}

	p := &ResumeProcessor{
		fetcher:       comp.Fetcher,
		dedup:         comp.Dedup,
		extractor:     comp.Extractor,
		parser:        comp.Parser,
		reconciler:    comp.Reconciler,
		resumes:       comp.Resumes,
		candidates:    comp.Candidates,
		events:        comp.Events,
		eventExchange: constants.ResumeEventsExchange,
		engineVersion: constants.EngineVersion,
		log:           logger.Component("resume_processor"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Process 处理一条简历上传事件
// 重复文件标记DUPLICATE后直接返回；提取或解析失败时标记FAILED并回滚MD5登记
func (p *ResumeProcessor) Process(ctx context.Context, msg types.ResumeUploadMessage) error {
	ctx, span := processorTracer.Start(ctx, "ResumeProcessor.Process",
		trace.WithAttributes(
			attribute.String("resume.id", msg.ResumeID),
			attribute.String("candidate.id", msg.CandidateID),
		))
	defer span.End()

	startTime := time.Now()
	p.log.Info().
		Str("resume_id", msg.ResumeID).
		Str("candidate_id", msg.CandidateID).
		Str("object_key", msg.ObjectKey).
		Msg("开始处理简历")

	// 消息可能先于简历记录到达，至少一次投递下先补齐记录
	if err := p.ensureResumeRecord(ctx, msg); err != nil {
		return p.recordError(span, newUpdateError(msg.ResumeID, err.Error()))
	}

	// 1. 取回原始文件
	data, err := p.fetcher.GetResumeFile(ctx, msg.ObjectKey)
	if err != nil {
		p.failResume(ctx, msg.ResumeID, fmt.Sprintf("下载失败: %v", err))
		return p.recordError(span, newDownloadError(msg.ResumeID, err.Error()))
	}
	if err := p.resumes.UpdateResumeProgress(ctx, msg.ResumeID, models.ResumeStatusProcessing, constants.ProgressFetched); err != nil {
		return p.recordError(span, newUpdateError(msg.ResumeID, err.Error()))
	}

	// 2. 原始文件MD5去重
	md5Hex := fileMD5(data)
	if p.dedup != nil {
		exists, existingID, err := p.dedup.CheckAndSetFileMD5(ctx, md5Hex, msg.ResumeID)
		if err != nil {
			// 去重属于优化路径，Redis故障时降级继续处理
			p.log.Warn().Err(err).Str("resume_id", msg.ResumeID).Msg("MD5去重检查失败，跳过去重")
		} else if exists && existingID != msg.ResumeID {
			span.SetAttributes(attribute.Bool("resume.duplicate", true),
				attribute.String("resume.duplicate_of", existingID))
			p.log.Info().
				Str("resume_id", msg.ResumeID).
				Str("duplicate_of", existingID).
				Msg("简历文件重复，跳过处理")
			if err := p.resumes.UpdateResumeFields(ctx, msg.ResumeID, map[string]interface{}{
				"processing_status": models.ResumeStatusDuplicate,
				"raw_file_md5":      md5Hex,
			}); err != nil {
				return p.recordError(span, newUpdateError(msg.ResumeID, err.Error()))
			}
			span.SetStatus(codes.Ok, "duplicate")
			return nil
		}
	}

	// 3. 文本提取
	result, err := p.extractor.Extract(ctx, data)
	if err != nil {
		p.rollbackMD5(ctx, md5Hex)
		reason := fmt.Sprintf("文本提取失败: %v", err)
		p.failResume(ctx, msg.ResumeID, reason)
		switch {
		case errors.Is(err, extractor.ErrHTMLContent):
			return p.recordError(span, newExtractError(msg.ResumeID, ErrMisDownloadedContent, err.Error()))
		case errors.Is(err, extractor.ErrUnsupportedFormat):
			return p.recordError(span, newExtractError(msg.ResumeID, ErrUnsupportedDocument, err.Error()))
		default:
			return p.recordError(span, newExtractError(msg.ResumeID, ErrExtractTextFailed, err.Error()))
		}
	}
	// 不足可用长度的碎片文本不进解析，避免污染档案
	if result.Truncated || strings.TrimSpace(result.Text) == "" {
		p.rollbackMD5(ctx, md5Hex)
		p.failResume(ctx, msg.ResumeID, "提取文本未达到可用长度")
		return p.recordError(span, newExtractError(msg.ResumeID, ErrExtractTextFailed, "insufficient text"))
	}

	span.SetAttributes(
		attribute.String("extract.format", string(result.Format)),
		attribute.String("extract.strategy", result.Strategy),
		attribute.Bool("extract.used_ocr", result.UsedOCR),
		attribute.Bool("extract.truncated", result.Truncated),
		attribute.Int("extract.text_length", len(result.Text)),
	)
	if err := p.resumes.UpdateResumeFields(ctx, msg.ResumeID, map[string]interface{}{
		"processing_status": models.ResumeStatusProcessing,
		"progress":          constants.ProgressExtracted,
		"raw_file_md5":      md5Hex,
		"detected_format":   string(result.Format),
		"extract_strategy":  result.Strategy,
		"used_ocr":          result.UsedOCR,
		"truncated":         result.Truncated,
	}); err != nil {
		return p.recordError(span, newUpdateError(msg.ResumeID, err.Error()))
	}

	// 4. 字段解析
	parsed, err := p.parser.Extract(ctx, result.Text)
	if err != nil {
		p.rollbackMD5(ctx, md5Hex)
		p.failResume(ctx, msg.ResumeID, fmt.Sprintf("字段解析失败: %v", err))
		return p.recordError(span, newExtractError(msg.ResumeID, ErrExtractTextFailed, err.Error()))
	}

	// 无候选人ID的冷上传用解析出的联系方式建档
	candidateID := msg.CandidateID
	if candidateID == "" {
		candidateID, err = p.resolveCandidate(ctx, parsed)
		if err != nil {
			p.rollbackMD5(ctx, md5Hex)
			p.failResume(ctx, msg.ResumeID, fmt.Sprintf("候选人建档失败: %v", err))
			return p.recordError(span, newMergeError(msg.CandidateID, err.Error()))
		}
		span.SetAttributes(attribute.String("candidate.resolved_id", candidateID))
	}

	now := time.Now()
	updates := map[string]interface{}{
		"progress":         constants.ProgressParsed,
		"engine_version":   p.engineVersion,
		"candidate_id":     candidateID,
		"raw_text_excerpt": tracing.SafeResumeText(result.Text),
		"parsed_at":        &now,
	}
	if workJSON, err := json.Marshal(parsed.WorkExperience); err == nil && len(parsed.WorkExperience) > 0 {
		updates["work_history_json"] = workJSON
	}
	if eduJSON, err := json.Marshal(parsed.Education); err == nil && len(parsed.Education) > 0 {
		updates["education_json"] = eduJSON
	}
	if skillsJSON, err := json.Marshal(parsed.Skills); err == nil && len(parsed.Skills) > 0 {
		updates["skills_json"] = skillsJSON
	}
	if err := p.resumes.UpdateResumeFields(ctx, msg.ResumeID, updates); err != nil {
		return p.recordError(span, newUpdateError(msg.ResumeID, err.Error()))
	}

	// 5. 字段观测调和进候选人档案
	if err := p.reconciler.MergeAll(ctx, candidateID, parsed.Fields); err != nil {
		return p.recordError(span, newMergeError(candidateID, err.Error()))
	}

	if err := p.resumes.UpdateResumeProgress(ctx, msg.ResumeID, models.ResumeStatusCompleted, constants.ProgressCompleted); err != nil {
		return p.recordError(span, newUpdateError(msg.ResumeID, err.Error()))
	}

	p.publishEvent(ctx, ResumeProcessedEvent{
		ResumeID:    msg.ResumeID,
		CandidateID: candidateID,
		Status:      models.ResumeStatusCompleted,
		FieldCount:  len(parsed.Fields),
		ProcessedAt: time.Now(),
	})

	span.SetStatus(codes.Ok, "")
	p.log.Info().
		Str("resume_id", msg.ResumeID).
		Str("candidate_id", candidateID).
		Int("fields", len(parsed.Fields)).
		Dur("elapsed", time.Since(startTime)).
		Msg("简历处理完成")
	return nil
}

// ensureResumeRecord 简历记录缺席时按消息内容补建
func (p *ResumeProcessor) ensureResumeRecord(ctx context.Context, msg types.ResumeUploadMessage) error {
	existing, err := p.resumes.GetResumeByID(ctx, msg.ResumeID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	record := &models.Resume{
		ResumeID:         msg.ResumeID,
		OriginalFilename: msg.FileName,
		ObjectKey:        msg.ObjectKey,
		ProcessingStatus: models.ResumeStatusPending,
		SubmittedAt:      msg.SubmittedAt,
	}
	if msg.CandidateID != "" {
		record.CandidateID = &msg.CandidateID
	}
	if record.SubmittedAt.IsZero() {
		record.SubmittedAt = time.Now()
	}
	p.log.Info().Str("resume_id", msg.ResumeID).Msg("简历记录缺席，按消息内容补建")
	return p.resumes.CreateResume(ctx, record)
}

// resolveCandidate 用解析出的联系方式查找或创建候选人
func (p *ResumeProcessor) resolveCandidate(ctx context.Context, parsed *types.ParsedResume) (string, error) {
	if p.candidates == nil {
		return "", fmt.Errorf("消息缺少候选人ID且未配置候选人存储")
	}
	candidate, err := p.candidates.FindOrCreateCandidate(ctx,
		parsedFieldValue(parsed, types.FieldName),
		parsedFieldValue(parsed, types.FieldEmail),
		parsedFieldValue(parsed, types.FieldPhone),
	)
	if err != nil {
		return "", err
	}
	return candidate.CandidateID, nil
}

// parsedFieldValue 取一个字段观测的值，缺席返回空串
func parsedFieldValue(parsed *types.ParsedResume, key types.FieldKey) string {
	for _, field := range parsed.Fields {
		if field.Name == key {
			return field.Value
		}
	}
	return ""
}

// HandleMessage RabbitMQ消费入口，返回true确认消息
// 结构损坏的消息直接确认丢弃，避免毒消息无限重投
func (p *ResumeProcessor) HandleMessage(body []byte) bool {
	var msg types.ResumeUploadMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		p.log.Error().Err(err).Msg("解析简历上传消息失败，丢弃消息")
		return true
	}
	// 缺候选人ID的上传走解析建档，简历ID缺席才是结构损坏
	if msg.ResumeID == "" {
		p.log.Error().Str("body", string(body)).Msg("简历上传消息缺少简历ID，丢弃消息")
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := p.Process(ctx, msg); err != nil {
		p.log.Error().Err(err).Str("resume_id", msg.ResumeID).Msg("简历处理失败")
		// 业务性失败已落库，不再重投
		return true
	}
	return true
}

func (p *ResumeProcessor) failResume(ctx context.Context, resumeID, reason string) {
	if err := p.resumes.FailResume(ctx, resumeID, reason); err != nil {
		p.log.Error().Err(err).Str("resume_id", resumeID).Msg("标记简历失败状态时出错")
	}
	p.publishEvent(ctx, ResumeProcessedEvent{
		ResumeID:    resumeID,
		Status:      models.ResumeStatusFailed,
		Error:       reason,
		ProcessedAt: time.Now(),
	})
}

// publishEvent 发布处理终态事件，发布失败只记录不影响主流程
func (p *ResumeProcessor) publishEvent(ctx context.Context, event ResumeProcessedEvent) {
	if p.events == nil {
		return
	}
	if err := p.events.PublishJSON(ctx, p.eventExchange, constants.ResumeProcessedRoutingKey, event, true); err != nil {
		p.log.Warn().Err(err).Str("resume_id", event.ResumeID).Msg("发布简历处理事件失败")
	}
}

func (p *ResumeProcessor) rollbackMD5(ctx context.Context, md5Hex string) {
	if p.dedup == nil {
		return
	}
	if err := p.dedup.RemoveFileMD5(ctx, md5Hex); err != nil {
		p.log.Warn().Err(err).Msg("回滚MD5登记失败")
	}
}

func (p *ResumeProcessor) recordError(span trace.Span, err error) error {
	tracing.RecordError(span, err, errorTypeFor(err))
	return err
}

// errorTypeFor 按基础错误归类到追踪错误维度
func errorTypeFor(err error) tracing.ErrorType {
	switch {
	case errors.Is(err, ErrResumeDownloadFailed):
		return tracing.ErrorTypeObjectStorage
	case errors.Is(err, ErrExtractTextFailed),
		errors.Is(err, ErrMisDownloadedContent),
		errors.Is(err, ErrUnsupportedDocument):
		return tracing.ErrorTypeExtraction
	case errors.Is(err, ErrUpdateStatusFailed):
		return tracing.ErrorTypeDB
	default:
		return tracing.ErrorTypeInternal
	}
}

func fileMD5(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
