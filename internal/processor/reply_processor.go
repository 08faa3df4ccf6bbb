package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"candidate-engine-go/internal/logger"
	"candidate-engine-go/internal/reconcile"
	"candidate-engine-go/internal/reply"
	"candidate-engine-go/internal/storage/models"
	"candidate-engine-go/internal/tracing"
	"candidate-engine-go/internal/types"
)

// MessageRepository 候选人沟通消息的持久化操作
type MessageRepository interface {
	RecordMessage(ctx context.Context, message *models.CandidateMessage) error
	GetLastOutboundMessage(ctx context.Context, candidateID string) (*models.CandidateMessage, error)
	GetCandidateByID(ctx context.Context, candidateID string) (*models.Candidate, error)
	SetCandidateReviewFlag(ctx context.Context, candidateID string, requiresReview bool) error
}

// CandidateLocker 候选人级互斥锁，防止多个消费者并发改写同一份档案
type CandidateLocker interface {
	AcquireCandidateLock(ctx context.Context, candidateID string, expiration time.Duration) (string, error)
	ReleaseCandidateLock(ctx context.Context, candidateID string, lockValue string) (bool, error)
}

// candidateLockTTL 与HandleMessage的处理超时对齐，消费者崩溃后锁自然过期
const candidateLockTTL = 2 * time.Minute

// ReplyProcessor 候选人回复处理流水线
// 取上轮追问字段 -> 分类与字段提取 -> 落消息记录 -> 调和进档案
type ReplyProcessor struct {
	classifier reply.Classifier
	reconciler *reconcile.Reconciler
	selector   *reconcile.PendingFieldSelector
	messages   MessageRepository
	locks      CandidateLocker
	log        zerolog.Logger
}

// ReplyOption 回复处理器选项
type ReplyOption func(*ReplyProcessor)

// WithCandidateLocker 设置候选人级处理锁，未设置时不做并发互斥
func WithCandidateLocker(locks CandidateLocker) ReplyOption {
	return func(p *ReplyProcessor) {
		p.locks = locks
	}
}

// NewReplyProcessor 创建回复处理器
func NewReplyProcessor(classifier reply.Classifier, reconciler *reconcile.Reconciler, selector *reconcile.PendingFieldSelector, messages MessageRepository, opts ...ReplyOption) (*ReplyProcessor, error) {
	if classifier == nil {
		return nil, fmt.Errorf("回复分类器不能为空")
	}
	if reconciler == nil {
		return nil, fmt.Errorf("调和器不能为空")
	}
	if selector == nil {
		return nil, fmt.Errorf("待问字段选择器不能为空")
	}
	if messages == nil {
		return nil, fmt.Errorf("消息存储不能为空")
	}
	p := &ReplyProcessor{
		classifier: classifier,
		reconciler: reconciler,
		selector:   selector,
		messages:   messages,
		log:        logger.Component("reply_processor"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Process 处理一条候选人回复事件
func (p *ReplyProcessor) Process(ctx context.Context, msg types.CandidateReplyMessage) (*types.ReplyAnalysis, error) {
	ctx, span := processorTracer.Start(ctx, "ReplyProcessor.Process",
		trace.WithAttributes(attribute.String("candidate.id", msg.CandidateID)))
	defer span.End()

	if strings.TrimSpace(msg.Body) == "" {
		return nil, p.recordError(span, newReplyError(msg.CandidateID, "回复内容为空"))
	}

	// 未知候选人的回复直接丢弃，避免凭空建出档案
	candidate, err := p.messages.GetCandidateByID(ctx, msg.CandidateID)
	if err != nil {
		return nil, p.recordError(span, newReplyError(msg.CandidateID, fmt.Sprintf("查询候选人失败: %v", err)))
	}
	if candidate == nil {
		return nil, p.recordError(span, newReplyError(msg.CandidateID, "候选人不存在"))
	}

	// 档案改写期间持有候选人锁；锁被占说明另一消费者正在处理，重投等待
	if p.locks != nil {
		lockValue, lockErr := p.locks.AcquireCandidateLock(ctx, msg.CandidateID, candidateLockTTL)
		switch {
		case lockErr != nil:
			p.log.Warn().Err(lockErr).Str("candidate_id", msg.CandidateID).Msg("获取候选人锁失败，降级为无锁处理")
		case lockValue == "":
			return nil, p.recordError(span, fmt.Errorf("%w: %s", ErrCandidateBusy, msg.CandidateID))
		default:
			defer func() {
				if _, err := p.locks.ReleaseCandidateLock(ctx, msg.CandidateID, lockValue); err != nil {
					p.log.Warn().Err(err).Str("candidate_id", msg.CandidateID).Msg("释放候选人锁失败")
				}
			}()
		}
	}

	p.log.Info().
		Str("candidate_id", msg.CandidateID).
		Int("body_length", len(msg.Body)).
		Msg("开始处理候选人回复")

	// 上一条外发消息记录了本轮追问过的字段，提取时据此定向
	askedFields := p.lastAskedFields(ctx, msg.CandidateID)

	analysis, err := p.classifier.Classify(ctx, msg.Body, askedFields)
	if err != nil {
		return nil, p.recordError(span, newReplyError(msg.CandidateID, fmt.Sprintf("回复分类失败: %v", err)))
	}
	span.SetAttributes(
		attribute.String("reply.classification", string(analysis.Classification)),
		attribute.Bool("reply.requires_review", analysis.RequiresHumanReview),
		attribute.Int("reply.extracted_fields", len(analysis.ExtractedFields)),
	)

	// 入站消息连同分类结论一起落库
	record := &models.CandidateMessage{
		CandidateID:         msg.CandidateID,
		Direction:           models.MessageDirectionInbound,
		Body:                msg.Body,
		Classification:      string(analysis.Classification),
		RequiresHumanReview: analysis.RequiresHumanReview,
		SuggestedReply:      analysis.SuggestedReply,
		ExternalMessageID:   msg.MessageID,
		SentAt:              msg.ReceivedAt,
	}
	if record.SentAt.IsZero() {
		record.SentAt = time.Now()
	}
	if err := p.messages.RecordMessage(ctx, record); err != nil {
		return nil, p.recordError(span, newReplyError(msg.CandidateID, fmt.Sprintf("记录入站消息失败: %v", err)))
	}

	// 回复中提取到的字段观测调和进档案，回复来源会清除Asked标记
	if len(analysis.ExtractedFields) > 0 {
		if err := p.reconciler.MergeAll(ctx, msg.CandidateID, analysis.ExtractedFields); err != nil {
			return nil, p.recordError(span, newMergeError(msg.CandidateID, err.Error()))
		}
	}

	if analysis.RequiresHumanReview {
		if err := p.messages.SetCandidateReviewFlag(ctx, msg.CandidateID, true); err != nil {
			p.log.Error().Err(err).Str("candidate_id", msg.CandidateID).Msg("标记人工复核失败")
		}
	}

	span.SetStatus(codes.Ok, "")
	p.log.Info().
		Str("candidate_id", msg.CandidateID).
		Str("classification", string(analysis.Classification)).
		Int("fields", len(analysis.ExtractedFields)).
		Msg("候选人回复处理完成")
	return analysis, nil
}

// PrepareFollowUp 为候选人挑选下一轮追问字段并记录外发消息
// 返回本轮追问的字段键，无可追问字段时返回空切片
func (p *ReplyProcessor) PrepareFollowUp(ctx context.Context, candidateID string, body string) ([]types.FieldKey, error) {
	ctx, span := processorTracer.Start(ctx, "ReplyProcessor.PrepareFollowUp",
		trace.WithAttributes(attribute.String("candidate.id", candidateID)))
	defer span.End()

	profile, err := p.reconciler.GetProfile(ctx, candidateID)
	if err != nil {
		return nil, p.recordError(span, newReplyError(candidateID, fmt.Sprintf("读取候选人档案失败: %v", err)))
	}

	// 只追问尚未问过的字段，避免重复打扰
	fields := p.selector.SelectUnasked(profile)
	span.SetAttributes(attribute.Int("followup.field_count", len(fields)))
	if len(fields) == 0 {
		return nil, nil
	}

	if err := p.reconciler.MarkAsked(ctx, candidateID, fields); err != nil {
		return nil, p.recordError(span, newReplyError(candidateID, fmt.Sprintf("标记追问字段失败: %v", err)))
	}

	askedJSON, err := models.ToJSON(fields)
	if err != nil {
		return nil, p.recordError(span, newReplyError(candidateID, err.Error()))
	}
	record := &models.CandidateMessage{
		CandidateID:     candidateID,
		Direction:       models.MessageDirectionOutbound,
		Body:            body,
		AskedFieldsJSON: askedJSON,
		SentAt:          time.Now(),
	}
	if err := p.messages.RecordMessage(ctx, record); err != nil {
		return nil, p.recordError(span, newReplyError(candidateID, fmt.Sprintf("记录外发消息失败: %v", err)))
	}

	span.SetStatus(codes.Ok, "")
	p.log.Info().
		Str("candidate_id", candidateID).
		Interface("fields", fields).
		Msg("已登记追问字段")
	return fields, nil
}

// HandleMessage RabbitMQ消费入口，返回true确认消息
func (p *ReplyProcessor) HandleMessage(body []byte) bool {
	var msg types.CandidateReplyMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		p.log.Error().Err(err).Msg("解析候选人回复消息失败，丢弃消息")
		return true
	}
	if msg.CandidateID == "" {
		p.log.Error().Str("body", string(body)).Msg("回复消息缺少候选人ID，丢弃消息")
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if _, err := p.Process(ctx, msg); err != nil {
		// 锁竞争是瞬态的，重投等另一消费者释放；其余失败已落日志不再重投
		if errors.Is(err, ErrCandidateBusy) {
			p.log.Info().Str("candidate_id", msg.CandidateID).Msg("候选人正被其他消费者处理，消息重投")
			return false
		}
		p.log.Error().Err(err).Str("candidate_id", msg.CandidateID).Msg("候选人回复处理失败")
		return true
	}
	return true
}

// lastAskedFields 读取上一条外发消息中追问的字段，缺失时返回nil
func (p *ReplyProcessor) lastAskedFields(ctx context.Context, candidateID string) []types.FieldKey {
	last, err := p.messages.GetLastOutboundMessage(ctx, candidateID)
	if err != nil {
		p.log.Warn().Err(err).Str("candidate_id", candidateID).Msg("读取上一条外发消息失败")
		return nil
	}
	if last == nil || len(last.AskedFieldsJSON) == 0 {
		return nil
	}
	var fields []types.FieldKey
	if err := models.FromJSON(last.AskedFieldsJSON, &fields); err != nil {
		p.log.Warn().Err(err).Str("candidate_id", candidateID).Msg("解析追问字段记录失败")
		return nil
	}
	return fields
}

func (p *ReplyProcessor) recordError(span trace.Span, err error) error {
	tracing.RecordError(span, err, errorTypeFor(err))
	return err
}
