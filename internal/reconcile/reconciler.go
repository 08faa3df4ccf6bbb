package reconcile

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"candidate-engine-go/internal/constants"
	"candidate-engine-go/internal/logger"
	"candidate-engine-go/internal/types"
)

// ProfileStore 候选人字段档案的持久化接口
// 调用方必须保证同一候选人的合并操作串行，置信度覆盖策略在交错下不可交换
type ProfileStore interface {
	// GetProfile 读取档案，不存在时返回空档案而非错误
	GetProfile(ctx context.Context, candidateID string) (types.CandidateFieldProfile, error)
	// SaveProfile 整体写回档案
	SaveProfile(ctx context.Context, candidateID string, profile types.CandidateFieldProfile) error
}

// Reconciler 字段状态调和器
// FieldState只允许经由这里的Merge与MarkAsked修改
type Reconciler struct {
	store ProfileStore
	log   zerolog.Logger
}

// NewReconciler 创建调和器
func NewReconciler(store ProfileStore) *Reconciler {
	return &Reconciler{
		store: store,
		log:   logger.Component("reconciler"),
	}
}

// Merge 将一条新观测合并进候选人档案
// 覆盖策略基于置信度而非来源：新观测置信度不低于当前值或当前值为空才覆盖，
// 平手时新观测胜出。合并后answered按应答阈值重算
func (r *Reconciler) Merge(ctx context.Context, candidateID string, evidence types.ExtractedField) (*types.FieldState, error) {
	if !types.IsValidFieldKey(evidence.Name) {
		return nil, fmt.Errorf("未知的字段键: %s", evidence.Name)
	}

	profile, err := r.store.GetProfile(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("读取候选人档案失败: %w", err)
	}
	if profile == nil {
		profile = types.CandidateFieldProfile{}
	}

	state := applyEvidence(profile[evidence.Name], evidence)
	profile[evidence.Name] = state

	if err := r.store.SaveProfile(ctx, candidateID, profile); err != nil {
		return nil, fmt.Errorf("写回候选人档案失败: %w", err)
	}

	r.log.Debug().
		Str("candidate_id", candidateID).
		Str("field", string(evidence.Name)).
		Float64("confidence", state.Confidence).
		Bool("answered", state.Answered).
		Msg("字段观测已合并")

	return state, nil
}

// MergeAll 批量合并观测，单条字段键非法只跳过并记录，不中断整批
func (r *Reconciler) MergeAll(ctx context.Context, candidateID string, evidence []types.ExtractedField) error {
	for _, ev := range evidence {
		if _, err := r.Merge(ctx, candidateID, ev); err != nil {
			if !types.IsValidFieldKey(ev.Name) {
				r.log.Warn().Str("field", string(ev.Name)).Msg("跳过未知字段键的观测")
				continue
			}
			return err
		}
	}
	return nil
}

// applyEvidence 把一条观测合并进既有状态，返回新状态
// 空值观测不产生任何写入，避免用零信息污染档案
func applyEvidence(current *types.FieldState, evidence types.ExtractedField) *types.FieldState {
	confidence := clamp01(evidence.Confidence)

	if current == nil {
		state := &types.FieldState{}
		if evidence.Value != "" {
			state.Value = evidence.Value
			state.Confidence = confidence
			state.Source = evidence.Source
		}
		state.Answered = state.Value != "" && state.Confidence > constants.AnswerConfidenceThreshold
		return state
	}

	state := *current
	if evidence.Value != "" && (confidence >= state.Confidence || state.Value == "") {
		state.Value = evidence.Value
		state.Confidence = confidence
		state.Source = evidence.Source
	}
	state.Answered = state.Value != "" && state.Confidence > constants.AnswerConfidenceThreshold

	// 回复观测答上了此前追问过的字段，闭环后清除asked标记
	if evidence.Source == types.SourceReply && state.Asked && state.Answered {
		state.Asked = false
	}

	return &state
}

// MarkAsked 标记已就这些字段向候选人发问
// 由外部消息协作方在问题发出后立即调用，避免下一轮重复追问
func (r *Reconciler) MarkAsked(ctx context.Context, candidateID string, fields []types.FieldKey) error {
	profile, err := r.store.GetProfile(ctx, candidateID)
	if err != nil {
		return fmt.Errorf("读取候选人档案失败: %w", err)
	}
	if profile == nil {
		profile = types.CandidateFieldProfile{}
	}

	for _, key := range fields {
		if !types.IsValidFieldKey(key) {
			r.log.Warn().Str("field", string(key)).Msg("跳过未知字段键的asked标记")
			continue
		}
		state := profile[key]
		if state == nil {
			state = &types.FieldState{}
			profile[key] = state
		}
		state.Asked = true
	}

	if err := r.store.SaveProfile(ctx, candidateID, profile); err != nil {
		return fmt.Errorf("写回候选人档案失败: %w", err)
	}
	return nil
}

// GetProfile 读取候选人档案
func (r *Reconciler) GetProfile(ctx context.Context, candidateID string) (types.CandidateFieldProfile, error) {
	profile, err := r.store.GetProfile(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		profile = types.CandidateFieldProfile{}
	}
	return profile, nil
}

// OverallConfidence 整档置信度：非零字段置信度的均值，以百分比表示
// 无任何已填字段的候选人为0
func OverallConfidence(profile types.CandidateFieldProfile) float64 {
	sum := 0.0
	count := 0
	for _, state := range profile {
		if state != nil && state.Confidence > 0 {
			sum += state.Confidence
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count) * 100
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
