package reconcile

import (
	"candidate-engine-go/internal/constants"
	"candidate-engine-go/internal/types"
)

// fieldPriority 追问字段的固定优先级
// 优先级之外的字段按枚举声明顺序排在其后
var fieldPriority = []types.FieldKey{
	types.FieldLocation,
	types.FieldNoticePeriod,
	types.FieldExpectedSalary,
	types.FieldAvailability,
	types.FieldPortfolioURL,
}

// PendingFieldSelector 待追问字段选取器，只读不改档案
type PendingFieldSelector struct {
	maxFields int
}

// NewPendingFieldSelector 创建选取器，maxFields<=0时使用默认上限
func NewPendingFieldSelector(maxFields int) *PendingFieldSelector {
	if maxFields <= 0 {
		maxFields = constants.DefaultMaxPendingFields
	}
	return &PendingFieldSelector{maxFields: maxFields}
}

// Select 返回待追问字段列表，按固定优先级排序并截断到上限
// 字段待追问 = answered为false（含尚无状态的字段）；asked不影响入选，
// 已问未答的字段仍需跟踪
func (s *PendingFieldSelector) Select(profile types.CandidateFieldProfile) []types.FieldKey {
	return s.pick(profile, func(state *types.FieldState) bool {
		return state == nil || !state.Answered
	})
}

// SelectUnasked 与Select相同，但排除已发问等待回复的字段
// 供不希望在候选人回复前重复发问的协作方使用
func (s *PendingFieldSelector) SelectUnasked(profile types.CandidateFieldProfile) []types.FieldKey {
	return s.pick(profile, func(state *types.FieldState) bool {
		if state == nil {
			return true
		}
		return !state.Answered && !state.Asked
	})
}

func (s *PendingFieldSelector) pick(profile types.CandidateFieldProfile, pending func(*types.FieldState) bool) []types.FieldKey {
	var result []types.FieldKey
	seen := make(map[types.FieldKey]bool)

	consider := func(key types.FieldKey) {
		if len(result) >= s.maxFields || seen[key] {
			return
		}
		seen[key] = true
		if pending(profile[key]) {
			result = append(result, key)
		}
	}

	for _, key := range fieldPriority {
		consider(key)
	}
	for _, key := range types.AllFieldKeys() {
		consider(key)
	}
	return result
}
