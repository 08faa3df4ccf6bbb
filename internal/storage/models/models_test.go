package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candidate-engine-go/internal/types"
)

func TestProfileJSONRoundTrip(t *testing.T) {
	profile := types.CandidateFieldProfile{
		types.FieldEmail: &types.FieldState{
			Value:      "jane@example.org",
			Confidence: 0.95,
			Source:     types.SourceResume,
			Answered:   true,
		},
		types.FieldNoticePeriod: &types.FieldState{
			Asked: true,
		},
	}

	data, err := ToJSON(profile)
	require.NoError(t, err, "序列化档案不应该返回错误")
	require.NotEmpty(t, data, "档案JSON不应为空")

	var restored types.CandidateFieldProfile
	require.NoError(t, FromJSON(data, &restored), "反序列化档案不应该返回错误")

	require.NotNil(t, restored[types.FieldEmail], "邮箱字段状态应被还原")
	assert.Equal(t, "jane@example.org", restored[types.FieldEmail].Value, "字段值应保持不变")
	assert.True(t, restored[types.FieldEmail].Answered, "已回答标志应保持不变")
	require.NotNil(t, restored[types.FieldNoticePeriod], "通知期字段状态应被还原")
	assert.True(t, restored[types.FieldNoticePeriod].Asked, "已追问标志应保持不变")
}

func TestToJSONNilValue(t *testing.T) {
	data, err := ToJSON(nil)
	require.NoError(t, err, "nil值序列化不应该返回错误")
	assert.Nil(t, data, "nil值应得到空JSON")
}

func TestFromJSONEmptyData(t *testing.T) {
	var profile types.CandidateFieldProfile
	require.NoError(t, FromJSON(nil, &profile), "空JSON反序列化不应该返回错误")
	assert.Nil(t, profile, "空JSON不应产生数据")
}
