package tracing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskPII(t *testing.T) {
	assert.Equal(t, "", MaskPII(""), "空值保持为空")
	assert.Equal(t, "*", MaskPII("a"), "单字符完全掩码")
	assert.Equal(t, "j*", MaskPII("jo"), "双字符保留首位")
	masked := MaskPII("jane@candid.com")
	assert.Len(t, masked, len("jane@candid.com"), "掩码后长度不变")
	assert.Equal(t, "ja", masked[:2], "保留前2字符")
	assert.Equal(t, "om", masked[len(masked)-2:], "保留后2字符")
	assert.NotContains(t, masked, "candid", "中间内容应被掩盖")
	assert.Equal(t, "13*******78", MaskPII("13812345678"), "电话号码掩码")
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10), "未超长不截断")

	long := "SELECT * FROM candidates WHERE candidate_id = 'abc'"
	got := TruncateString(long, 20)
	assert.LessOrEqual(t, len([]rune(got)), 20, "截断后不超过上限")
	assert.Contains(t, got, "...", "截断应带省略号")
}

func TestSafeAttributeValue(t *testing.T) {
	masked := SafeAttributeValue("candidate.email", "jane@candid.com", DefaultMaxLength)
	assert.NotContains(t, masked, "jane@candid.com", "敏感键的值应被掩码")

	plain := SafeAttributeValue("db.operation", "SELECT", DefaultMaxLength)
	assert.Equal(t, "SELECT", plain, "非敏感键原样保留")
}
