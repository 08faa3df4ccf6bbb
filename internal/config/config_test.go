package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadConfigFromFile 测试从YAML文件加载配置
func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
llm:
  model: qwen-plus
  enabled: true
tika:
  server_url: http://tika.internal:9998
  timeout_seconds: 30
extractor:
  min_text_length: 100
  chunk_size: 3000
  chunk_overlap: 200
selector:
  max_pending_fields: 2
mysql:
  host: db.internal
  port: 3306
  database: candidate_engine
logger:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err, "加载配置文件不应失败")

	assert.Equal(t, "qwen-plus", cfg.LLM.Model)
	assert.True(t, cfg.LLM.Enabled)
	assert.Equal(t, "http://tika.internal:9998", cfg.Tika.ServerURL)
	assert.Equal(t, 30, cfg.Tika.Timeout)
	assert.Equal(t, 2, cfg.Selector.MaxPendingFields)
	assert.Equal(t, "db.internal", cfg.MySQL.Host)
	assert.Equal(t, "debug", cfg.Logger.Level)
}

// TestLoadConfigDefaults 测试未配置字段的默认值补齐
func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logger:\n  level: info\n"), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.Extractor.MinTextLength, "文本长度下限应有默认值")
	assert.Equal(t, 3000, cfg.Extractor.ChunkSize)
	assert.Equal(t, 200, cfg.Extractor.ChunkOverlap)
	assert.Equal(t, 20, cfg.Extractor.MaxSkills)
	assert.Equal(t, 3, cfg.Selector.MaxPendingFields)
	assert.Equal(t, 300, cfg.OCR.RenderDPI)
	assert.Equal(t, "5s", cfg.RabbitMQ.RetryInterval)
	assert.NotEmpty(t, cfg.OCR.Languages)
}

// TestLoadConfigMissingFileInTest 测试环境下找不到配置文件时回退到默认配置
func TestLoadConfigMissingFileInTest(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.NoError(t, err, "测试环境下应回退到默认配置而非报错")
	require.NotNil(t, cfg)
	assert.Equal(t, "localhost:6379", cfg.Redis.Address)
}

// TestEnvOverrides 测试环境变量覆盖
func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  api_key: from_file\n"), 0644))

	t.Setenv("LLM_API_KEY", "from_env")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from_env", cfg.LLM.APIKey, "环境变量应覆盖文件中的API Key")
}

// TestGetDuration 测试时长解析辅助函数
func TestGetDuration(t *testing.T) {
	assert.Equal(t, 10*time.Second, GetDuration("10s", time.Minute))
	assert.Equal(t, time.Minute, GetDuration("", time.Minute))
	assert.Equal(t, time.Minute, GetDuration("not-a-duration", time.Minute))
}
