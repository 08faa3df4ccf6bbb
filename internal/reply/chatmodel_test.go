package reply

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	einoschema "github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOpenAIChatModelGenerate 验证请求携带鉴权与模型名，并解析出补全内容
func TestOpenAIChatModelGenerate(t *testing.T) {
	var gotAuth string
	var gotReq chatCompletionRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		content := `{"classification":"interested"}`
		resp := chatCompletionResponse{
			Choices: []chatCompletionChoice{{}},
		}
		resp.Choices[0].Message.Role = "assistant"
		resp.Choices[0].Message.Content = &content
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	chatModel, err := NewOpenAIChatModel("test-key", server.URL, "qwen-turbo")
	require.NoError(t, err, "构造聊天模型不应失败")

	message, err := chatModel.Generate(context.Background(), []*einoschema.Message{
		{Role: "system", Content: "classify"},
		{Role: "user", Content: "I'm interested"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", gotAuth, "应携带Bearer鉴权头")
	assert.Equal(t, "qwen-turbo", gotReq.Model)
	assert.Len(t, gotReq.Messages, 2)
	assert.Equal(t, einoschema.RoleType("assistant"), message.Role)
	assert.Contains(t, message.Content, "interested")
}

// TestOpenAIChatModelGenerateHTTPError 非200响应应报错
func TestOpenAIChatModelGenerateHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	chatModel, err := NewOpenAIChatModel("bad-key", server.URL, "")
	require.NoError(t, err)

	_, err = chatModel.Generate(context.Background(), []*einoschema.Message{
		{Role: "user", Content: "hello"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API请求失败")
}

func TestNewOpenAIChatModelRequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIChatModel("", "", "")
	require.Error(t, err, "缺少API密钥应拒绝构造")
}
