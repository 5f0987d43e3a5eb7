package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/alchemorsel/pantrychef/internal/infrastructure/config"
	"github.com/alchemorsel/pantrychef/internal/ports/outbound"
)

type recordedRequest struct {
	Model          string           `json:"model"`
	Messages       []map[string]any `json:"messages"`
	ResponseFormat map[string]any   `json:"response_format"`
}

func completionServer(t *testing.T, content string, captured *recordedRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(body, captured))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   captured.Model,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
}

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	return NewClient(config.AIConfig{
		Provider:    "openai",
		APIKey:      "test-key",
		Model:       "gpt-4o-mini",
		VisionModel: "gpt-4o",
		BaseURL:     server.URL + "/v1/",
		MaxTokens:   512,
		Temperature: 0.2,
	}, zaptest.NewLogger(t))
}

func TestComplete_ObjectSchema(t *testing.T) {
	var captured recordedRequest
	server := completionServer(t, `{"ingredients":["egg"]}`, &captured)
	defer server.Close()

	out, err := newTestClient(t, server).Complete(context.Background(), outbound.CompletionRequest{
		Name:   "detectIngredients",
		System: "be precise",
		Messages: []outbound.Message{{
			Role:  outbound.RoleUser,
			Text:  "what is in this photo?",
			Media: []outbound.Media{{URL: "data:image/png;base64,AAAA", ContentType: "image/png"}},
		}},
		Schema: outbound.OutputSchema{
			Name:     "detected_ingredients",
			Document: map[string]any{"type": "object"},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, `{"ingredients":["egg"]}`, out)
	assert.Equal(t, "gpt-4o", captured.Model, "media requests use the vision model")
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0]["role"])
	parts, ok := captured.Messages[1]["content"].([]any)
	require.True(t, ok)
	require.Len(t, parts, 2)
	assert.Equal(t, "image_url", parts[1].(map[string]any)["type"])
	assert.Equal(t, "json_schema", captured.ResponseFormat["type"])
}

func TestComplete_ArraySchemaIsWrapped(t *testing.T) {
	var captured recordedRequest
	server := completionServer(t, `{"items":[{"title":"Frittata"}]}`, &captured)
	defer server.Close()

	out, err := newTestClient(t, server).Complete(context.Background(), outbound.CompletionRequest{
		Name: "generateRecipes",
		Messages: []outbound.Message{
			{Role: outbound.RoleUser, Text: "recipes please"},
			{Role: outbound.RoleAssistant, Text: "[]"},
			{Role: outbound.RoleUser, Text: "fix it"},
		},
		Schema: outbound.OutputSchema{
			Name:     "generated_recipes",
			Document: map[string]any{"type": "array", "items": map[string]any{"type": "object"}},
		},
	})

	require.NoError(t, err)
	assert.JSONEq(t, `[{"title":"Frittata"}]`, out)
	assert.Equal(t, "gpt-4o-mini", captured.Model)
	require.Len(t, captured.Messages, 3)
	assert.Equal(t, "assistant", captured.Messages[1]["role"])

	schema := captured.ResponseFormat["json_schema"].(map[string]any)["schema"].(map[string]any)
	assert.Equal(t, "object", schema["type"])
	assert.Contains(t, schema["properties"], "items")
}

func TestComplete_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server).Complete(context.Background(), outbound.CompletionRequest{
		Name:     "generateRecipes",
		Messages: []outbound.Message{{Role: outbound.RoleUser, Text: "hi"}},
	})

	assert.Error(t, err)
}

func TestUnwrap(t *testing.T) {
	assert.Equal(t, `[1,2]`, unwrap(`{"items":[1,2]}`))
	assert.Equal(t, `{"other":1}`, unwrap(`{"other":1}`))
	assert.Equal(t, `not json`, unwrap(`not json`))
}

func TestObjectSchema(t *testing.T) {
	schema, wrapped := objectSchema(nil)
	assert.Nil(t, schema)
	assert.False(t, wrapped)

	obj := map[string]any{"type": "object"}
	schema, wrapped = objectSchema(obj)
	assert.Equal(t, obj, schema)
	assert.False(t, wrapped)

	_, wrapped = objectSchema(map[string]any{"type": "array"})
	assert.True(t, wrapped)
}
