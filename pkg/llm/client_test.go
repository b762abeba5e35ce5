package llm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillforge/pkg/config"
	"skillforge/pkg/errors"
)

func TestClient_AnthropicHappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"type": "text", "text": "hello"}},
		})
	}))
	defer srv.Close()

	c := New(config.LLMConfig{Provider: "anthropic", APIKey: "secret", Model: "claude"})
	overrideURL(c, srv.URL)

	out, err := c.chatAnthropic(t.Context(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestClient_Returns401Immediately(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(config.LLMConfig{Provider: "anthropic", APIKey: "bad", Model: "claude"})
	overrideURL(c, srv.URL)

	_, err := c.chatAnthropic(t.Context(), "sys", "user")
	require.Error(t, err)
	code, ok := errors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeAuthFailed, code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_RetriesServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"type": "text", "text": "recovered"}},
		})
	}))
	defer srv.Close()

	c := New(config.LLMConfig{Provider: "anthropic", APIKey: "k", Model: "claude"})
	overrideURL(c, srv.URL)

	out, err := c.chatAnthropic(t.Context(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "recovered", out)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_OpenAIHappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": "hi"}}},
		})
	}))
	defer srv.Close()

	c := New(config.LLMConfig{Provider: "openai", APIKey: "secret", Model: "gpt"})
	overrideOpenAIURL(c, srv.URL)

	out, err := c.chatOpenAI(t.Context(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
}

// overrideURL/overrideOpenAIURL point the package-level endpoint constants at
// a test server. They exist only in _test.go and never ship in the binary.
func overrideURL(c *Client, url string) {
	anthropicURLOverride = url
}

func overrideOpenAIURL(c *Client, url string) {
	openaiURLOverride = url
}
