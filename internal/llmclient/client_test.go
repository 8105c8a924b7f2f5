// File: internal/llmclient/client_test.go
package llmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pipemedic/pipemedic/internal/analyzer"
	"github.com/pipemedic/pipemedic/internal/config"
	"github.com/pipemedic/pipemedic/internal/healer"
)

func testConfig(baseURL string) config.AIConfig {
	return config.AIConfig{
		Provider:   config.ProviderOpenAI,
		APIKey:     "test-key",
		BaseURL:    baseURL,
		Model:      "openai/gpt-4o-mini",
		MaxRetries: 2,
		APITimeout: 5 * time.Second,
	}
}

func chatResponse(content string) string {
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
		"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 20},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	t.Run("Missing API Key", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig("https://api.example.com/v1")
		cfg.APIKey = ""
		_, err := NewClient(cfg, zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("Missing Base URL", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig("")
		_, err := NewClient(cfg, zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("Trailing Slash Normalized", func(t *testing.T) {
		t.Parallel()
		c, err := NewClient(testConfig("https://api.example.com/v1/"), zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, "https://api.example.com/v1/chat/completions", c.endpoint)
	})
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	req := healer.FixRequest{
		ErrorText:    "KeyError: 'uid'",
		Source:       "df['uid']",
		SchemaSample: "[id (int)]",
		Attempt:      1,
	}

	t.Run("Success Strips Fences", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var payload map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "openai/gpt-4o-mini", payload["model"])

			w.Write([]byte(chatResponse("```python\ndf['id']\n```")))
		}))
		defer server.Close()

		c, err := NewClient(testConfig(server.URL), zap.NewNop())
		require.NoError(t, err)

		fix, err := c.Generate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "df['id']", fix)
	})

	t.Run("Retries Server Errors", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Write([]byte(chatResponse("df['id']")))
		}))
		defer server.Close()

		c, err := NewClient(testConfig(server.URL), zap.NewNop())
		require.NoError(t, err)

		fix, err := c.Generate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "df['id']", fix)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("Auth Failure Is Permanent", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		c, err := NewClient(testConfig(server.URL), zap.NewNop())
		require.NoError(t, err)

		_, err = c.Generate(context.Background(), req)
		require.Error(t, err)
		assert.Equal(t, int32(1), calls.Load(), "credential rejection must not be retried")
	})

	t.Run("Empty Choices Fails", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices": []}`))
		}))
		defer server.Close()

		c, err := NewClient(testConfig(server.URL), zap.NewNop())
		require.NoError(t, err)

		_, err = c.Generate(context.Background(), req)
		assert.Error(t, err)
	})

	t.Run("Service Error Payload Fails", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"error": {"message": "model not found", "type": "invalid_request_error"}}`))
		}))
		defer server.Close()

		c, err := NewClient(testConfig(server.URL), zap.NewNop())
		require.NoError(t, err)

		_, err = c.Generate(context.Background(), req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "model not found")
	})
}

func TestStripCodeFences(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{"No Fences", "print('hi')", "print('hi')"},
		{"Bare Fences", "```\nprint('hi')\n```", "print('hi')"},
		{"Language Tag", "```python\nprint('hi')\n```", "print('hi')"},
		{"Surrounding Whitespace", "  \n```python\nprint('hi')\n```\n  ", "print('hi')"},
		{"Multiline Body", "```python\na = 1\nb = 2\n```", "a = 1\nb = 2"},
		{"Unclosed Fence", "```python\nprint('hi')", "print('hi')"},
		{"Fence Only", "```", ""},
		{"Empty", "", ""},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, StripCodeFences(tc.input))
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	t.Run("First Attempt", func(t *testing.T) {
		t.Parallel()
		p := buildPrompt(healer.FixRequest{
			ErrorText:    "KeyError: 'uid'",
			Source:       "df['uid']",
			SchemaSample: "[id (int)]",
			Attempt:      1,
		})

		assert.Contains(t, p, "ERROR LOG:\nKeyError: 'uid'")
		assert.Contains(t, p, "CURRENT CODE:\ndf['uid']")
		assert.Contains(t, p, "DATA COLUMNS (from sample):\n[id (int)]")
		assert.NotContains(t, p, "PREVIOUS FIX")
	})

	t.Run("Retry Attempt Feeds Back Prior Fix", func(t *testing.T) {
		t.Parallel()
		p := buildPrompt(healer.FixRequest{
			ErrorText:     "KeyError: 'uid'",
			Source:        "df['id']",
			SchemaSample:  "[id (int)]",
			Attempt:       2,
			PreviousFix:   "df['id']",
			PreviousError: "KeyError: 'name'",
		})

		assert.Contains(t, p, "YOUR PREVIOUS FIX (Attempt 1):\ndf['id']")
		assert.Contains(t, p, "NEW ERROR AFTER YOUR FIX:\nKeyError: 'name'")
		assert.Contains(t, p, "ORIGINAL ERROR:\nKeyError: 'uid'")
	})

	t.Run("Diagnosis Hint Appended", func(t *testing.T) {
		t.Parallel()
		d := analyzer.Analyze("ModuleNotFoundError: No module named 'requests'")
		p := buildPrompt(healer.FixRequest{
			ErrorText: "err",
			Source:    "src",
			Attempt:   1,
			Diagnosis: &d,
		})

		assert.Contains(t, p, "HINT (missing_dependency):")
		assert.Contains(t, p, "requests")
	})
}
