package annotate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOpenAI(baseURL string) *OpenAI {
	return NewOpenAI(Options{
		Provider:    "openai",
		Model:       "gpt-test",
		APIKey:      "test-key",
		BaseURL:     baseURL,
		MaxTokens:   4096,
		Temperature: 0.6,
		Timeout:     time.Second,
	})
}

func TestOpenAIDescribe(t *testing.T) {
	var got openAIChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"`+"```"+`\nAdds one to x.\n`+"```"+`"}}]}`)
	}))
	defer srv.Close()

	o := newTestOpenAI(srv.URL)
	text, err := o.Describe(context.Background(), "int inc(int x) { return x + 1; }")
	require.NoError(t, err)
	assert.Equal(t, "Adds one to x.", text)

	assert.Equal(t, "gpt-test", got.Model)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Contains(t, got.Messages[0].Content, describePrompt)
	assert.Contains(t, got.Messages[0].Content, "int inc(int x)")
	assert.Greater(t, got.MaxTokens, 0)
	assert.Less(t, got.MaxTokens, 4096)
}

func TestOpenAIStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   FailKind
	}{
		{"quota", http.StatusTooManyRequests, FailQuota},
		{"server error", http.StatusInternalServerError, FailUnavailable},
		{"overloaded", http.StatusServiceUnavailable, FailUnavailable},
		{"request timeout", http.StatusRequestTimeout, FailUnavailable},
		{"bad key", http.StatusUnauthorized, FailMalformed},
		{"bad request", http.StatusBadRequest, FailMalformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, `{"error":{"message":"nope"}}`)
			}))
			defer srv.Close()

			_, err := newTestOpenAI(srv.URL).Describe(context.Background(), "int f;")
			k, ok := Kind(err)
			require.True(t, ok)
			assert.Equal(t, tc.want, k)
		})
	}
}

func TestOpenAIRetryAfterHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestOpenAI(srv.URL).Describe(context.Background(), "int f;")
	var de *DescribeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, FailQuota, de.Kind)
	assert.Equal(t, 7*time.Second, de.RetryAfter)
}

func TestOpenAIMalformedBodies(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not json", "oops"},
		{"no choices", `{"choices":[]}`},
		{"empty content", `{"choices":[{"message":{"content":"  "}}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tc.body)
			}))
			defer srv.Close()

			_, err := newTestOpenAI(srv.URL).Describe(context.Background(), "int f;")
			k, ok := Kind(err)
			require.True(t, ok)
			assert.Equal(t, FailMalformed, k)
		})
	}
}

func TestOpenAITimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(80 * time.Millisecond)
	}))
	defer srv.Close()

	o := NewOpenAI(Options{
		Model:     "gpt-test",
		APIKey:    "test-key",
		BaseURL:   srv.URL,
		MaxTokens: 256,
		Timeout:   20 * time.Millisecond,
	})
	_, err := o.Describe(context.Background(), "int f;")
	k, ok := Kind(err)
	require.True(t, ok)
	assert.Equal(t, FailTimeout, k)
}

func TestOpenAIEndpointNormalization(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"", "https://api.openai.com/v1/chat/completions"},
		{"https://api.groq.com/openai/v1", "https://api.groq.com/openai/v1/chat/completions"},
		{"http://localhost:8080", "http://localhost:8080/v1/chat/completions"},
		{"http://localhost:8080/v1/chat/completions", "http://localhost:8080/v1/chat/completions"},
	}
	for _, tc := range cases {
		o := NewOpenAI(Options{Model: "m", APIKey: "k", BaseURL: tc.base})
		assert.Equal(t, tc.want, o.endpoint, "base %q", tc.base)
	}
}
