package annotate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// OpenAI implements Describer against any service speaking the chat
// completions protocol. The endpoint is configurable, so it also covers
// self-hosted or alternative providers exposing the same API.
type OpenAI struct {
	client      *http.Client
	apiKey      string
	model       string
	endpoint    string
	maxTokens   int
	temperature float32
}

type openAIChatRequest struct {
	Model       string              `json:"model"`
	Messages    []openAIChatMessage `json:"messages"`
	Temperature float32             `json:"temperature,omitempty"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIChatMessage `json:"message"`
	} `json:"choices"`
}

func NewOpenAI(opts Options) *OpenAI {
	endpoint := strings.TrimSpace(opts.BaseURL)
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1/chat/completions"
	} else {
		endpoint = strings.TrimRight(endpoint, "/")
		if !strings.HasSuffix(endpoint, "/chat/completions") {
			if strings.HasSuffix(endpoint, "/v1") {
				endpoint += "/chat/completions"
			} else {
				endpoint += "/v1/chat/completions"
			}
		}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAI{
		client:      &http.Client{Timeout: timeout},
		apiKey:      opts.APIKey,
		model:       opts.Model,
		endpoint:    endpoint,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
	}
}

func (o *OpenAI) Name() string { return "openai/" + o.model }

func (o *OpenAI) Describe(ctx context.Context, code string) (string, error) {
	prompt := buildPrompt(code)
	body, err := json.Marshal(openAIChatRequest{
		Model: o.model,
		Messages: []openAIChatMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: o.temperature,
		MaxTokens:   tokenBudget(o.maxTokens, prompt),
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", classifyTransportErr(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &DescribeError{Kind: FailUnavailable, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", classifyHTTPStatus(resp, raw)
	}

	var parsed openAIChatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &DescribeError{Kind: FailMalformed, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if len(parsed.Choices) == 0 {
		return "", &DescribeError{Kind: FailMalformed, Err: errors.New("response has no choices")}
	}
	text := cleanOutput(parsed.Choices[0].Message.Content)
	if text == "" {
		return "", &DescribeError{Kind: FailMalformed, Err: errors.New("model returned no usable text")}
	}
	return text, nil
}

func (o *OpenAI) Close() error {
	o.client.CloseIdleConnections()
	return nil
}

func classifyTransportErr(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &DescribeError{Kind: FailTimeout, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &DescribeError{Kind: FailTimeout, Err: err}
	}
	return &DescribeError{Kind: FailUnavailable, Err: err}
}

func classifyHTTPStatus(resp *http.Response, raw []byte) error {
	err := fmt.Errorf("chat request failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &DescribeError{
			Kind:       FailQuota,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        err,
		}
	case resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusRequestTimeout:
		return &DescribeError{Kind: FailUnavailable, Err: err}
	default:
		return &DescribeError{Kind: FailMalformed, Err: err}
	}
}

// parseRetryAfter reads the Retry-After header in either of its legal
// forms, seconds or an HTTP date.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
