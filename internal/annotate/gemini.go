package annotate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// Gemini implements Describer using Gemini text generation.
type Gemini struct {
	client      *genai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
}

func NewGemini(ctx context.Context, opts Options) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Gemini{
		client:      client,
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
		timeout:     opts.Timeout,
	}, nil
}

func (g *Gemini) Name() string { return "gemini/" + g.model }

func (g *Gemini) Describe(ctx context.Context, code string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	prompt := buildPrompt(code)
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt),
		&genai.GenerateContentConfig{
			Temperature:     genai.Ptr(g.temperature),
			MaxOutputTokens: int32(tokenBudget(g.maxTokens, prompt)),
		})
	if err != nil {
		return "", classifyGeminiErr(err)
	}
	text := cleanOutput(resp.Text())
	if text == "" {
		return "", &DescribeError{Kind: FailMalformed, Err: errors.New("model returned no usable text")}
	}
	return text, nil
}

func (g *Gemini) Close() error { return nil }

// classifyGeminiErr maps SDK errors onto the failure taxonomy. Plain
// context cancellation passes through so the caller can tell a stopped
// run from a failing service.
func classifyGeminiErr(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &DescribeError{Kind: FailTimeout, Err: err}
	}
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return &DescribeError{Kind: FailQuota, Err: err}
		case apiErr.Code >= http.StatusInternalServerError || apiErr.Code == http.StatusRequestTimeout:
			return &DescribeError{Kind: FailUnavailable, Err: err}
		default:
			return &DescribeError{Kind: FailMalformed, Err: err}
		}
	}
	// Some SDK paths flatten the API error into a plain string.
	s := err.Error()
	if strings.Contains(s, "429") || strings.Contains(s, "RESOURCE_EXHAUSTED") || strings.Contains(s, "quota") {
		return &DescribeError{Kind: FailQuota, Err: err}
	}
	return &DescribeError{Kind: FailUnavailable, Err: err}
}
