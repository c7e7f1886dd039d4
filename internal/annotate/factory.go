package annotate

import (
	"context"
	"fmt"
)

// New builds the Describer for the configured provider. gemini talks to
// the Gemini API through its SDK; openai covers any chat completions
// endpoint.
func New(ctx context.Context, opts Options) (Describer, error) {
	switch opts.Provider {
	case "gemini":
		return NewGemini(ctx, opts)
	case "openai":
		return NewOpenAI(opts), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s (expected gemini or openai)", opts.Provider)
	}
}
