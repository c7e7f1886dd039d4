package annotate

import "strings"

// describePrompt is the instruction sent ahead of each function body.
const describePrompt = "Write a top comment that explains the important steps and the goal of this function."

// minCompletionTokens keeps the answer budget usable even when a huge
// function eats most of the configured token limit.
const minCompletionTokens = 64

func buildPrompt(code string) string {
	return describePrompt + "\n\n" + code
}

// tokenBudget estimates the completion tokens left after the prompt has
// taken its share, at roughly four characters per token.
func tokenBudget(maxTokens int, prompt string) int {
	budget := maxTokens - len(prompt)/4
	if budget < minCompletionTokens {
		return minCompletionTokens
	}
	return budget
}

// cleanOutput strips the markdown wrapping and comment markers models
// like to add around the text they were asked for.
func cleanOutput(s string) string {
	out := strings.TrimSpace(s)
	if strings.HasPrefix(out, "```") {
		if i := strings.IndexByte(out, '\n'); i >= 0 {
			out = out[i+1:]
		} else {
			out = ""
		}
		out = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(out), "```"))
	}
	lines := strings.Split(out, "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "/*")
		line = strings.TrimSuffix(line, "*/")
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "//")
		line = strings.TrimPrefix(line, "*")
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
