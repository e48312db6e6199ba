package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/kadirpekel/sentinel/pkg/message"
)

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

func encoding() (*tiktoken.Tiktoken, error) {
	encOnce.Do(func() {
		enc, encErr = tiktoken.GetEncoding("cl100k_base")
	})
	return enc, encErr
}

// CountTokens estimates the token count of text using a cl100k_base
// encoding. Estimates are approximate across providers that don't use
// this exact tokenizer. Nothing else in this module calls it: prompt
// composition and the providers do not count tokens.
func CountTokens(text string) int {
	e, err := encoding()
	if err != nil {
		// Fall back to a conservative 4-chars-per-token heuristic if
		// the encoder can't be loaded (e.g. offline without the
		// bundled vocab file).
		return (len(text) + 3) / 4
	}
	return len(e.Encode(text, nil, nil))
}

// CountMessageTokens sums the estimated token count across a message
// history (message text plus tool-call names). Prompt composition
// does not truncate history.
func CountMessageTokens(messages []message.Message) int {
	total := 0
	for _, m := range messages {
		total += CountTokens(m.Text)
		for _, tc := range m.ToolCalls {
			total += CountTokens(tc.Name)
		}
	}
	return total
}
