// Package llm defines a provider-agnostic streaming LLM client and
// normalizes each provider's wire format into a single Chunk shape so
// no provider-specific type ever leaks past this package.
package llm

import (
	"context"

	"github.com/kadirpekel/sentinel/pkg/message"
	"github.com/kadirpekel/sentinel/pkg/tool"
)

// ChunkKind discriminates the normalized stream element.
type ChunkKind int

const (
	ChunkText ChunkKind = iota
	ChunkToolCallDelta
	ChunkEnd
)

// FinishReason is the terminal reason a stream ended, carried on the
// ChunkEnd element.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishToolCalls     FinishReason = "tool_calls"
	FinishLength        FinishReason = "length"
	FinishContentFilter FinishReason = "content_filter"
	FinishError         FinishReason = "error"
)

// Chunk is the normalized unit a Client emits. Kind determines which
// other fields are meaningful:
//   - ChunkText: Text
//   - ChunkToolCallDelta: ToolCallID, ToolCallName, ArgsFragment
//   - ChunkEnd: Finish (and Err if Finish == FinishError)
type Chunk struct {
	Kind ChunkKind

	Text string

	ToolCallID   string
	ToolCallName string
	ArgsFragment string

	Finish FinishReason
	Err    error
}

// RunConfig bounds a single streaming call.
type RunConfig struct {
	Model           string
	Temperature     float64
	MaxOutputTokens int
}

// Client is the provider-agnostic streaming interface every LLM
// provider implementation satisfies. Stream returns a channel that is
// closed after a ChunkEnd is sent, when the context is cancelled, or
// when the provider's response body ends without a terminal marker (in
// which case no ChunkEnd is sent); the caller must drain it to avoid
// leaking the provider's goroutine.
type Client interface {
	Stream(ctx context.Context, messages []message.Message, tools []tool.Descriptor, cfg RunConfig) (<-chan Chunk, error)
}
