package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/sentinel/pkg/message"
)

func TestAnthropic_StreamTextAndToolUse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		frames := []string{
			`{"type":"content_block_start","index":0,"content_block":{"type":"text"}}`,
			`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hi there"}}`,
			`{"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_1","name":"think"}}`,
			`{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"thought\":\"x\"}"}}`,
			`{"type":"message_delta","delta":{"stop_reason":"tool_use"}}`,
		}
		for _, f := range frames {
			w.Write([]byte("data: " + f + "\n\n"))
		}
	}))
	defer srv.Close()

	client := NewAnthropic(AnthropicConfig{APIKey: "test", BaseURL: srv.URL, Model: "claude-test"})
	ch, err := client.Stream(context.Background(), []message.Message{message.User("hi")}, nil, RunConfig{})
	require.NoError(t, err)

	var text string
	var gotToolCall bool
	var finish FinishReason
	for c := range ch {
		switch c.Kind {
		case ChunkText:
			text += c.Text
		case ChunkToolCallDelta:
			gotToolCall = true
			assert.Equal(t, "toolu_1", c.ToolCallID)
			assert.Equal(t, "think", c.ToolCallName)
		case ChunkEnd:
			finish = c.Finish
		}
	}

	assert.Equal(t, "Hi there", text)
	assert.True(t, gotToolCall)
	assert.Equal(t, FinishToolCalls, finish)
}

func TestAnthropic_RateLimitError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewAnthropic(AnthropicConfig{APIKey: "test", BaseURL: srv.URL})
	_, err := client.Stream(context.Background(), nil, nil, RunConfig{})
	require.Error(t, err)

	var llmErr *Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, CategoryRateLimit, llmErr.Category)
}
