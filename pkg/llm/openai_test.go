package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/sentinel/pkg/message"
)

func TestOpenAI_StreamTextAndToolCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		frames := []string{
			`{"choices":[{"delta":{"content":"Hel"}}]}`,
			`{"choices":[{"delta":{"content":"lo"}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"think","arguments":"{\"thou"}}]}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"ght\":\"x\"}"}}]}}]}`,
			`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
		}
		for _, f := range frames {
			w.Write([]byte("data: " + f + "\n\n"))
		}
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer srv.Close()

	client := NewOpenAI(OpenAIConfig{APIKey: "test", BaseURL: srv.URL, Model: "gpt-test"})
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
			assert.Equal(t, "think", c.ToolCallName)
		case ChunkEnd:
			finish = c.Finish
		}
	}

	assert.Equal(t, "Hello", text)
	assert.True(t, gotToolCall)
	assert.Equal(t, FinishToolCalls, finish)
}

func TestOpenAI_AuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewOpenAI(OpenAIConfig{APIKey: "bad", BaseURL: srv.URL})
	_, err := client.Stream(context.Background(), nil, nil, RunConfig{})
	require.Error(t, err)

	var llmErr *Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, CategoryAuth, llmErr.Category)
}

func TestOpenAI_StreamCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n\n"))
		w.(http.Flusher).Flush()
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	client := NewOpenAI(OpenAIConfig{APIKey: "test", BaseURL: srv.URL})
	ch, err := client.Stream(ctx, nil, nil, RunConfig{})
	require.NoError(t, err)

	<-ch
	cancel()

	for range ch {
	}
}
