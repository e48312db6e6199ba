package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/kadirpekel/sentinel/pkg/httpclient"
	"github.com/kadirpekel/sentinel/pkg/message"
	"github.com/kadirpekel/sentinel/pkg/tool"
)

// OpenAIConfig configures the OpenAI chat-completions streaming
// client.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // defaults to https://api.openai.com/v1
	Model   string
}

type openAIClient struct {
	cfg    OpenAIConfig
	client *httpclient.Client
}

// NewOpenAI returns a Client that hand-rolls the OpenAI
// chat-completions SSE stream, the same way this package's sibling
// provider implementations parse their own wire formats, so chunk
// normalization happens entirely in this package rather than behind a
// vendor SDK.
func NewOpenAI(cfg OpenAIConfig) Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	return &openAIClient{
		cfg: cfg,
		client: httpclient.New(
			httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders),
		),
	}
}

type openAIMessage struct {
	Role       string            `json:"role"`
	Content    string            `json:"content,omitempty"`
	ToolCalls  []openAIToolCall  `json:"tool_calls,omitempty"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
	Name       string            `json:"name,omitempty"`
}

type openAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAITool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		Parameters  map[string]any `json:"parameters"`
	} `json:"function"`
}

type openAIStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content   string           `json:"content"`
			ToolCalls []openAIToolCall `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func toOpenAIMessages(msgs []message.Message) []openAIMessage {
	out := make([]openAIMessage, 0, len(msgs))
	for _, m := range msgs {
		om := openAIMessage{Role: string(m.Role), Content: m.Text, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			args, _ := json.Marshal(tc.Arguments)
			otc := openAIToolCall{ID: tc.ID, Type: "function"}
			otc.Function.Name = tc.Name
			otc.Function.Arguments = string(args)
			om.ToolCalls = append(om.ToolCalls, otc)
		}
		out = append(out, om)
	}
	return out
}

func toOpenAITools(descs []tool.Descriptor) []openAITool {
	out := make([]openAITool, 0, len(descs))
	for _, d := range descs {
		t := openAITool{Type: "function"}
		t.Function.Name = d.Name
		t.Function.Description = d.Description
		t.Function.Parameters = d.ArgumentSchema
		out = append(out, t)
	}
	return out
}

func (c *openAIClient) Stream(ctx context.Context, messages []message.Message, tools []tool.Descriptor, cfg RunConfig) (<-chan Chunk, error) {
	model := cfg.Model
	if model == "" {
		model = c.cfg.Model
	}

	body, err := json.Marshal(map[string]any{
		"model":       model,
		"messages":    toOpenAIMessages(messages),
		"tools":       toOpenAITools(tools),
		"stream":      true,
		"temperature": cfg.Temperature,
		"max_tokens":  cfg.MaxOutputTokens,
	})
	if err != nil {
		return nil, &Error{Category: CategoryMalformed, Message: "encoding request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Category: CategoryTransport, Message: "building request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "text/event-stream")

	// Do also returns an error alongside a non-2xx response; those are
	// classified by status code below.
	resp, err := c.client.Do(req)
	if err != nil && resp == nil {
		return nil, classifyTransportError(err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		resp.Body.Close()
		return nil, &Error{Category: CategoryAuth, Message: fmt.Sprintf("openai returned status %d", resp.StatusCode)}
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		resp.Body.Close()
		return nil, &Error{Category: CategoryRateLimit, Message: "openai rate limited"}
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, &Error{Category: CategoryTransport, Message: fmt.Sprintf("openai returned status %d", resp.StatusCode)}
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		toolCallIDs := map[int]string{}
		toolCallNames := map[int]string{}

		for scanner.Scan() {
			if ctx.Err() != nil {
				return
			}
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				send(ctx, out, Chunk{Kind: ChunkEnd, Finish: FinishStop})
				return
			}

			var chunk openAIStreamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if chunk.Error != nil {
				send(ctx, out, Chunk{Kind: ChunkEnd, Finish: FinishError, Err: &Error{Category: CategoryTransport, Message: chunk.Error.Message}})
				return
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]

			if choice.Delta.Content != "" {
				if !send(ctx, out, Chunk{Kind: ChunkText, Text: choice.Delta.Content}) {
					return
				}
			}

			for i, tc := range choice.Delta.ToolCalls {
				id := tc.ID
				if id == "" {
					id = toolCallIDs[i]
				} else {
					toolCallIDs[i] = id
				}
				name := tc.Function.Name
				if name == "" {
					name = toolCallNames[i]
				} else {
					toolCallNames[i] = name
				}
				if !send(ctx, out, Chunk{
					Kind:         ChunkToolCallDelta,
					ToolCallID:   id,
					ToolCallName: name,
					ArgsFragment: tc.Function.Arguments,
				}) {
					return
				}
			}

			if choice.FinishReason != "" {
				send(ctx, out, Chunk{Kind: ChunkEnd, Finish: mapFinishReason(choice.FinishReason)})
				return
			}
		}

		if err := scanner.Err(); err != nil {
			send(ctx, out, Chunk{Kind: ChunkEnd, Finish: FinishError, Err: &Error{Category: CategoryTransport, Message: "reading stream", Err: err}})
		}
	}()

	return out, nil
}

func mapFinishReason(reason string) FinishReason {
	switch reason {
	case "tool_calls":
		return FinishToolCalls
	case "length":
		return FinishLength
	case "content_filter":
		return FinishContentFilter
	default:
		return FinishStop
	}
}

func classifyTransportError(err error) *Error {
	if re, ok := err.(*httpclient.RetryableError); ok {
		switch re.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &Error{Category: CategoryAuth, Message: re.Message, Err: err}
		case http.StatusTooManyRequests:
			return &Error{Category: CategoryRateLimit, Message: re.Message, Err: err}
		}
	}
	return &Error{Category: CategoryTransport, Message: "request failed", Err: err}
}

// send delivers a Chunk unless ctx is cancelled first, returning
// false when the stream should stop.
func send(ctx context.Context, out chan<- Chunk, c Chunk) bool {
	select {
	case out <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
