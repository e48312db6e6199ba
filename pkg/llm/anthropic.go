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

// AnthropicConfig configures the Anthropic Messages API streaming
// client.
type AnthropicConfig struct {
	APIKey    string
	BaseURL   string // defaults to https://api.anthropic.com/v1
	Model     string
	MaxTokens int
}

type anthropicClient struct {
	cfg    AnthropicConfig
	client *httpclient.Client
}

func NewAnthropic(cfg AnthropicConfig) Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com/v1"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4096
	}
	return &anthropicClient{
		cfg:    cfg,
		client: httpclient.New(httpclient.WithHeaderParser(httpclient.ParseAnthropicHeaders)),
	}
}

type anthropicMessage struct {
	Role    string         `json:"role"`
	Content []anthropicPart `json:"content"`
}

type anthropicPart struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   string         `json:"content,omitempty"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// anthropicEvent covers the handful of server-sent event shapes this
// provider's stream emits: message_start/stop, content_block_start,
// content_block_delta, and error.
type anthropicEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
	Delta *struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
		StopReason  string `json:"stop_reason"`
	} `json:"delta"`
	ContentBlock *struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// toAnthropicMessages converts the universal message history, folding
// system messages out (Anthropic takes them as a top-level field) and
// tool results into tool_result content blocks.
func toAnthropicMessages(msgs []message.Message) (system string, out []anthropicMessage) {
	for _, m := range msgs {
		switch m.Role {
		case message.RoleSystem:
			if system != "" {
				system += "\n"
			}
			system += m.Text
		case message.RoleTool:
			out = append(out, anthropicMessage{
				Role: "user",
				Content: []anthropicPart{{
					Type:      "tool_result",
					ToolUseID: m.ToolCallID,
					Content:   m.Text,
				}},
			})
		case message.RoleAssistant:
			am := anthropicMessage{Role: "assistant"}
			if m.Text != "" {
				am.Content = append(am.Content, anthropicPart{Type: "text", Text: m.Text})
			}
			for _, tc := range m.ToolCalls {
				am.Content = append(am.Content, anthropicPart{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Name,
					Input: tc.Arguments,
				})
			}
			out = append(out, am)
		default:
			out = append(out, anthropicMessage{Role: "user", Content: []anthropicPart{{Type: "text", Text: m.Text}}})
		}
	}
	return system, out
}

func toAnthropicTools(descs []tool.Descriptor) []anthropicTool {
	out := make([]anthropicTool, 0, len(descs))
	for _, d := range descs {
		out = append(out, anthropicTool{Name: d.Name, Description: d.Description, InputSchema: d.ArgumentSchema})
	}
	return out
}

func (c *anthropicClient) Stream(ctx context.Context, messages []message.Message, tools []tool.Descriptor, cfg RunConfig) (<-chan Chunk, error) {
	model := cfg.Model
	if model == "" {
		model = c.cfg.Model
	}
	system, anthMessages := toAnthropicMessages(messages)

	maxTokens := c.cfg.MaxTokens
	if cfg.MaxOutputTokens > 0 {
		maxTokens = cfg.MaxOutputTokens
	}

	body, err := json.Marshal(map[string]any{
		"model":       model,
		"system":      system,
		"messages":    anthMessages,
		"tools":       toAnthropicTools(tools),
		"max_tokens":  maxTokens,
		"temperature": cfg.Temperature,
		"stream":      true,
	})
	if err != nil {
		return nil, &Error{Category: CategoryMalformed, Message: "encoding request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Category: CategoryTransport, Message: "building request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	// Do also returns an error alongside a non-2xx response; those are
	// classified by status code below.
	resp, err := c.client.Do(req)
	if err != nil && resp == nil {
		return nil, classifyTransportError(err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		resp.Body.Close()
		return nil, &Error{Category: CategoryAuth, Message: fmt.Sprintf("anthropic returned status %d", resp.StatusCode)}
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		resp.Body.Close()
		return nil, &Error{Category: CategoryRateLimit, Message: "anthropic rate limited"}
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, &Error{Category: CategoryTransport, Message: fmt.Sprintf("anthropic returned status %d", resp.StatusCode)}
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		blockIsToolUse := map[int]bool{}
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
			var ev anthropicEvent
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
				continue
			}

			switch ev.Type {
			case "error":
				msg := ""
				if ev.Error != nil {
					msg = ev.Error.Message
				}
				send(ctx, out, Chunk{Kind: ChunkEnd, Finish: FinishError, Err: &Error{Category: CategoryTransport, Message: msg}})
				return

			case "content_block_start":
				if ev.ContentBlock != nil && ev.ContentBlock.Type == "tool_use" {
					blockIsToolUse[ev.Index] = true
					toolCallIDs[ev.Index] = ev.ContentBlock.ID
					toolCallNames[ev.Index] = ev.ContentBlock.Name
				}

			case "content_block_delta":
				if ev.Delta == nil {
					continue
				}
				if ev.Delta.Type == "text_delta" && ev.Delta.Text != "" {
					if !send(ctx, out, Chunk{Kind: ChunkText, Text: ev.Delta.Text}) {
						return
					}
				}
				if ev.Delta.Type == "input_json_delta" && blockIsToolUse[ev.Index] {
					if !send(ctx, out, Chunk{
						Kind:         ChunkToolCallDelta,
						ToolCallID:   toolCallIDs[ev.Index],
						ToolCallName: toolCallNames[ev.Index],
						ArgsFragment: ev.Delta.PartialJSON,
					}) {
						return
					}
				}

			case "message_delta":
				if ev.Delta != nil && ev.Delta.StopReason != "" {
					send(ctx, out, Chunk{Kind: ChunkEnd, Finish: mapAnthropicStopReason(ev.Delta.StopReason)})
					return
				}

			case "message_stop":
				send(ctx, out, Chunk{Kind: ChunkEnd, Finish: FinishStop})
				return
			}
		}

		if err := scanner.Err(); err != nil {
			send(ctx, out, Chunk{Kind: ChunkEnd, Finish: FinishError, Err: &Error{Category: CategoryTransport, Message: "reading stream", Err: err}})
		}
	}()

	return out, nil
}

func mapAnthropicStopReason(reason string) FinishReason {
	switch reason {
	case "tool_use":
		return FinishToolCalls
	case "max_tokens":
		return FinishLength
	default:
		return FinishStop
	}
}
