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

// GeminiConfig configures the Gemini generateContent streaming
// client.
type GeminiConfig struct {
	APIKey  string
	BaseURL string // defaults to https://generativelanguage.googleapis.com/v1beta
	Model   string
}

type geminiClient struct {
	cfg    GeminiConfig
	client *httpclient.Client
}

func NewGemini(cfg GeminiConfig) Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	return &geminiClient{
		cfg:    cfg,
		client: httpclient.New(httpclient.WithHeaderParser(httpclient.ParseGeminiHeaders)),
	}
}

type geminiPart struct {
	Text         string          `json:"text,omitempty"`
	FunctionCall *geminiFuncCall `json:"functionCall,omitempty"`
	FunctionResp *geminiFuncResp `json:"functionResponse,omitempty"`
}

type geminiFuncCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type geminiFuncResp struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiFunctionDecl struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type geminiStreamChunk struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// toGeminiContents returns the joined system message text separately
// (Stream sends it as the systemInstruction field) and converts tool
// results into functionResponse parts.
func toGeminiContents(msgs []message.Message) (systemInstruction string, out []geminiContent) {
	for _, m := range msgs {
		switch m.Role {
		case message.RoleSystem:
			if systemInstruction != "" {
				systemInstruction += "\n"
			}
			systemInstruction += m.Text
		case message.RoleTool:
			out = append(out, geminiContent{
				Role: "function",
				Parts: []geminiPart{{
					FunctionResp: &geminiFuncResp{Name: m.ToolCallID, Response: map[string]any{"result": m.Text}},
				}},
			})
		case message.RoleAssistant:
			gc := geminiContent{Role: "model"}
			if m.Text != "" {
				gc.Parts = append(gc.Parts, geminiPart{Text: m.Text})
			}
			for _, tc := range m.ToolCalls {
				gc.Parts = append(gc.Parts, geminiPart{FunctionCall: &geminiFuncCall{Name: tc.Name, Args: tc.Arguments}})
			}
			out = append(out, gc)
		default:
			out = append(out, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Text}}})
		}
	}
	return systemInstruction, out
}

func toGeminiTools(descs []tool.Descriptor) []map[string]any {
	if len(descs) == 0 {
		return nil
	}
	decls := make([]geminiFunctionDecl, 0, len(descs))
	for _, d := range descs {
		decls = append(decls, geminiFunctionDecl{Name: d.Name, Description: d.Description, Parameters: d.ArgumentSchema})
	}
	return []map[string]any{{"functionDeclarations": decls}}
}

func (c *geminiClient) Stream(ctx context.Context, messages []message.Message, tools []tool.Descriptor, cfg RunConfig) (<-chan Chunk, error) {
	model := cfg.Model
	if model == "" {
		model = c.cfg.Model
	}
	systemInstruction, contents := toGeminiContents(messages)

	payload := map[string]any{
		"contents": contents,
		"tools":    toGeminiTools(tools),
		"generationConfig": map[string]any{
			"temperature":     cfg.Temperature,
			"maxOutputTokens": cfg.MaxOutputTokens,
		},
	}
	if systemInstruction != "" {
		payload["systemInstruction"] = geminiContent{Parts: []geminiPart{{Text: systemInstruction}}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Category: CategoryMalformed, Message: "encoding request", Err: err}
	}

	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse&key=%s", c.cfg.BaseURL, model, c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Category: CategoryTransport, Message: "building request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	// Do also returns an error alongside a non-2xx response; those are
	// classified by status code below.
	resp, err := c.client.Do(req)
	if err != nil && resp == nil {
		return nil, classifyTransportError(err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		resp.Body.Close()
		return nil, &Error{Category: CategoryAuth, Message: fmt.Sprintf("gemini returned status %d", resp.StatusCode)}
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		resp.Body.Close()
		return nil, &Error{Category: CategoryRateLimit, Message: "gemini rate limited"}
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, &Error{Category: CategoryTransport, Message: fmt.Sprintf("gemini returned status %d", resp.StatusCode)}
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		// Gemini ends a function-calling turn with STOP, so a turn that
		// carried a functionCall part is reported as FinishToolCalls.
		sawFunctionCall := false
		for scanner.Scan() {
			if ctx.Err() != nil {
				return
			}
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var chunk geminiStreamChunk
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &chunk); err != nil {
				continue
			}
			if chunk.Error != nil {
				send(ctx, out, Chunk{Kind: ChunkEnd, Finish: FinishError, Err: &Error{Category: CategoryTransport, Message: chunk.Error.Message}})
				return
			}
			if len(chunk.Candidates) == 0 {
				continue
			}
			cand := chunk.Candidates[0]
			for _, part := range cand.Content.Parts {
				if part.Text != "" {
					if !send(ctx, out, Chunk{Kind: ChunkText, Text: part.Text}) {
						return
					}
				}
				if part.FunctionCall != nil {
					sawFunctionCall = true
					argsJSON, _ := json.Marshal(part.FunctionCall.Args)
					if !send(ctx, out, Chunk{
						Kind:         ChunkToolCallDelta,
						ToolCallName: part.FunctionCall.Name,
						ArgsFragment: string(argsJSON),
					}) {
						return
					}
				}
			}
			if cand.FinishReason != "" {
				finish := mapGeminiFinishReason(cand.FinishReason)
				if finish == FinishStop && sawFunctionCall {
					finish = FinishToolCalls
				}
				send(ctx, out, Chunk{Kind: ChunkEnd, Finish: finish})
				return
			}
		}

		if err := scanner.Err(); err != nil {
			send(ctx, out, Chunk{Kind: ChunkEnd, Finish: FinishError, Err: &Error{Category: CategoryTransport, Message: "reading stream", Err: err}})
		}
	}()

	return out, nil
}

func mapGeminiFinishReason(reason string) FinishReason {
	switch reason {
	case "STOP":
		return FinishStop
	case "MAX_TOKENS":
		return FinishLength
	case "SAFETY", "RECITATION":
		return FinishContentFilter
	default:
		return FinishStop
	}
}
