package tool

import "context"

// ThinkArgs is the argument struct for the think tool: a single
// required string field, which makes it eligible for the bare-string
// argument-normalization shortcut.
type ThinkArgs struct {
	Thought string `json:"thought" jsonschema:"required,description=The reasoning to verbalize before acting"`
}

type thinkTool struct {
	descriptor Descriptor
}

// NewThink returns the mandatory think tool: an identity function on
// its thought argument. Its only purpose is to force the model to
// verbalize reasoning before taking an action; the returned text is
// fed back as an ordinary tool result so it becomes part of the
// context for the next LLM turn.
func NewThink() Tool {
	return &thinkTool{
		descriptor: Descriptor{
			Name:           "think",
			Description:    "Record your reasoning before deciding on the next action. Always call this before any other tool.",
			ArgumentSchema: GenerateSchema[ThinkArgs](),
		},
	}
}

func (t *thinkTool) Descriptor() Descriptor { return t.descriptor }

func (t *thinkTool) Invoke(ctx context.Context, args map[string]any) (string, error) {
	var typed ThinkArgs
	if err := Decode(args, &typed); err != nil {
		return "", &ToolError{Category: ErrorMalformedArguments, Message: err.Error()}
	}
	if typed.Thought == "" {
		return "", &ToolError{Category: ErrorMalformedArguments, Message: "thought is required"}
	}
	return typed.Thought, nil
}
