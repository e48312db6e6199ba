package tool

import (
	"context"
	"encoding/json"

	"github.com/mitchellh/mapstructure"

	"github.com/kadirpekel/sentinel/pkg/registry"
)

// Registry binds tool names to implementations and applies the
// argument-normalization contract uniformly before a tool ever sees
// its arguments.
type Registry struct {
	base *registry.BaseRegistry[Tool]
}

func NewRegistry() *Registry {
	return &Registry{base: registry.NewBaseRegistry[Tool]()}
}

func (r *Registry) Register(t Tool) error {
	return r.base.Register(t.Descriptor().Name, t)
}

func (r *Registry) Get(name string) (Tool, bool) {
	return r.base.Get(name)
}

// Descriptors returns the Descriptor of every registered tool, in the
// form the LLM client binds into a request.
func (r *Registry) Descriptors() []Descriptor {
	tools := r.base.List()
	out := make([]Descriptor, 0, len(tools))
	for _, t := range tools {
		out = append(out, t.Descriptor())
	}
	return out
}

// Invoke normalizes raw arguments and dispatches to the named tool.
// raw may be:
//  1. a well-formed map matching the tool's schema (the common case
//     when the provider's function-calling already parsed JSON),
//  2. a string containing a JSON object, which is unmarshalled, or
//  3. a bare (non-JSON) string, which is bound to the tool's sole
//     required string field if its schema names exactly one.
//
// Anything else, or a bare string when the schema doesn't allow the
// single-field shortcut, is a malformed_arguments ToolError.
func (r *Registry) Invoke(ctx context.Context, name string, raw any) (string, error) {
	t, ok := r.Get(name)
	if !ok {
		return "", &ToolError{Category: ErrorMalformedArguments, Message: "unknown tool: " + name}
	}

	args, err := NormalizeArguments(t.Descriptor(), raw)
	if err != nil {
		return "", err
	}

	return t.Invoke(ctx, args)
}

// NormalizeArguments applies the same argument-binding contract Invoke
// uses, exported so callers that need to display a tool call's bound
// arguments (e.g. an Action event) before invocation see the same
// normalized shape the tool itself receives.
func NormalizeArguments(desc Descriptor, raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	case string:
		var obj map[string]any
		if err := json.Unmarshal([]byte(v), &obj); err == nil {
			return obj, nil
		}
		if field, ok := soleRequiredStringField(desc.ArgumentSchema); ok {
			return map[string]any{field: v}, nil
		}
		return nil, &ToolError{
			Category: ErrorMalformedArguments,
			Message:  "arguments are a bare string but schema has no single required string field",
		}
	default:
		return nil, &ToolError{
			Category: ErrorMalformedArguments,
			Message:  "unsupported argument shape",
		}
	}
}

// soleRequiredStringField inspects a JSON Schema object and returns
// the name of its only required field if that field is typed string
// and it is the only required field.
func soleRequiredStringField(schema map[string]any) (string, bool) {
	if schema == nil {
		return "", false
	}
	required, _ := schema["required"].([]any)
	if len(required) != 1 {
		return "", false
	}
	name, ok := required[0].(string)
	if !ok {
		return "", false
	}
	props, _ := schema["properties"].(map[string]any)
	if props == nil {
		return "", false
	}
	propSchema, ok := props[name].(map[string]any)
	if !ok {
		return "", false
	}
	if propSchema["type"] != "string" {
		return "", false
	}
	return name, true
}

// Decode converts a normalized argument map into a typed struct,
// shared by every built-in tool so they all apply the same
// loose-typing rules (e.g. numeric strings into int fields).
func Decode(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
		TagName:          "json",
	})
	if err != nil {
		return err
	}
	return dec.Decode(args)
}
