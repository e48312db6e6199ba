package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoTool struct {
	desc Descriptor
}

func (e *echoTool) Descriptor() Descriptor { return e.desc }

func (e *echoTool) Invoke(ctx context.Context, args map[string]any) (string, error) {
	v, _ := args["value"].(string)
	return "echo:" + v, nil
}

func newEchoTool() Tool {
	return &echoTool{desc: Descriptor{
		Name:        "echo",
		Description: "echoes its value argument",
		ArgumentSchema: map[string]any{
			"type":       "object",
			"required":   []any{"value"},
			"properties": map[string]any{"value": map[string]any{"type": "string"}},
		},
	}}
}

func TestRegistry_InvokeWithMapArguments(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newEchoTool()))

	out, err := r.Invoke(context.Background(), "echo", map[string]any{"value": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "echo:hi", out)
}

func TestRegistry_InvokeWithJSONStringArguments(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newEchoTool()))

	out, err := r.Invoke(context.Background(), "echo", `{"value":"hi"}`)
	require.NoError(t, err)
	assert.Equal(t, "echo:hi", out)
}

func TestRegistry_InvokeWithBareStringArguments(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newEchoTool()))

	out, err := r.Invoke(context.Background(), "echo", "hi")
	require.NoError(t, err)
	assert.Equal(t, "echo:hi", out)
}

func TestRegistry_InvokeWithBareStringButNoSingleRequiredField(t *testing.T) {
	r := NewRegistry()
	twoFieldTool := &echoTool{desc: Descriptor{
		Name: "two_field",
		ArgumentSchema: map[string]any{
			"type":     "object",
			"required": []any{"a", "b"},
		},
	}}
	require.NoError(t, r.Register(twoFieldTool))

	_, err := r.Invoke(context.Background(), "two_field", "bare")
	require.Error(t, err)
	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ErrorMalformedArguments, te.Category)
}

func TestRegistry_InvokeUnknownTool(t *testing.T) {
	r := NewRegistry()
	_, err := r.Invoke(context.Background(), "missing", map[string]any{})
	require.Error(t, err)
	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ErrorMalformedArguments, te.Category)
}

func TestRegistry_Descriptors(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newEchoTool()))

	descs := r.Descriptors()
	require.Len(t, descs, 1)
	assert.Equal(t, "echo", descs[0].Name)
}

func TestFormatError(t *testing.T) {
	assert.Equal(t, "[error: malformed_arguments: bad]", FormatError(&ToolError{Category: ErrorMalformedArguments, Message: "bad"}))
}
