package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThink_Invoke(t *testing.T) {
	th := NewThink()
	out, err := th.Invoke(context.Background(), map[string]any{"thought": "I should check the weather"})
	require.NoError(t, err)
	assert.Equal(t, "I should check the weather", out)
}

func TestThink_RequiresThought(t *testing.T) {
	th := NewThink()
	_, err := th.Invoke(context.Background(), map[string]any{})
	require.Error(t, err)
}

func TestThink_RegisteredAndNormalized(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(NewThink()))

	out, err := r.Invoke(context.Background(), "think", "bare thought text")
	require.NoError(t, err)
	assert.Equal(t, "bare thought text", out)
}
