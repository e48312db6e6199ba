package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructors(t *testing.T) {
	th := Thought("reasoning")
	assert.Equal(t, KindThought, th.Kind)
	assert.Equal(t, "reasoning", th.Text)

	ac := Action("id1", "web_search", map[string]any{"query": "go"})
	assert.Equal(t, KindAction, ac.Kind)
	assert.Equal(t, "web_search", ac.Tool)

	ob := Observation("id1", "web_search", "result text")
	assert.Equal(t, KindObservation, ob.Kind)
	assert.Equal(t, "id1", ob.ToolCallID)

	tok := Token("partial")
	assert.Equal(t, KindToken, tok.Kind)

	er := Error(CategoryTimeout, "deadline exceeded")
	assert.Equal(t, KindError, er.Kind)
	assert.Equal(t, CategoryTimeout, er.Category)

	d := Done("session-1")
	assert.Equal(t, KindDone, d.Kind)
	assert.Equal(t, "session-1", d.SessionID)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "thought", KindThought.String())
	assert.Equal(t, "done", KindDone.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
