package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructors(t *testing.T) {
	u := User("hi")
	assert.Equal(t, RoleUser, u.Role)
	assert.Equal(t, "hi", u.Text)

	a := Assistant("hello")
	assert.Equal(t, RoleAssistant, a.Role)

	calls := []ToolCall{{ID: "1", Name: "think", Arguments: map[string]any{"thought": "x"}}}
	atc := AssistantToolCalls("", calls)
	assert.Equal(t, RoleAssistant, atc.Role)
	assert.Len(t, atc.ToolCalls, 1)
	assert.Equal(t, "think", atc.ToolCalls[0].Name)

	tr := ToolResult("1", "result")
	assert.Equal(t, RoleTool, tr.Role)
	assert.Equal(t, "1", tr.ToolCallID)

	s := System("sys")
	assert.Equal(t, RoleSystem, s.Role)
}
