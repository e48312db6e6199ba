package prompt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kadirpekel/sentinel/pkg/tool"
)

func TestBuildSystemPrompt_SubstitutesPlaceholders(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	tools := []tool.Descriptor{
		{Name: "think", Description: "record reasoning"},
		{Name: "web_search", Description: "search the web"},
	}

	out := BuildSystemPrompt(tools, "French", "a support agent", "You answer billing questions.", now)

	assert.Contains(t, out, "a support agent")
	assert.Contains(t, out, "You answer billing questions.")
	assert.Contains(t, out, "French")
	assert.Contains(t, out, "2026-08-01")
	assert.Contains(t, out, "- think: record reasoning")
	assert.Contains(t, out, "- web_search: search the web")
}

func TestBuildSystemPrompt_DefaultsWhenEmpty(t *testing.T) {
	out := BuildSystemPrompt(nil, "", "", "", time.Now())
	assert.Contains(t, out, "a helpful assistant")
	assert.Contains(t, out, "English")
	assert.Contains(t, out, "(none)")
}

func TestBuildSystemPrompt_InstructsThinkingAndInvestigation(t *testing.T) {
	out := BuildSystemPrompt(nil, "English", "an assistant", "", time.Now())

	assert.Contains(t, out, `call the "think" tool first`)
	assert.Contains(t, out, "classify the question")
	assert.Contains(t, out, "static knowledge")
	assert.Contains(t, out, "time-sensitive")
	assert.Contains(t, out, "Do not search when the answer is\nwell-established")
	assert.Contains(t, out, "never fabricate")
}

func TestBuildSystemPromptFromTemplate_UnknownPlaceholderLeftAsIs(t *testing.T) {
	out := BuildSystemPromptFromTemplate("Hello {unknown} {persona}", nil, "", "Bot", "", time.Now())
	assert.Contains(t, out, "{unknown}")
	assert.Contains(t, out, "Bot")
}
