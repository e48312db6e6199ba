// Package prompt builds the system prompt injected as the leading
// message of every orchestrator run, substituting a fixed set of
// placeholders into a static template.
package prompt

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kadirpekel/sentinel/pkg/tool"
)

// placeholderRegex matches {variable} tokens in a template.
var placeholderRegex = regexp.MustCompile(`\{[a-z_]+\}`)

const defaultTemplate = `You are {persona}. {description}

Respond in {language}. Today's date is {date}.

You have access to the following tools:
{tools}

Always call the "think" tool first on every turn to record your
reasoning before taking any other action. Only stop taking actions
once you are ready to give the user your final answer.

Before reaching for a tool, classify the question: static knowledge
you already know well, time-sensitive or current-events information,
something that depends on the user's own documents or data, or an
open-ended exploratory request. Do not search when the answer is
well-established and unlikely to have changed.

Investigate before asserting anything you are not already confident
of, and never fabricate a fact, citation, or tool result you do not
actually have. If the tools available cannot resolve something, say
so plainly rather than guessing.`

// BuildSystemPrompt renders the default template with the given
// tool descriptors and agent configuration.
func BuildSystemPrompt(tools []tool.Descriptor, language, persona, description string, now time.Time) string {
	return BuildSystemPromptFromTemplate(defaultTemplate, tools, language, persona, description, now)
}

// BuildSystemPromptFromTemplate renders an arbitrary template,
// letting callers (mainly tests) exercise substitution without
// depending on the shipped default wording.
func BuildSystemPromptFromTemplate(template string, tools []tool.Descriptor, language, persona, description string, now time.Time) string {
	values := map[string]string{
		"persona":     orDefault(persona, "a helpful assistant"),
		"description": description,
		"language":    orDefault(language, "English"),
		"date":        now.Format("2006-01-02"),
		"year":        now.Format("2006"),
		"tools":       formatTools(tools),
	}

	return placeholderRegex.ReplaceAllStringFunc(template, func(match string) string {
		name := strings.Trim(match, "{}")
		if v, ok := values[name]; ok {
			return v
		}
		return match
	})
}

func formatTools(tools []tool.Descriptor) string {
	if len(tools) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, d := range tools {
		fmt.Fprintf(&b, "- %s: %s\n", d.Name, d.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
