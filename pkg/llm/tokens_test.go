package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kadirpekel/sentinel/pkg/message"
)

func TestCountTokens(t *testing.T) {
	n := CountTokens("hello world")
	assert.Greater(t, n, 0)
}

func TestCountMessageTokens(t *testing.T) {
	msgs := []message.Message{
		message.User("hello"),
		message.Assistant("world"),
	}
	assert.Greater(t, CountMessageTokens(msgs), 0)
}
