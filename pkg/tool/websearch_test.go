package tool

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebSearch_NotConfigured(t *testing.T) {
	ws := NewWebSearch(WebSearchConfig{})
	_, err := ws.Invoke(context.Background(), map[string]any{"query": "golang"})
	require.Error(t, err)
	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ErrorExecution, te.Category)
}

func TestWebSearch_RequiresQuery(t *testing.T) {
	ws := NewWebSearch(WebSearchConfig{Endpoint: "http://example.invalid"})
	_, err := ws.Invoke(context.Background(), map[string]any{})
	require.Error(t, err)
}

func TestWebSearch_Invoke(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]webSearchResult{
			{Title: "Go", URL: "https://go.dev", Snippet: "The Go language"},
		})
	}))
	defer srv.Close()

	ws := NewWebSearch(WebSearchConfig{Endpoint: srv.URL})
	out, err := ws.Invoke(context.Background(), map[string]any{"query": "golang"})
	require.NoError(t, err)
	assert.Contains(t, out, "go.dev")
}
