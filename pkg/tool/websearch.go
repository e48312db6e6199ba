package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kadirpekel/sentinel/pkg/httpclient"
)

// WebSearchArgs is the argument struct for the web_search tool.
type WebSearchArgs struct {
	Query      string `json:"query" jsonschema:"required,description=Search query"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"description=Maximum number of results,default=5"`
}

// WebSearchConfig configures the web_search tool's bounded runtime
// contract: a fixed endpoint, a request timeout, and a result cap, so
// the tool can never mutate global state or run unbounded.
type WebSearchConfig struct {
	Endpoint   string // e.g. a SearxNG or custom search API base URL
	APIKey     string
	Timeout    time.Duration
	MaxResults int
}

type webSearchTool struct {
	descriptor Descriptor
	cfg        WebSearchConfig
	client     *httpclient.Client
}

// NewWebSearch returns a web_search tool backed by an HTTP search
// endpoint. If cfg.Endpoint is empty, the tool still registers (so
// its Descriptor is always advertised) but returns an execution
// ToolError explaining it is not configured.
func NewWebSearch(cfg WebSearchConfig) Tool {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	return &webSearchTool{
		descriptor: Descriptor{
			Name:           "web_search",
			Description:    "Search the web for current information and return a short list of results with titles, URLs, and snippets.",
			ArgumentSchema: GenerateSchema[WebSearchArgs](),
		},
		cfg:    cfg,
		client: httpclient.New(httpclient.WithTimeout(cfg.Timeout)),
	}
}

func (t *webSearchTool) Descriptor() Descriptor { return t.descriptor }

type webSearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

func (t *webSearchTool) Invoke(ctx context.Context, args map[string]any) (string, error) {
	var typed WebSearchArgs
	if err := Decode(args, &typed); err != nil {
		return "", &ToolError{Category: ErrorMalformedArguments, Message: err.Error()}
	}
	if typed.Query == "" {
		return "", &ToolError{Category: ErrorMalformedArguments, Message: "query is required"}
	}
	if t.cfg.Endpoint == "" {
		return "", &ToolError{Category: ErrorExecution, Message: "web_search is not configured with an endpoint"}
	}

	max := typed.MaxResults
	if max <= 0 || max > t.cfg.MaxResults {
		max = t.cfg.MaxResults
	}

	reqURL := fmt.Sprintf("%s?q=%s&limit=%d", t.cfg.Endpoint, url.QueryEscape(typed.Query), max)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", &ToolError{Category: ErrorExecution, Message: err.Error()}
	}
	if t.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.cfg.APIKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", &ToolError{Category: ErrorExecution, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &ToolError{Category: ErrorExecution, Message: fmt.Sprintf("search backend returned status %d", resp.StatusCode)}
	}

	var results []webSearchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return "", &ToolError{Category: ErrorExecution, Message: "could not parse search results: " + err.Error()}
	}

	if len(results) == 0 {
		return "no results found", nil
	}

	var b strings.Builder
	for i, r := range results {
		if i >= max {
			break
		}
		fmt.Fprintf(&b, "%d. %s (%s)\n   %s\n", i+1, r.Title, r.URL, r.Snippet)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
