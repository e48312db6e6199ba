package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/qdrant/go-client/qdrant"
)

// RAGSearchArgs is the argument struct for the rag_search tool.
type RAGSearchArgs struct {
	Query string `json:"query" jsonschema:"required,description=Natural-language query to search the knowledge base for"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"description=Number of passages to return,default=3"`
}

// RAGSearchConfig configures the optional Qdrant-backed rag_search
// tool. Per spec this tool is deliberately opaque: no ingestion or
// indexing pipeline is implemented here, only a query path against an
// already-populated collection.
type RAGSearchConfig struct {
	Addr           string // e.g. "localhost:6334"
	APIKey         string
	CollectionName string
	TopK           int

	// Embed turns a query string into a vector the configured
	// collection's distance metric expects. Supplying this is the
	// caller's responsibility since embedding-model choice is outside
	// this tool's contract.
	Embed func(ctx context.Context, text string) ([]float32, error)
}

type ragSearchTool struct {
	descriptor Descriptor
	cfg        RAGSearchConfig
	client     *qdrant.Client
}

// NewRAGSearch returns a rag_search tool. If cfg.Addr is empty the
// tool still registers and advertises its Descriptor, but Invoke
// returns an execution ToolError explaining it is not configured —
// matching web_search's "always advertised, may be unconfigured"
// contract.
func NewRAGSearch(cfg RAGSearchConfig) (Tool, error) {
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}

	t := &ragSearchTool{
		descriptor: Descriptor{
			Name:           "rag_search",
			Description:    "Search an internal knowledge base for passages relevant to a query.",
			ArgumentSchema: GenerateSchema[RAGSearchArgs](),
		},
		cfg: cfg,
	}

	if cfg.Addr == "" {
		return t, nil
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   hostOf(cfg.Addr),
		Port:   portOf(cfg.Addr),
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("rag_search: connecting to qdrant: %w", err)
	}
	t.client = client
	return t, nil
}

func (t *ragSearchTool) Descriptor() Descriptor { return t.descriptor }

func (t *ragSearchTool) Invoke(ctx context.Context, args map[string]any) (string, error) {
	var typed RAGSearchArgs
	if err := Decode(args, &typed); err != nil {
		return "", &ToolError{Category: ErrorMalformedArguments, Message: err.Error()}
	}
	if typed.Query == "" {
		return "", &ToolError{Category: ErrorMalformedArguments, Message: "query is required"}
	}
	if t.client == nil || t.cfg.Embed == nil {
		return "", &ToolError{Category: ErrorExecution, Message: "rag_search is not configured with a backend"}
	}

	topK := uint64(typed.TopK)
	if topK == 0 {
		topK = uint64(t.cfg.TopK)
	}

	vector, err := t.cfg.Embed(ctx, typed.Query)
	if err != nil {
		return "", &ToolError{Category: ErrorExecution, Message: "embedding query: " + err.Error()}
	}

	pointsClient := t.client.GetPointsClient()
	searchResult, err := pointsClient.Search(ctx, &qdrant.SearchPoints{
		CollectionName: t.cfg.CollectionName,
		Vector:         vector,
		Limit:          topK,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return "", &ToolError{Category: ErrorExecution, Message: "querying qdrant: " + err.Error()}
	}

	points := searchResult.GetResult()
	if len(points) == 0 {
		return "no relevant passages found", nil
	}

	var b strings.Builder
	for i, p := range points {
		text := ""
		if v, ok := p.Payload["text"]; ok {
			text = v.GetStringValue()
		}
		fmt.Fprintf(&b, "%d. (score %.3f) %s\n", i+1, p.Score, text)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func hostOf(addr string) string {
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		return addr[:i]
	}
	return addr
}

func portOf(addr string) int {
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		port := 0
		fmt.Sscanf(addr[i+1:], "%d", &port)
		return port
	}
	return 6334
}
