// Command sentineld runs the ReAct conversational agent as an HTTP
// service: a single orchestrator instance, one configured LLM
// provider, the built-in tool registry, and a session store, served
// over SSE.
//
// Usage:
//
//	sentineld serve --config config.yaml
//	sentineld serve --provider anthropic --model claude-3-5-sonnet-20241022
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/sentinel/internal/config"
	"github.com/kadirpekel/sentinel/internal/logging"
	"github.com/kadirpekel/sentinel/internal/metrics"
	"github.com/kadirpekel/sentinel/pkg/httpapi"
	"github.com/kadirpekel/sentinel/pkg/llm"
	"github.com/kadirpekel/sentinel/pkg/orchestrator"
	"github.com/kadirpekel/sentinel/pkg/session"
	"github.com/kadirpekel/sentinel/pkg/tool"
)

// CLI is the kong command tree.
type CLI struct {
	Version VersionCmd `cmd:"" help:"Show version information."`
	Serve   ServeCmd   `cmd:"" help:"Start the agent HTTP server."`

	Config   string `short:"c" help:"Path to an optional YAML config file." type:"path"`
	LogLevel string `help:"Log level (debug, info, warn, error)."`
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println("sentineld (dev)")
	return nil
}

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	Provider string `help:"LLM provider (openai, anthropic, gemini)."`
	Model    string `help:"Model name."`
	Addr     string `help:"Address to listen on."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if c.Provider != "" {
		cfg.Provider = c.Provider
	}
	if c.Model != "" {
		cfg.Model = c.Model
	}
	if c.Addr != "" {
		cfg.HTTPAddr = c.Addr
	}

	level := cfg.LogLevel
	if cli.LogLevel != "" {
		level = cli.LogLevel
	}
	logging.Init(logging.ParseLevel(level), os.Stderr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		cancel()
	}()

	store, closeStore, err := buildSessionStore(cfg)
	if err != nil {
		return fmt.Errorf("building session store: %w", err)
	}
	defer closeStore()

	llmRegistry, err := buildLLMRegistry(cfg)
	if err != nil {
		return fmt.Errorf("building LLM registry: %w", err)
	}
	client, err := llmRegistry.GetClient(cfg.Provider)
	if err != nil {
		return err
	}

	tools := buildToolRegistry(cfg)

	met := metrics.New()

	o := &orchestrator.Orchestrator{
		Sessions:     store,
		LLM:          client,
		Tools:        tools,
		Persona:      cfg.AgentPersona,
		Description:  cfg.AgentDescription,
		Metrics:      met,
		ProviderName: cfg.Provider,
	}

	api := &httpapi.API{Orchestrator: o, Metrics: met}

	mux := http.NewServeMux()
	mux.Handle("/", api.Router())
	mux.Handle("/metrics", met.Handler())

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("listening", "addr", cfg.HTTPAddr, "provider", cfg.Provider)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func buildSessionStore(cfg *config.Config) (session.Store, func(), error) {
	if cfg.SessionStoreDSN == "" {
		return session.NewMemoryStore(), func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.SessionStoreDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, nil, err
	}
	return session.NewPostgresStore(db), func() { db.Close() }, nil
}

func buildLLMRegistry(cfg *config.Config) (*llm.Registry, error) {
	reg := llm.NewRegistry()

	if err := reg.RegisterClient("openai", llm.NewOpenAI(llm.OpenAIConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.Model,
	})); err != nil {
		return nil, err
	}
	if err := reg.RegisterClient("anthropic", llm.NewAnthropic(llm.AnthropicConfig{
		APIKey:  cfg.AnthropicAPIKey,
		BaseURL: cfg.AnthropicBaseURL,
		Model:   cfg.Model,
	})); err != nil {
		return nil, err
	}
	if err := reg.RegisterClient("gemini", llm.NewGemini(llm.GeminiConfig{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.Model,
	})); err != nil {
		return nil, err
	}

	return reg, nil
}

func buildToolRegistry(cfg *config.Config) *tool.Registry {
	reg := tool.NewRegistry()
	_ = reg.Register(tool.NewThink())

	_ = reg.Register(tool.NewWebSearch(tool.WebSearchConfig{
		Endpoint: cfg.WebSearchEndpoint,
		APIKey:   cfg.WebSearchAPIKey,
	}))

	if cfg.QdrantAddr != "" {
		rag, err := tool.NewRAGSearch(tool.RAGSearchConfig{
			Addr:           cfg.QdrantAddr,
			APIKey:         cfg.QdrantAPIKey,
			CollectionName: cfg.QdrantCollection,
		})
		if err != nil {
			slog.Warn("rag_search tool not registered", "error", err)
		} else {
			_ = reg.Register(rag)
		}
	}

	return reg
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("sentineld"),
		kong.Description("ReAct conversational agent service"),
		kong.UsageOnError(),
	)
	if err := ctx.Run(cli); err != nil {
		slog.Error("sentineld: fatal", "error", err)
		os.Exit(1)
	}
}
