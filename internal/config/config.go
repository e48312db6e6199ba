// Package config loads the service's runtime configuration from a
// layered set of sources: an optional .env file, environment
// variables, and an optional YAML override file, in that priority
// order (YAML beats environment beats .env defaults).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full set of knobs this service reads at startup.
type Config struct {
	// Provider selects which pkg/llm client backs the orchestrator.
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`

	OpenAIAPIKey     string `yaml:"-"`
	OpenAIBaseURL    string `yaml:"openai_base_url"`
	AnthropicAPIKey  string `yaml:"-"`
	AnthropicBaseURL string `yaml:"anthropic_base_url"`
	GeminiAPIKey     string `yaml:"-"`
	GeminiBaseURL    string `yaml:"gemini_base_url"`

	ResponseLanguage string `yaml:"response_language"`
	AgentPersona     string `yaml:"agent_persona"`
	AgentDescription string `yaml:"agent_description"`
	MaxSteps         int    `yaml:"max_steps"`

	// SessionStoreDSN selects the session backend: empty means
	// in-memory, otherwise a postgres:// DSN.
	SessionStoreDSN string `yaml:"-"`

	WebSearchEndpoint string `yaml:"web_search_endpoint"`
	WebSearchAPIKey   string `yaml:"-"`

	QdrantAddr       string `yaml:"qdrant_addr"`
	QdrantAPIKey     string `yaml:"-"`
	QdrantCollection string `yaml:"qdrant_collection"`

	HTTPAddr    string        `yaml:"http_addr"`
	HTTPTimeout time.Duration `yaml:"-"`

	LogLevel string `yaml:"log_level"`
}

// Load reads .env (if present), then environment variables, then
// yamlPath (if non-empty) on top of those, returning the merged
// Config. A missing .env or yaml file is not an error; a malformed
// yaml file is.
func Load(yamlPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: loading .env: %w", err)
	}

	cfg := fromEnv()

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, nil
			}
			return nil, fmt.Errorf("config: reading %s: %w", yamlPath, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", yamlPath, err)
		}
	}

	return cfg, nil
}

func fromEnv() *Config {
	return &Config{
		Provider: orDefault(os.Getenv("LLM_PROVIDER"), "openai"),
		Model:    os.Getenv("LLM_MODEL"),

		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:    os.Getenv("OPENAI_BASE_URL"),
		AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicBaseURL: os.Getenv("ANTHROPIC_BASE_URL"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL:    os.Getenv("GEMINI_BASE_URL"),

		ResponseLanguage: orDefault(os.Getenv("RESPONSE_LANGUAGE"), "English"),
		AgentPersona:     os.Getenv("AGENT_PERSONA"),
		AgentDescription: os.Getenv("AGENT_DESCRIPTION"),
		MaxSteps:         atoiOrDefault(os.Getenv("AGENT_MAX_STEPS"), 10),

		SessionStoreDSN: os.Getenv("SESSION_STORE_DSN"),

		WebSearchEndpoint: os.Getenv("WEB_SEARCH_ENDPOINT"),
		WebSearchAPIKey:   os.Getenv("WEB_SEARCH_API_KEY"),

		QdrantAddr:       os.Getenv("QDRANT_ADDR"),
		QdrantAPIKey:     os.Getenv("QDRANT_API_KEY"),
		QdrantCollection: orDefault(os.Getenv("QDRANT_COLLECTION"), "sentinel"),

		HTTPAddr:    orDefault(os.Getenv("HTTP_ADDR"), ":8080"),
		HTTPTimeout: 120 * time.Second,

		LogLevel: orDefault(os.Getenv("LOG_LEVEL"), "info"),
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func atoiOrDefault(s string, def int) int {
	if s == "" {
		return def
	}
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil || n <= 0 {
		return def
	}
	return n
}
