package config

import (
	"errors"
	"fmt"
	"time"
)

// LLMConfig selects the backend used for capability extraction and the
// sales agent.
type LLMConfig struct {
	// Backend is one of ollama, anthropic, openai, google, deepseek or mock.
	Backend        string  `yaml:"backend"`
	OllamaURL      string  `yaml:"ollama_url"`
	RouterModel    string  `yaml:"router_model"`
	TimeoutSeconds float64 `yaml:"timeout_seconds"`
}

// Timeout returns the per-call LLM timeout.
func (c LLMConfig) Timeout() time.Duration { return seconds(c.TimeoutSeconds) }

// WeightsConfig holds the relative weights of the ranking components.
type WeightsConfig struct {
	Capability float64 `yaml:"capability"`
	Latency    float64 `yaml:"latency"`
	Cost       float64 `yaml:"cost"`
	Trust      float64 `yaml:"trust"`
	Relevance  float64 `yaml:"relevance"`
}

// Total is the sum of all weights.
func (w WeightsConfig) Total() float64 {
	return w.Capability + w.Latency + w.Cost + w.Trust + w.Relevance
}

// RouterConfig holds ranking weights and acceptance thresholds.
type RouterConfig struct {
	Weights               WeightsConfig `yaml:"weights"`
	MinCapabilityCoverage float64       `yaml:"min_capability_coverage"`
	MinRelevance          float64       `yaml:"min_relevance"`
	MinTotalScore         float64       `yaml:"min_total_score"`
	TopK                  int           `yaml:"top_k"`
	// AutoExtract derives required capabilities from the task when a shop
	// request names none.
	AutoExtract bool `yaml:"auto_extract"`
}

// SalesAgentConfig tunes the LLM selector.
type SalesAgentConfig struct {
	Model          string  `yaml:"model"`
	TopK           int     `yaml:"top_k"`
	Temperature    float64 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
	TimeoutSeconds float64 `yaml:"timeout_seconds"`
}

// Timeout returns the per-call sales agent timeout.
func (c SalesAgentConfig) Timeout() time.Duration { return seconds(c.TimeoutSeconds) }

// ExecutorConfig tunes provider calls.
type ExecutorConfig struct {
	TimeoutSeconds     float64 `yaml:"timeout_seconds"`
	MaxAttempts        int     `yaml:"max_attempts"`
	BaseBackoffSeconds float64 `yaml:"base_backoff_seconds"`
	MaxBackoffSeconds  float64 `yaml:"max_backoff_seconds"`
	// ExtractParams asks the LLM to fill provider inputs from the task when
	// a request supplies none.
	ExtractParams bool `yaml:"extract_params"`
}

// Timeout returns the per-call provider timeout.
func (c ExecutorConfig) Timeout() time.Duration { return seconds(c.TimeoutSeconds) }

// BaseBackoff returns the first retry delay.
func (c ExecutorConfig) BaseBackoff() time.Duration { return seconds(c.BaseBackoffSeconds) }

// MaxBackoff returns the retry delay ceiling.
func (c ExecutorConfig) MaxBackoff() time.Duration { return seconds(c.MaxBackoffSeconds) }

// CacheConfig controls memoization of shop results and provider payloads.
type CacheConfig struct {
	ShopTTLSeconds     int `yaml:"shop_ttl_seconds"`
	ProviderTTLSeconds int `yaml:"provider_ttl_seconds"`
	MaxEntries         int `yaml:"max_entries"`
}

// ShopTTL returns the shop result TTL.
func (c CacheConfig) ShopTTL() time.Duration { return time.Duration(c.ShopTTLSeconds) * time.Second }

// ProviderTTL returns the base provider payload TTL.
func (c CacheConfig) ProviderTTL() time.Duration {
	return time.Duration(c.ProviderTTLSeconds) * time.Second
}

// RateLimitConfig caps requests per identity per hour.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`
	PerHour int  `yaml:"per_hour"`
}

// MemoryConfig bounds the conversation history handed to the sales agent.
type MemoryConfig struct {
	MaxMessages int `yaml:"max_messages"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DatabaseURL:  "sqlite://marketplace.db",
		ManifestsDir: "manifests",
		ListenAddr:   ":8000",
		LLM: LLMConfig{
			Backend:        "ollama",
			OllamaURL:      "http://localhost:11434/api/generate",
			RouterModel:    "llama2:7b",
			TimeoutSeconds: 30,
		},
		Router: RouterConfig{
			Weights: WeightsConfig{
				Capability: 0.45,
				Relevance:  0.20,
				Trust:      0.15,
				Latency:    0.10,
				Cost:       0.10,
			},
			MinCapabilityCoverage: 1.0,
			MinRelevance:          0.0,
			MinTotalScore:         0.5,
			TopK:                  5,
			AutoExtract:           true,
		},
		SalesAgent: SalesAgentConfig{
			Model:          "llama2:7b",
			TopK:           5,
			Temperature:    0.2,
			MaxTokens:      700,
			TimeoutSeconds: 30,
		},
		Executor: ExecutorConfig{
			TimeoutSeconds:     15,
			MaxAttempts:        3,
			BaseBackoffSeconds: 1,
			MaxBackoffSeconds:  10,
			ExtractParams:      true,
		},
		Cache: CacheConfig{
			ShopTTLSeconds:     120,
			ProviderTTLSeconds: 60,
			MaxEntries:         1024,
		},
		RateLimit: RateLimitConfig{
			Enabled: false,
			PerHour: 100,
		},
		Memory: MemoryConfig{MaxMessages: 10},
	}
}

// Validate rejects settings the ranking and execution code cannot use.
func (c *Config) Validate() error {
	var errs []error
	w := c.Router.Weights
	for name, v := range map[string]float64{
		"capability": w.Capability, "latency": w.Latency, "cost": w.Cost,
		"trust": w.Trust, "relevance": w.Relevance,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("router weight %s must be non-negative", name))
		}
	}
	if w.Total() <= 0 {
		errs = append(errs, errors.New("router weights must sum to a positive value"))
	}
	for name, v := range map[string]float64{
		"min_capability_coverage": c.Router.MinCapabilityCoverage,
		"min_relevance":           c.Router.MinRelevance,
		"min_total_score":         c.Router.MinTotalScore,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("router %s must be within [0,1]", name))
		}
	}
	if c.Router.TopK < 1 {
		errs = append(errs, errors.New("router top_k must be at least 1"))
	}
	if c.SalesAgent.TopK < 1 {
		errs = append(errs, errors.New("sales_agent top_k must be at least 1"))
	}
	if c.Executor.MaxAttempts < 1 {
		errs = append(errs, errors.New("executor max_attempts must be at least 1"))
	}
	if c.Memory.MaxMessages < 0 {
		errs = append(errs, errors.New("memory max_messages must be non-negative"))
	}
	switch c.LLM.Backend {
	case "ollama", "anthropic", "openai", "google", "deepseek", "mock":
	default:
		errs = append(errs, fmt.Errorf("unknown llm backend %q", c.LLM.Backend))
	}
	return errors.Join(errs...)
}
