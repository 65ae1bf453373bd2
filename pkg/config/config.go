package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	DatabaseURL  string `yaml:"database_url"`
	RedisURL     string `yaml:"redis_url"`
	ManifestsDir string `yaml:"manifests_dir"`
	ReceiptsDir  string `yaml:"receipts_dir"`
	ListenAddr   string `yaml:"listen_addr"`
	// ReceiptsKeyID names the ed25519 key under ConfigDir/keys that signs
	// receipts. Empty leaves receipts unsigned.
	ReceiptsKeyID string `yaml:"receipts_key_id"`

	LLM        LLMConfig        `yaml:"llm"`
	Router     RouterConfig     `yaml:"router"`
	SalesAgent SalesAgentConfig `yaml:"sales_agent"`
	Executor   ExecutorConfig   `yaml:"executor"`
	Cache      CacheConfig      `yaml:"cache"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Memory     MemoryConfig     `yaml:"memory"`

	// API keys are read from the environment only.
	AnthropicAPIKey string `yaml:"-"`
	OpenAIAPIKey    string `yaml:"-"`
	GoogleAPIKey    string `yaml:"-"`
	DeepSeekAPIKey  string `yaml:"-"`

	ConfigDir string `yaml:"-"`
}

// Load reads configuration from .env, the config file and environment
// variables, in increasing order of precedence. An empty path means
// ~/.axiomeer/config.yaml, which may be absent.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	configDir, err := getConfigDir()
	if err == nil {
		cfg.ConfigDir = configDir
	}

	explicit := path != ""
	if !explicit && configDir != "" {
		path = filepath.Join(configDir, "config.yaml")
	}
	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to load config %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile overlays the YAML file onto cfg. Keys absent from the file keep
// their current values.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnv(cfg *Config) error {
	cfg.DatabaseURL = getEnvOrDefault("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisURL = getEnvOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.ManifestsDir = getEnvOrDefault("MANIFESTS_DIR", cfg.ManifestsDir)
	cfg.ReceiptsDir = getEnvOrDefault("RECEIPTS_DIR", cfg.ReceiptsDir)
	cfg.ListenAddr = getEnvOrDefault("LISTEN_ADDR", cfg.ListenAddr)
	cfg.ReceiptsKeyID = getEnvOrDefault("RECEIPTS_KEY_ID", cfg.ReceiptsKeyID)

	cfg.LLM.Backend = getEnvOrDefault("LLM_BACKEND", cfg.LLM.Backend)
	cfg.LLM.OllamaURL = getEnvOrDefault("OLLAMA_URL", cfg.LLM.OllamaURL)
	cfg.LLM.RouterModel = getEnvOrDefault("ROUTER_MODEL", cfg.LLM.RouterModel)
	cfg.SalesAgent.Model = getEnvOrDefault("SALES_AGENT_MODEL", cfg.SalesAgent.Model)

	cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.GoogleAPIKey = os.Getenv("GOOGLE_API_KEY")
	cfg.DeepSeekAPIKey = os.Getenv("DEEPSEEK_API_KEY")

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	collect(envFloat("OLLAMA_TIMEOUT", &cfg.LLM.TimeoutSeconds))

	w := &cfg.Router.Weights
	collect(envFloat("W_CAP", &w.Capability))
	collect(envFloat("W_LAT", &w.Latency))
	collect(envFloat("W_COST", &w.Cost))
	collect(envFloat("W_TRUST", &w.Trust))
	collect(envFloat("W_REL", &w.Relevance))
	collect(envFloat("MIN_CAP_COVERAGE", &cfg.Router.MinCapabilityCoverage))
	collect(envFloat("MIN_RELEVANCE", &cfg.Router.MinRelevance))
	collect(envFloat("MIN_TOTAL_SCORE", &cfg.Router.MinTotalScore))
	collect(envBool("SHOP_AUTO_EXTRACT", &cfg.Router.AutoExtract))

	collect(envInt("SALES_AGENT_TOP_K", &cfg.SalesAgent.TopK))
	collect(envFloat("SALES_AGENT_TEMPERATURE", &cfg.SalesAgent.Temperature))
	collect(envInt("SALES_AGENT_MAX_TOKENS", &cfg.SalesAgent.MaxTokens))
	collect(envFloat("SALES_AGENT_TIMEOUT", &cfg.SalesAgent.TimeoutSeconds))

	collect(envFloat("EXECUTOR_TIMEOUT", &cfg.Executor.TimeoutSeconds))
	collect(envInt("EXECUTOR_MAX_ATTEMPTS", &cfg.Executor.MaxAttempts))
	collect(envBool("EXTRACT_PARAMS", &cfg.Executor.ExtractParams))

	collect(envInt("SHOP_CACHE_TTL_SECONDS", &cfg.Cache.ShopTTLSeconds))
	collect(envInt("PROVIDER_CACHE_TTL_SECONDS", &cfg.Cache.ProviderTTLSeconds))
	collect(envInt("CACHE_MAX_ENTRIES", &cfg.Cache.MaxEntries))

	collect(envBool("RATE_LIMIT_ENABLED", &cfg.RateLimit.Enabled))
	collect(envInt("RATE_LIMIT_PER_HOUR", &cfg.RateLimit.PerHour))

	collect(envInt("MEMORY_MAX_MESSAGES", &cfg.Memory.MaxMessages))

	return errors.Join(errs...)
}

// HasAdapter returns true if the API key for the given adapter is configured.
func (c *Config) HasAdapter(name string) bool {
	switch name {
	case "anthropic":
		return c.AnthropicAPIKey != ""
	case "openai":
		return c.OpenAIAPIKey != ""
	case "google":
		return c.GoogleAPIKey != ""
	case "deepseek":
		return c.DeepSeekAPIKey != ""
	case "ollama", "mock":
		return true
	default:
		return false
	}
}

// getEnvOrDefault returns the environment variable value if set,
// otherwise returns the default value.
func getEnvOrDefault(envVar, defaultValue string) string {
	if val := strings.TrimSpace(os.Getenv(envVar)); val != "" {
		return val
	}
	return defaultValue
}

func envFloat(envVar string, dst *float64) error {
	raw := strings.TrimSpace(os.Getenv(envVar))
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", envVar, err)
	}
	*dst = v
	return nil
}

func envInt(envVar string, dst *int) error {
	raw := strings.TrimSpace(os.Getenv(envVar))
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", envVar, err)
	}
	*dst = v
	return nil
}

func envBool(envVar string, dst *bool) error {
	raw := strings.TrimSpace(os.Getenv(envVar))
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", envVar, err)
	}
	*dst = v
	return nil
}

func getConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".axiomeer")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return configDir, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
