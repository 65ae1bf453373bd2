package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// ModelAliases maps short model names to canonical backend model ids and
// lists which models each backend serves.
type ModelAliases struct {
	Aliases   map[string]string   `yaml:"aliases"`
	Providers map[string][]string `yaml:"providers"`
}

// LoadAliases reads model aliases from a YAML file.
func LoadAliases(path string) (*ModelAliases, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var aliases ModelAliases
	if err := yaml.Unmarshal(data, &aliases); err != nil {
		return nil, err
	}
	if aliases.Aliases == nil {
		aliases.Aliases = make(map[string]string)
	}
	if aliases.Providers == nil {
		aliases.Providers = make(map[string][]string)
	}
	return &aliases, nil
}

// LoadAliasesWithFallback loads ~/.axiomeer/models.yaml when present and
// the built-in defaults otherwise.
func LoadAliasesWithFallback() (*ModelAliases, error) {
	home, err := os.UserHomeDir()
	if err == nil {
		userPath := filepath.Join(home, ".axiomeer", "models.yaml")
		if _, err := os.Stat(userPath); err == nil {
			return LoadAliases(userPath)
		}
	}
	return DefaultAliases(), nil
}

// Resolve returns the canonical model name for an alias.
// If the input is not an alias, it returns the input unchanged.
func (a *ModelAliases) Resolve(modelOrAlias string) string {
	if a == nil || a.Aliases == nil {
		return modelOrAlias
	}
	if canonical, ok := a.Aliases[modelOrAlias]; ok {
		return canonical
	}
	return modelOrAlias
}

// ValidateModel checks if a model exists in the backend's list.
func (a *ModelAliases) ValidateModel(backend, model string) error {
	if a == nil || a.Providers == nil {
		return nil
	}

	models, ok := a.Providers[backend]
	if !ok {
		return fmt.Errorf("unknown backend %q", backend)
	}
	// Ollama serves whatever the operator has pulled.
	if backend == "ollama" {
		return nil
	}
	for _, m := range models {
		if m == model {
			return nil
		}
	}
	return fmt.Errorf("model %q not in %s provider list", model, backend)
}

// ValidateLLM checks the models the marketplace will call.
func (a *ModelAliases) ValidateLLM(cfg LLMConfig, sales SalesAgentConfig) []error {
	if a == nil {
		return nil
	}
	var errs []error
	if err := a.ValidateModel(cfg.Backend, a.Resolve(cfg.RouterModel)); err != nil {
		errs = append(errs, fmt.Errorf("router_model: %w", err))
	}
	if err := a.ValidateModel(cfg.Backend, a.Resolve(sales.Model)); err != nil {
		errs = append(errs, fmt.Errorf("sales_agent.model: %w", err))
	}
	return errs
}

// ListAliases returns a copy of the aliases map.
func (a *ModelAliases) ListAliases() map[string]string {
	if a == nil || a.Aliases == nil {
		return make(map[string]string)
	}
	result := make(map[string]string, len(a.Aliases))
	for k, v := range a.Aliases {
		result[k] = v
	}
	return result
}

// ListProviders returns a sorted list of backend names.
func (a *ModelAliases) ListProviders() []string {
	if a == nil || a.Providers == nil {
		return nil
	}
	providers := make([]string, 0, len(a.Providers))
	for p := range a.Providers {
		providers = append(providers, p)
	}
	sort.Strings(providers)
	return providers
}

// DefaultAliases returns the built-in alias table.
func DefaultAliases() *ModelAliases {
	return &ModelAliases{
		Aliases: map[string]string{
			"local":   "llama2:7b",
			"fast":    "gpt-4o-mini",
			"quality": "claude-sonnet-4-20250514",
			"cheap":   "deepseek-chat",
			"gemini":  "gemini-2.0-flash",
		},
		Providers: map[string][]string{
			"ollama":    {"llama2:7b", "llama3.1:8b", "mistral:7b"},
			"openai":    {"gpt-4o-mini", "gpt-4o"},
			"anthropic": {"claude-sonnet-4-20250514", "claude-3-5-haiku-latest"},
			"google":    {"gemini-2.0-flash", "gemini-2.5-pro"},
			"deepseek":  {"deepseek-chat", "deepseek-reasoner"},
			"mock":      {"mock-1"},
		},
	}
}
