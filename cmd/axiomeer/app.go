package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ujjwalredd/Axiomeer/pkg/adapter"
	"github.com/ujjwalredd/Axiomeer/pkg/cache"
	"github.com/ujjwalredd/Axiomeer/pkg/capability"
	"github.com/ujjwalredd/Axiomeer/pkg/config"
	"github.com/ujjwalredd/Axiomeer/pkg/crypto"
	"github.com/ujjwalredd/Axiomeer/pkg/evidence"
	"github.com/ujjwalredd/Axiomeer/pkg/executor"
	"github.com/ujjwalredd/Axiomeer/pkg/marketplace"
	"github.com/ujjwalredd/Axiomeer/pkg/params"
	"github.com/ujjwalredd/Axiomeer/pkg/router"
	"github.com/ujjwalredd/Axiomeer/pkg/sales"
	"github.com/ujjwalredd/Axiomeer/pkg/store"
)

// app bundles the assembled service with the resources it owns.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
	svc    *marketplace.Service
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close database", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	aliases, _ = config.LoadAliasesWithFallback()
	return cfg, nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// createAdapter builds the LLM backend named by cfg.LLM.Backend.
func createAdapter(cfg *config.Config) (adapter.Adapter, error) {
	switch cfg.LLM.Backend {
	case "ollama":
		return adapter.NewOllamaAdapter(cfg.LLM.OllamaURL,
			aliases.Resolve(cfg.LLM.RouterModel), aliases.Resolve(cfg.SalesAgent.Model)), nil
	case "anthropic":
		return adapter.NewAnthropicAdapter(cfg.AnthropicAPIKey)
	case "openai":
		return adapter.NewOpenAIAdapter(cfg.OpenAIAPIKey)
	case "google":
		return adapter.NewGoogleAdapter(cfg.GoogleAPIKey)
	case "deepseek":
		return adapter.NewDeepSeekAdapter(cfg.DeepSeekAPIKey)
	case "mock":
		return adapter.NewMockAdapter(), nil
	default:
		return nil, fmt.Errorf("unknown llm backend %q", cfg.LLM.Backend)
	}
}

// newApp wires configuration into a ready marketplace service.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := newLogger(debugFlag)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	a := &app{cfg: cfg, logger: logger}

	for _, e := range aliases.ValidateLLM(cfg.LLM, cfg.SalesAgent) {
		logger.Warn("model not in provider list", zap.Error(e))
	}

	llm, err := createAdapter(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s adapter: %w", cfg.LLM.Backend, err)
	}

	st, err := store.Open(ctx, cfg.DatabaseURL, store.WithLogger(logger.Named("store")))
	if err != nil {
		return nil, err
	}
	a.store = st

	var receipts *evidence.Writer
	if dir := strings.TrimSpace(cfg.ReceiptsDir); dir != "" {
		var opts []evidence.WriterOption
		if keyID := strings.TrimSpace(cfg.ReceiptsKeyID); keyID != "" {
			signer, err := crypto.LoadSigner(filepath.Join(cfg.ConfigDir, "keys"), keyID)
			if err != nil {
				a.Close()
				return nil, fmt.Errorf("failed to load receipt signing key: %w", err)
			}
			opts = append(opts, evidence.WithSigner(signer))
		}
		if receipts, err = evidence.NewWriter(dir, opts...); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create receipts directory: %w", err)
		}
	}

	routerModel := aliases.Resolve(cfg.LLM.RouterModel)
	svc, err := marketplace.New(marketplace.Deps{
		Catalog: st,
		Ledger:  st.Runs(),
		History: st,
		Cache:   cache.Open(ctx, cfg.RedisURL, cfg.Cache.MaxEntries, logger.Named("cache")),
		Router:  router.New(router.ConfigFrom(cfg.Router), router.WithLogger(logger.Named("router"))),
		Extractor: capability.NewExtractor(llm, routerModel,
			capability.WithTimeout(cfg.LLM.Timeout()),
			capability.WithLogger(logger.Named("capability"))),
		Agent: sales.New(llm, aliases.Resolve(cfg.SalesAgent.Model),
			sales.WithTemperature(cfg.SalesAgent.Temperature),
			sales.WithMaxTokens(cfg.SalesAgent.MaxTokens),
			sales.WithTimeout(cfg.SalesAgent.Timeout()),
			sales.WithLogger(logger.Named("sales"))),
		Executor: executor.New(
			executor.WithMaxAttempts(cfg.Executor.MaxAttempts),
			executor.WithBackoff(cfg.Executor.BaseBackoff(), cfg.Executor.MaxBackoff()),
			executor.WithLogger(logger.Named("executor"))),
		Params: params.New(llm, routerModel,
			params.WithTimeout(cfg.LLM.Timeout()),
			params.WithLogger(logger.Named("params"))),
		Receipts: receipts,
	}, marketplace.SettingsFrom(cfg), marketplace.WithLogger(logger))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.svc = svc
	return a, nil
}
