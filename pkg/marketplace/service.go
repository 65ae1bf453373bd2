// Package marketplace orchestrates shopping and execution: capability
// extraction, trust, ranking, LLM selection, provider calls, evidence
// checks and the run ledger.
package marketplace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ujjwalredd/Axiomeer/pkg/cache"
	"github.com/ujjwalredd/Axiomeer/pkg/capability"
	"github.com/ujjwalredd/Axiomeer/pkg/catalog"
	"github.com/ujjwalredd/Axiomeer/pkg/config"
	"github.com/ujjwalredd/Axiomeer/pkg/evidence"
	"github.com/ujjwalredd/Axiomeer/pkg/executor"
	"github.com/ujjwalredd/Axiomeer/pkg/history"
	"github.com/ujjwalredd/Axiomeer/pkg/ledger"
	"github.com/ujjwalredd/Axiomeer/pkg/params"
	"github.com/ujjwalredd/Axiomeer/pkg/router"
	"github.com/ujjwalredd/Axiomeer/pkg/sales"
	"github.com/ujjwalredd/Axiomeer/pkg/trust"
)

// ErrInvalidRequest marks caller mistakes. Wrapped errors carry the detail.
var ErrInvalidRequest = errors.New("invalid request")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// Settings are the tunables the service reads on every request.
type Settings struct {
	SalesTopK         int
	AutoExtract       bool
	ExtractParams     bool
	ExecutorTimeout   time.Duration
	ShopTTL           time.Duration
	ProviderTTL       time.Duration
	MemoryMaxMessages int
}

// SettingsFrom extracts service settings from the loaded configuration.
func SettingsFrom(cfg *config.Config) Settings {
	return Settings{
		SalesTopK:         cfg.SalesAgent.TopK,
		AutoExtract:       cfg.Router.AutoExtract,
		ExtractParams:     cfg.Executor.ExtractParams,
		ExecutorTimeout:   cfg.Executor.Timeout(),
		ShopTTL:           cfg.Cache.ShopTTL(),
		ProviderTTL:       cfg.Cache.ProviderTTL(),
		MemoryMaxMessages: cfg.Memory.MaxMessages,
	}
}

// Deps are the collaborators the service is assembled from. Catalog,
// Ledger, Router, Agent and Executor are required.
type Deps struct {
	Catalog   catalog.Store
	Ledger    ledger.Ledger
	History   history.Store
	Cache     cache.Cache
	Router    *router.Router
	Extractor *capability.Extractor
	Agent     *sales.Agent
	Executor  *executor.Executor
	Params    *params.Extractor
	Receipts  *evidence.Writer
}

// Service is the marketplace core.
type Service struct {
	catalog   catalog.Store
	ledger    ledger.Ledger
	history   history.Store
	cache     cache.Cache
	router    *router.Router
	extractor *capability.Extractor
	agent     *sales.Agent
	executor  *executor.Executor
	params    *params.Extractor
	receipts  *evidence.Writer
	trust     *trust.Aggregator

	settings Settings
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New assembles a service.
func New(deps Deps, settings Settings, opts ...Option) (*Service, error) {
	switch {
	case deps.Catalog == nil:
		return nil, errors.New("marketplace: catalog store is required")
	case deps.Ledger == nil:
		return nil, errors.New("marketplace: ledger is required")
	case deps.Router == nil:
		return nil, errors.New("marketplace: router is required")
	case deps.Agent == nil:
		return nil, errors.New("marketplace: sales agent is required")
	case deps.Executor == nil:
		return nil, errors.New("marketplace: executor is required")
	}
	if deps.Cache == nil {
		deps.Cache = cache.NewMemory(0)
	}
	if settings.SalesTopK < 1 {
		settings.SalesTopK = 1
	}

	s := &Service{
		catalog:   deps.Catalog,
		ledger:    deps.Ledger,
		history:   deps.History,
		cache:     deps.Cache,
		router:    deps.Router,
		extractor: deps.Extractor,
		agent:     deps.Agent,
		executor:  deps.Executor,
		params:    deps.Params,
		receipts:  deps.Receipts,
		trust:     trust.NewAggregator(deps.Ledger),
		settings:  settings,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Bootstrap loads manifests from dir into the catalog.
func (s *Service) Bootstrap(ctx context.Context, dir string) (int, error) {
	return catalog.Bootstrap(ctx, s.catalog, dir, s.logger)
}

// logMessage appends to the client's history. Failures are logged only;
// conversation memory never fails a request.
func (s *Service) logMessage(ctx context.Context, clientID string, role history.Role, content string) {
	if s.history == nil || clientID == "" {
		return
	}
	if _, err := s.history.AppendMessage(ctx, history.Message{
		ClientID: clientID,
		Role:     role,
		Content:  content,
	}); err != nil {
		s.logger.Warn("failed to log message", zap.String("client_id", clientID), zap.Error(err))
	}
}

func (s *Service) recentHistory(ctx context.Context, clientID string) []history.Message {
	if s.history == nil || clientID == "" || s.settings.MemoryMaxMessages <= 0 {
		return nil
	}
	msgs, err := s.history.RecentMessages(ctx, clientID, s.settings.MemoryMaxMessages)
	if err != nil {
		s.logger.Warn("failed to load history", zap.String("client_id", clientID), zap.Error(err))
		return nil
	}
	return msgs
}
