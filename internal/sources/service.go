package sources

import (
	"context"
	"sync"
	"time"

	"hookrelay/internal/config"
	"hookrelay/internal/logger"
	"hookrelay/pkg/metrics"
)

// FilterValidator rejects malformed suppression expressions before they
// reach the delivery hot path.
type FilterValidator interface {
	ValidateFilterExpression(expression string) error
}

// Service holds an in-memory snapshot of the source registry and refreshes it
// on an interval. When no Postgres registry is configured it serves the
// static secrets from config and treats every source as enabled.
type Service struct {
	repo      Repository
	cfg       config.SourcesConfig
	static    map[string]string
	validator FilterValidator
	log       logger.Logger
	mu        sync.RWMutex
	byName    map[string]WebhookSource
	loaded    bool
}

type Option func(*Service)

// WithFilterValidator checks each row's suppression expression on reload.
// Sources with an invalid expression stay enabled but lose their filter.
func WithFilterValidator(v FilterValidator) Option {
	return func(s *Service) { s.validator = v }
}

func NewService(repo Repository, cfg config.SourcesConfig, static map[string]string, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		cfg:    cfg,
		static: static,
		log:    log,
		byName: make(map[string]WebhookSource),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reload replaces the snapshot with the registry's current enabled sources.
func (s *Service) Reload(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}

	active, err := s.repo.GetActiveSources(ctx)
	if err != nil {
		return err
	}

	byName := make(map[string]WebhookSource, len(active))
	for _, src := range active {
		if src.FilterExpression != "" && s.validator != nil {
			if verr := s.validator.ValidateFilterExpression(src.FilterExpression); verr != nil {
				metrics.FallbackUsageTotal.WithLabelValues("suppression", "ignore_filter", "invalid_expression").Inc()
				s.log.ErrorwCtx(ctx, "invalid suppression filter, ignoring it",
					"source_name", src.Name,
					"expression", src.FilterExpression,
					"error", verr,
				)
				src.FilterExpression = ""
			}
		}
		byName[src.Name] = src
	}

	s.mu.Lock()
	s.byName = byName
	s.loaded = true
	s.mu.Unlock()

	metrics.ActiveSources.Set(float64(len(byName)))
	s.log.InfowCtx(ctx, "reloaded webhook sources",
		"sources_count", len(byName),
	)
	return nil
}

// StartReloader refreshes the snapshot until ctx is cancelled. Reload errors
// keep the previous snapshot and are retried on the next tick.
func (s *Service) StartReloader(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}

	interval := time.Duration(s.cfg.Reload.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.Reload(ctx); err != nil {
				s.log.ErrorwCtx(ctx, "failed to reload webhook sources",
					"error", err,
				)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Enabled reports whether the source accepts webhooks. Before the first
// successful reload, and in static mode, every source is accepted.
func (s *Service) Enabled(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.repo == nil || !s.loaded {
		return true
	}
	_, ok := s.byName[name]
	return ok
}

// Secret implements the validation stage's secret lookup.
func (s *Service) Secret(_ context.Context, name string) (string, bool) {
	s.mu.RLock()
	if src, ok := s.byName[name]; ok && src.Secret != "" {
		s.mu.RUnlock()
		return src.Secret, true
	}
	s.mu.RUnlock()

	secret, ok := s.static[name]
	return secret, ok && secret != ""
}

// Filter returns the source's suppression expression when one is configured.
func (s *Service) Filter(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src, ok := s.byName[name]
	if !ok || src.FilterExpression == "" {
		return "", false
	}
	return src.FilterExpression, true
}
