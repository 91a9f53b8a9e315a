package dedup

import (
	"context"
	"fmt"
	"time"

	"hookrelay/internal/config"
	"hookrelay/internal/constants"
	"hookrelay/internal/logger"
	"hookrelay/pkg/metrics"
	"hookrelay/pkg/models"
)

// Service marks webhook fingerprints in Redis with a TTL. A fingerprint that
// was already present means the provider redelivered the webhook.
type Service struct {
	repo Repository
	cfg  config.DeduplicationConfig
	log  logger.Logger
}

func NewService(repo Repository, cfg config.DeduplicationConfig, log logger.Logger) *Service {
	if cfg.TTLSeconds <= 0 {
		cfg.TTLSeconds = constants.DefaultDedupTTLSeconds
	}
	return &Service{repo: repo, cfg: cfg, log: log}
}

// IsUnique reports whether this envelope's fingerprint is seen for the first
// time within the TTL window.
func (s *Service) IsUnique(ctx context.Context, envelope models.WebhookEnvelope) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	hash, err := FingerprintEnvelope(envelope)
	if err != nil {
		return false, err
	}

	key := constants.CacheKeyPrefixDedup + hash
	success, err := s.repo.SetNX(ctx, key, time.Now().Unix(), time.Duration(s.cfg.TTLSeconds)*time.Second)
	if err != nil {
		return s.handleRedisError(ctx, err, envelope.ID)
	}

	if success {
		metrics.DedupTotal.WithLabelValues("unique").Inc()
	} else {
		metrics.DedupTotal.WithLabelValues("duplicate").Inc()
	}
	return success, nil
}

func (s *Service) handleRedisError(ctx context.Context, err error, webhookID string) (bool, error) {
	metrics.DedupTotal.WithLabelValues("error").Inc()

	if s.cfg.OnRedisError == constants.FallbackAllow {
		metrics.FallbackUsageTotal.WithLabelValues("deduplication", "allow_on_error", "redis_error").Inc()
		s.log.WarnwCtx(ctx, "redis error during dedup check, allowing webhook",
			"error", err,
		)
		return true, nil
	}

	metrics.FallbackUsageTotal.WithLabelValues("deduplication", "deny_on_error", "redis_error").Inc()
	return false, fmt.Errorf("redis error during dedup check for webhook %s: %w", webhookID, err)
}
