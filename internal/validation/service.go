package validation

import (
	"context"
	"time"

	"hookrelay/internal/logger"
	"hookrelay/pkg/metrics"
	"hookrelay/pkg/models"
)

// SecretProvider resolves the signing secret for a source. The source
// registry backs this in production; static config is the fallback.
type SecretProvider interface {
	Secret(ctx context.Context, source string) (string, bool)
}

// StaticSecrets adapts a config map to the SecretProvider interface.
type StaticSecrets map[string]string

func (s StaticSecrets) Secret(_ context.Context, source string) (string, bool) {
	secret, ok := s[source]
	return secret, ok && secret != ""
}

type Service struct {
	secrets SecretProvider
	log     logger.Logger
}

func NewService(secrets SecretProvider, log logger.Logger) *Service {
	return &Service{secrets: secrets, log: log}
}

// Validate authenticates the envelope against its source's signing scheme.
// A source with no configured secret passes unverified; that gap is recorded
// in the envelope metadata and metrics rather than hidden.
func (s *Service) Validate(ctx context.Context, envelope *models.WebhookEnvelope) error {
	start := time.Now()

	secret, ok := s.secrets.Secret(ctx, envelope.Source)
	if !ok {
		s.log.DebugwCtx(ctx, "no signing secret configured, skipping verification")
		metrics.ValidationTotal.WithLabelValues(envelope.Source, "skipped").Inc()
		envelope.Metadata.Validation = &models.ValidationInfo{
			VerifiedAt: time.Now().UTC(),
			Verifier:   "none",
		}
		return nil
	}

	verifier := VerifierFor(envelope.Source)
	if err := verifier.Verify(*envelope, secret); err != nil {
		metrics.ValidationTotal.WithLabelValues(envelope.Source, "failed").Inc()
		metrics.ObserveValidationDuration(time.Since(start), "failed")
		s.log.WarnwCtx(ctx, "webhook signature verification failed",
			"verifier", verifier.Name(),
			"error", err,
		)
		return err
	}

	metrics.ValidationTotal.WithLabelValues(envelope.Source, "passed").Inc()
	metrics.ObserveValidationDuration(time.Since(start), "passed")

	envelope.Metadata.Validation = &models.ValidationInfo{
		VerifiedAt: time.Now().UTC(),
		Verifier:   verifier.Name(),
	}
	return nil
}
