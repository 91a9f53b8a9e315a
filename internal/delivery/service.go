package delivery

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"hookrelay/internal/analytics"
	"hookrelay/internal/archive"
	"hookrelay/internal/constants"
	"hookrelay/internal/logger"
	"hookrelay/internal/normalizer"
	"hookrelay/pkg/cel"
	"hookrelay/pkg/circuitbreaker"
	"hookrelay/pkg/errors"
	"hookrelay/pkg/metrics"
	"hookrelay/pkg/models"
)

// FilterProvider resolves the suppression expression for a source, if any.
type FilterProvider interface {
	Filter(source string) (string, bool)
}

// Service turns a validated envelope into canonical operations and delivers
// them to the analytics sink. All operations of one webhook are dispatched
// concurrently and every outcome is gathered before the stage settles.
type Service struct {
	client    analytics.Client
	breaker   *circuitbreaker.Wrapper
	evaluator *cel.Evaluator
	filters   FilterProvider
	archive   archive.Repository
	log       logger.Logger
}

func NewService(client analytics.Client, log logger.Logger, opts ...Option) (*Service, error) {
	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL evaluator: %w", err)
	}

	s := &Service{
		client:    client,
		evaluator: evaluator,
		log:       log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type Option func(*Service)

func WithCircuitBreaker(breaker *circuitbreaker.Wrapper) Option {
	return func(s *Service) { s.breaker = breaker }
}

func WithFilterProvider(filters FilterProvider) Option {
	return func(s *Service) { s.filters = filters }
}

func WithArchive(repo archive.Repository) Option {
	return func(s *Service) { s.archive = repo }
}

// Process runs the delivery stage for one webhook. A nil return means the
// webhook is settled: delivered, suppressed, or produced no operations.
func (s *Service) Process(ctx context.Context, envelope models.WebhookEnvelope) error {
	start := time.Now()

	if suppressed := s.suppressed(ctx, envelope); suppressed {
		metrics.SuppressedTotal.WithLabelValues(envelope.Source).Inc()
		s.archiveOutcome(ctx, envelope, constants.ArchiveStatusSuppressed, nil, "")
		return nil
	}

	ops := normalizer.NormalizeEnvelope(envelope)
	for _, op := range ops {
		metrics.NormalizedOperationsTotal.WithLabelValues(envelope.Source, string(op.Kind)).Inc()
	}

	if len(ops) == 0 {
		s.log.InfowCtx(ctx, "webhook produced no operations")
		s.archiveOutcome(ctx, envelope, constants.ArchiveStatusNoOperations, nil, "")
		return nil
	}

	err := s.deliverAll(ctx, ops)
	metrics.ObserveDeliveryDuration(time.Since(start), deliveryStatus(err))

	if err != nil {
		s.archiveOutcome(ctx, envelope, constants.ArchiveStatusFailed, ops, err.Error())
		return err
	}

	envelope.Metadata.Delivery = &models.DeliveryInfo{
		DeliveredAt: time.Now().UTC(),
		Operations:  len(ops),
	}
	s.archiveOutcome(ctx, envelope, constants.ArchiveStatusDelivered, ops, "")
	s.log.InfowCtx(ctx, "webhook delivered",
		"operations", len(ops),
	)
	return nil
}

// deliverAll dispatches every operation concurrently and waits for all of
// them to settle. One failing operation never cancels its siblings; every
// failure is gathered into the aggregate error.
func (s *Service) deliverAll(ctx context.Context, ops []models.Operation) error {
	results := make([]error, len(ops))

	var wg sync.WaitGroup
	for i, op := range ops {
		wg.Add(1)
		go func(i int, op models.Operation) {
			defer wg.Done()
			results[i] = s.dispatch(ctx, op)
		}(i, op)
	}
	wg.Wait()

	var failed []error
	anyRetryable := false
	for i, err := range results {
		kind := string(ops[i].Kind)
		if err == nil {
			metrics.DeliveryTotal.WithLabelValues(kind, "delivered").Inc()
			continue
		}
		metrics.DeliveryTotal.WithLabelValues(kind, "failed").Inc()
		failed = append(failed, fmt.Errorf("%s: %w", kind, err))
		if isRetryable(err) {
			anyRetryable = true
		}
	}

	if len(failed) == 0 {
		return nil
	}

	aggregate := errors.ErrDelivery.
		WithMessage(fmt.Sprintf("%d of %d operations failed", len(failed), len(ops))).
		WithCause(stderrors.Join(failed...))
	if anyRetryable {
		return aggregate.AsRetryable()
	}
	return aggregate.AsFatal()
}

func (s *Service) dispatch(ctx context.Context, op models.Operation) error {
	call := func() error {
		switch op.Kind {
		case models.KindIdentify:
			return s.client.Identify(ctx, op.Identify.DistinctID, op.Identify.Properties)
		case models.KindEvent:
			return s.client.Capture(ctx, op.Event.DistinctID, op.Event.Name, op.Event.Properties)
		case models.KindGroup:
			return s.client.GroupIdentify(ctx, op.Group.Type, op.Group.Key, op.Group.Properties, op.Group.DistinctID)
		default:
			return errors.ErrInternal.WithMessage(fmt.Sprintf("unknown operation kind %q", op.Kind)).AsFatal()
		}
	}

	if s.breaker == nil {
		return call()
	}

	_, err := s.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
		return nil, call()
	})
	s.breaker.RecordRequest(err == nil)

	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.ErrDelivery.
			WithMessage("analytics sink circuit breaker open").
			WithCause(err).
			AsRetryable()
	}
	return err
}

// suppressed evaluates the source's filter expression. Evaluation errors
// never drop a webhook; the failure is recorded and the webhook passes.
func (s *Service) suppressed(ctx context.Context, envelope models.WebhookEnvelope) bool {
	if s.filters == nil {
		return false
	}

	expr, ok := s.filters.Filter(envelope.Source)
	if !ok {
		return false
	}

	passed, err := s.evaluator.EvaluateFilter(ctx, expr, envelope)
	if err != nil {
		metrics.FallbackUsageTotal.WithLabelValues("suppression", "allow_on_error", "evaluation_error").Inc()
		s.log.ErrorwCtx(ctx, "filter evaluation failed, allowing webhook",
			"expression", expr,
			"error", err,
		)
		return false
	}

	if !passed {
		s.log.InfowCtx(ctx, "webhook suppressed by source filter")
		return true
	}
	return false
}

func (s *Service) archiveOutcome(ctx context.Context, envelope models.WebhookEnvelope, status string, ops []models.Operation, failureReason string) {
	if s.archive == nil {
		return
	}

	record := archive.Record{
		WebhookID:     envelope.ID,
		Source:        envelope.Source,
		Status:        status,
		Operations:    ops,
		FailureReason: failureReason,
		ReceivedAt:    envelope.ReceivedAt,
		ProcessedAt:   time.Now().UTC(),
	}
	if err := s.archive.Save(ctx, record); err != nil {
		s.log.WarnwCtx(ctx, "failed to archive delivery outcome",
			"status", status,
			"error", err,
		)
	}
}

func isRetryable(err error) bool {
	var appErr *errors.Error
	if stderrors.As(err, &appErr) {
		return appErr.IsRetryable()
	}
	return true
}

func deliveryStatus(err error) string {
	if err != nil {
		return "failed"
	}
	return "delivered"
}
