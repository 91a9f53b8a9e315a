package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hookrelay/internal/config"
	"hookrelay/internal/constants"
	"hookrelay/internal/logger"
	"hookrelay/pkg/models"
)

type fakeRepository struct {
	seen    map[string]bool
	lastTTL time.Duration
	err     error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{seen: make(map[string]bool)}
}

func (f *fakeRepository) SetNX(_ context.Context, key string, _ interface{}, ttl time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.lastTTL = ttl
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func (f *fakeRepository) CacheSize(_ context.Context, _ string) (int, error) {
	return len(f.seen), nil
}

func testEnvelope(id, source string, payload map[string]interface{}) models.WebhookEnvelope {
	return models.WebhookEnvelope{ID: id, Source: source, Payload: payload}
}

func TestFingerprintEnvelope_IgnoresDeliveryID(t *testing.T) {
	payload := map[string]interface{}{"event": "delivered", "recipient": "a@x.com"}

	first, err := FingerprintEnvelope(testEnvelope("id-1", "mailgun", payload))
	require.NoError(t, err)
	second, err := FingerprintEnvelope(testEnvelope("id-2", "mailgun", payload))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestFingerprintEnvelope_DiffersBySourceAndPayload(t *testing.T) {
	payload := map[string]interface{}{"event": "delivered"}

	mailgun, err := FingerprintEnvelope(testEnvelope("id", "mailgun", payload))
	require.NoError(t, err)
	stripe, err := FingerprintEnvelope(testEnvelope("id", "stripe", payload))
	require.NoError(t, err)
	other, err := FingerprintEnvelope(testEnvelope("id", "mailgun", map[string]interface{}{"event": "opened"}))
	require.NoError(t, err)

	assert.NotEqual(t, mailgun, stripe)
	assert.NotEqual(t, mailgun, other)
}

func TestService_IsUnique_FirstThenDuplicate(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, config.DeduplicationConfig{Enabled: true, TTLSeconds: 60}, logger.NopLogger())

	envelope := testEnvelope("id-1", "stripe", map[string]interface{}{"type": "x"})

	unique, err := svc.IsUnique(context.Background(), envelope)
	require.NoError(t, err)
	assert.True(t, unique)
	assert.Equal(t, 60*time.Second, repo.lastTTL)

	unique, err = svc.IsUnique(context.Background(), envelope)
	require.NoError(t, err)
	assert.False(t, unique)
}

func TestService_DefaultTTLApplied(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, config.DeduplicationConfig{Enabled: true}, logger.NopLogger())

	_, err := svc.IsUnique(context.Background(), testEnvelope("id-1", "stripe", nil))
	require.NoError(t, err)
	assert.Equal(t, time.Duration(constants.DefaultDedupTTLSeconds)*time.Second, repo.lastTTL)
}

func TestService_RedisErrorFallbackAllow(t *testing.T) {
	repo := newFakeRepository()
	repo.err = errors.New("connection refused")
	svc := NewService(repo, config.DeduplicationConfig{
		Enabled:      true,
		TTLSeconds:   60,
		OnRedisError: constants.FallbackAllow,
	}, logger.NopLogger())

	unique, err := svc.IsUnique(context.Background(), testEnvelope("id-1", "stripe", nil))
	require.NoError(t, err)
	assert.True(t, unique)
}

func TestService_RedisErrorFallbackDeny(t *testing.T) {
	repo := newFakeRepository()
	repo.err = errors.New("connection refused")
	svc := NewService(repo, config.DeduplicationConfig{
		Enabled:      true,
		TTLSeconds:   60,
		OnRedisError: constants.FallbackDeny,
	}, logger.NopLogger())

	unique, err := svc.IsUnique(context.Background(), testEnvelope("id-1", "stripe", nil))
	require.Error(t, err)
	assert.False(t, unique)
}

func TestService_CancelledContext(t *testing.T) {
	svc := NewService(newFakeRepository(), config.DeduplicationConfig{TTLSeconds: 60}, logger.NopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.IsUnique(ctx, testEnvelope("id-1", "stripe", nil))
	require.ErrorIs(t, err, context.Canceled)
}
