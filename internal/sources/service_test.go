package sources

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hookrelay/internal/config"
	"hookrelay/internal/logger"
	"hookrelay/pkg/cel"
)

type fakeRepository struct {
	sources []WebhookSource
	err     error
	calls   int
}

func (f *fakeRepository) GetActiveSources(_ context.Context) ([]WebhookSource, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.sources, nil
}

func TestService_StaticModeServesConfigSecrets(t *testing.T) {
	svc := NewService(nil, config.SourcesConfig{}, map[string]string{"stripe": "whsec_1"}, logger.NopLogger())

	secret, ok := svc.Secret(context.Background(), "stripe")
	require.True(t, ok)
	assert.Equal(t, "whsec_1", secret)

	_, ok = svc.Secret(context.Background(), "github")
	assert.False(t, ok)

	assert.True(t, svc.Enabled("anything"))
	require.NoError(t, svc.Reload(context.Background()))
}

func TestService_ReloadSnapshotsRegistry(t *testing.T) {
	repo := &fakeRepository{sources: []WebhookSource{
		{ID: "1", Name: "stripe", Enabled: true, Secret: "whsec_db"},
		{ID: "2", Name: "github", Enabled: true, FilterExpression: `payload.action != "ping"`},
	}}
	svc := NewService(repo, config.SourcesConfig{}, map[string]string{"stripe": "whsec_static"}, logger.NopLogger())

	require.NoError(t, svc.Reload(context.Background()))

	assert.True(t, svc.Enabled("stripe"))
	assert.True(t, svc.Enabled("github"))
	assert.False(t, svc.Enabled("mailgun"))

	secret, ok := svc.Secret(context.Background(), "stripe")
	require.True(t, ok)
	assert.Equal(t, "whsec_db", secret)

	expr, ok := svc.Filter("github")
	require.True(t, ok)
	assert.Equal(t, `payload.action != "ping"`, expr)

	_, ok = svc.Filter("stripe")
	assert.False(t, ok)
}

func TestService_ReloadDropsInvalidFilterExpression(t *testing.T) {
	evaluator, err := cel.NewEvaluator()
	require.NoError(t, err)

	repo := &fakeRepository{sources: []WebhookSource{
		{ID: "1", Name: "github", Enabled: true, FilterExpression: `payload.action != "ping"`},
		{ID: "2", Name: "stripe", Enabled: true, FilterExpression: `payload.type ==`},
	}}
	svc := NewService(repo, config.SourcesConfig{}, nil, logger.NopLogger(), WithFilterValidator(evaluator))

	require.NoError(t, svc.Reload(context.Background()))

	// The broken expression is discarded; the source itself stays enabled.
	_, ok := svc.Filter("stripe")
	assert.False(t, ok)
	assert.True(t, svc.Enabled("stripe"))

	expr, ok := svc.Filter("github")
	require.True(t, ok)
	assert.Equal(t, `payload.action != "ping"`, expr)
}

func TestService_RegistrySecretFallsBackToStatic(t *testing.T) {
	repo := &fakeRepository{sources: []WebhookSource{
		{ID: "1", Name: "stripe", Enabled: true},
	}}
	svc := NewService(repo, config.SourcesConfig{}, map[string]string{"stripe": "whsec_static"}, logger.NopLogger())
	require.NoError(t, svc.Reload(context.Background()))

	secret, ok := svc.Secret(context.Background(), "stripe")
	require.True(t, ok)
	assert.Equal(t, "whsec_static", secret)
}

func TestService_EnabledBeforeFirstReload(t *testing.T) {
	repo := &fakeRepository{}
	svc := NewService(repo, config.SourcesConfig{}, nil, logger.NopLogger())

	assert.True(t, svc.Enabled("stripe"))
}

func TestService_ReloadErrorKeepsSnapshot(t *testing.T) {
	repo := &fakeRepository{sources: []WebhookSource{
		{ID: "1", Name: "stripe", Enabled: true},
	}}
	svc := NewService(repo, config.SourcesConfig{}, nil, logger.NopLogger())
	require.NoError(t, svc.Reload(context.Background()))

	repo.err = errors.New("connection refused")
	require.Error(t, svc.Reload(context.Background()))

	assert.True(t, svc.Enabled("stripe"))
}
