package cel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hookrelay/pkg/models"
)

func TestNewEvaluator(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)
	assert.NotNil(t, eval)
}

func TestValidateFilterExpression(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	tests := []struct {
		name      string
		expr      string
		wantError bool
	}{
		{
			name:      "valid simple expression",
			expr:      `payload.action != "ping"`,
			wantError: false,
		},
		{
			name:      "valid source check",
			expr:      `source == "stripe"`,
			wantError: false,
		},
		{
			name:      "invalid syntax",
			expr:      `invalid syntax here!!!`,
			wantError: true,
		},
		{
			name:      "undefined variable",
			expr:      `undefinedVar == "test"`,
			wantError: true,
		},
		{
			name:      "non-bool result",
			expr:      `payload.action`,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eval.ValidateFilterExpression(tt.expr)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEvaluateFilter(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	envelope := models.WebhookEnvelope{
		ID:         "wh-1",
		Source:     "github",
		ReceivedAt: time.Now(),
		Payload: map[string]interface{}{
			"action": "opened",
			"number": float64(7),
			"sender": map[string]interface{}{"login": "octocat"},
		},
		Headers: map[string]string{"x-github-event": "pull_request"},
	}

	tests := []struct {
		name     string
		expr     string
		expected bool
	}{
		{
			name:     "payload field match",
			expr:     `payload.action == "opened"`,
			expected: true,
		},
		{
			name:     "suppress pings passes non-ping",
			expr:     `payload.action != "ping"`,
			expected: true,
		},
		{
			name:     "source mismatch",
			expr:     `source == "stripe"`,
			expected: false,
		},
		{
			name:     "nested field",
			expr:     `payload.sender.login == "octocat"`,
			expected: true,
		},
		{
			name:     "header access",
			expr:     `headers["x-github-event"] == "pull_request"`,
			expected: true,
		},
		{
			name:     "has guard on absent field",
			expr:     `has(payload.livemode) && payload.livemode == true`,
			expected: false,
		},
		{
			name:     "numeric comparison",
			expr:     `payload.number > 5.0`,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := eval.EvaluateFilter(context.Background(), tt.expr, envelope)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestEvaluateFilter_MissingFieldErrors(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	envelope := models.WebhookEnvelope{ID: "wh-1", Source: "generic"}
	_, err = eval.EvaluateFilter(context.Background(), `payload.missing == "x"`, envelope)
	assert.Error(t, err)
}

func TestEvaluateFilter_CompileError(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	_, err = eval.EvaluateFilter(context.Background(), `not valid (((`, models.WebhookEnvelope{})
	assert.Error(t, err)
}

func TestFilterExpressionExamplesAllValid(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	for name, expr := range FilterExpressionExamples {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, eval.ValidateFilterExpression(expr))
		})
	}
}
