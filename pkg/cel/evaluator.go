package cel

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"hookrelay/pkg/models"
)

// Evaluator compiles and runs suppression filter expressions against webhook
// envelopes. An expression returning false suppresses the webhook.
type Evaluator struct {
	env *cel.Env
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("source", cel.StringType),
		cel.Variable("received_at", cel.TimestampType),
		cel.Variable("payload", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("headers", cel.MapType(cel.StringType, cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

// ValidateFilterExpression checks that the expression compiles and returns a
// bool. Used when registry rows are written, not on the hot path.
func (e *Evaluator) ValidateFilterExpression(expression string) error {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return fmt.Errorf("filter expression must return bool, got %v", ast.OutputType())
	}

	return nil
}

// EvaluateFilter runs the expression against the envelope. True means the
// webhook passes.
func (e *Evaluator) EvaluateFilter(ctx context.Context, expression string, envelope models.WebhookEnvelope) (bool, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return false, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return false, fmt.Errorf("filter expression must return bool, got %v", ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return false, fmt.Errorf("failed to create CEL program: %w", err)
	}

	payload := envelope.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}
	headers := envelope.Headers
	if headers == nil {
		headers = map[string]string{}
	}

	vars := map[string]interface{}{
		"id":          envelope.ID,
		"source":      envelope.Source,
		"received_at": envelope.ReceivedAt,
		"payload":     payload,
		"headers":     headers,
	}

	result, _, err := program.ContextEval(ctx, vars)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return boolVal, nil
}
