package broker

import (
	"context"

	"hookrelay/pkg/models"
)

type Producer interface {
	Publish(ctx context.Context, topic string, envelope models.WebhookEnvelope) error
	Close() error
}

type Consumer interface {
	Consume(ctx context.Context, topic string, handler HandlerFunc) error
	Close() error
	SetServiceName(name string)
}

type HandlerFunc func(ctx context.Context, envelope models.WebhookEnvelope) error
