package models

import (
	"strings"
	"time"
)

// WebhookEnvelope is the unit of work flowing through the pipeline. It is
// created once at ingestion and never mutated except for pipeline metadata.
type WebhookEnvelope struct {
	ID         string                 `json:"id"`
	Source     string                 `json:"source"`
	Payload    map[string]interface{} `json:"payload"`
	RawBody    []byte                 `json:"raw_body,omitempty"`
	Headers    map[string]string      `json:"headers,omitempty"`
	ReceivedAt time.Time              `json:"received_at"`
	Metadata   Metadata               `json:"metadata"`
}

// Header returns the first header value matching name case-insensitively.
func (e WebhookEnvelope) Header(name string) string {
	if v, ok := e.Headers[name]; ok {
		return v
	}
	lower := strings.ToLower(name)
	for k, v := range e.Headers {
		if strings.ToLower(k) == lower {
			return v
		}
	}
	return ""
}

type Metadata struct {
	TraceID    string                 `json:"trace_id,omitempty"`
	Validation *ValidationInfo        `json:"validation,omitempty"`
	Delivery   *DeliveryInfo          `json:"delivery,omitempty"`
	DLQ        map[string]interface{} `json:"dlq,omitempty"`
}

type ValidationInfo struct {
	VerifiedAt time.Time `json:"verified_at"`
	Verifier   string    `json:"verifier"`
	IsUnique   bool      `json:"is_unique"`
}

type DeliveryInfo struct {
	DeliveredAt time.Time `json:"delivered_at"`
	Operations  int       `json:"operations"`
}
