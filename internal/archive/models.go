package archive

import (
	"time"

	"hookrelay/pkg/models"
)

// Record is the per-webhook delivery outcome persisted for audit. Failed
// webhooks are recorded here in addition to the DLQ so that permanently
// failed deliveries are never silently discarded.
type Record struct {
	WebhookID     string             `bson:"webhook_id" json:"webhook_id"`
	Source        string             `bson:"source" json:"source"`
	Status        string             `bson:"status" json:"status"`
	Operations    []models.Operation `bson:"operations,omitempty" json:"operations,omitempty"`
	FailureReason string             `bson:"failure_reason,omitempty" json:"failure_reason,omitempty"`
	ReceivedAt    time.Time          `bson:"received_at" json:"received_at"`
	ProcessedAt   time.Time          `bson:"processed_at" json:"processed_at"`
}
