package sources

import "time"

// WebhookSource is one row of the source registry. Secret signs inbound
// webhooks, FilterExpression optionally suppresses them before delivery.
type WebhookSource struct {
	ID               string
	Name             string
	Enabled          bool
	Secret           string
	FilterExpression string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
