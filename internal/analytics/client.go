package analytics

import (
	"context"
)

// Client is the analytics sink contract. Implementations must be safe for
// concurrent use; the delivery service fans operations out across goroutines.
type Client interface {
	Identify(ctx context.Context, distinctID string, properties map[string]interface{}) error
	Capture(ctx context.Context, distinctID, event string, properties map[string]interface{}) error
	GroupIdentify(ctx context.Context, groupType, groupKey string, properties map[string]interface{}, distinctID string) error
	Close() error
}
