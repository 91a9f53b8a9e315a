package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout = 10 * time.Second
)

const (
	CacheKeyPrefixDedup = "webhook:dedup:"
)

const (
	DefaultInboundTopic  = "webhooks_inbound"
	DefaultReceivedTopic = "webhooks_received"
)

const (
	DefaultMongoDBName = "hookrelay"
	ArchiveCollection  = "webhook_archive"
)

const (
	ArchiveStatusDelivered    = "delivered"
	ArchiveStatusSuppressed   = "suppressed"
	ArchiveStatusFailed       = "failed"
	ArchiveStatusNoOperations = "no_operations"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultDedupTTLSeconds = 3600
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)

const (
	FallbackAllow = "allow"
	FallbackDeny  = "deny"
)

// UnknownDistinctID is emitted when a payload carries no usable identity.
// Operations never leave the normalizer with an empty distinct id.
const UnknownDistinctID = "unknown"
