package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"hookrelay/pkg/models"
)

// FingerprintEnvelope hashes the envelope's source and payload so redelivered
// webhooks collapse onto the same key regardless of their delivery id.
// json.Marshal sorts map keys, which keeps the digest deterministic.
func FingerprintEnvelope(envelope models.WebhookEnvelope) (string, error) {
	payload, err := json.Marshal(envelope.Payload)
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint webhook %s: %w", envelope.ID, err)
	}

	h := sha256.New()
	h.Write([]byte(envelope.Source))
	h.Write([]byte("|"))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil)), nil
}
