package validation

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"hookrelay/pkg/errors"
	"hookrelay/pkg/models"
)

// Verifier authenticates one provider's signing scheme. Implementations must
// use constant-time comparison on the computed digest.
type Verifier interface {
	Name() string
	Verify(envelope models.WebhookEnvelope, secret string) error
}

// VerifierFor returns the signing scheme for a source name. Sources without a
// dedicated scheme share the generic header convention.
func VerifierFor(source string) Verifier {
	switch source {
	case "stripe":
		return timestampedVerifier{name: "stripe", header: "stripe-signature"}
	case "calendly":
		return timestampedVerifier{name: "calendly", header: "calendly-webhook-signature"}
	case "github":
		return prefixedVerifier{name: "github", header: "x-hub-signature-256", prefix: "sha256="}
	case "mailgun":
		return mailgunVerifier{}
	default:
		return prefixedVerifier{name: "generic", header: "x-webhook-signature", prefix: ""}
	}
}

func hmacHex(secret string, parts ...string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	for _, p := range parts {
		mac.Write([]byte(p))
	}
	return hex.EncodeToString(mac.Sum(nil))
}

// digestsEqual compares hex digests in constant time.
func digestsEqual(expected, provided string) bool {
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(provided)))
}

func signatureError(verifier, reason string) error {
	return errors.ErrValidation.
		WithMessage("signature verification failed").
		WithDetail("verifier", verifier).
		WithDetail("reason", reason).
		AsFatal()
}

// timestampedVerifier handles the `t=<ts>,v1=<sig>` header format where the
// signed payload is "<ts>.<raw body>". Multiple v1 entries may be present
// during secret rotation; any match passes.
type timestampedVerifier struct {
	name   string
	header string
}

func (v timestampedVerifier) Name() string { return v.name }

func (v timestampedVerifier) Verify(envelope models.WebhookEnvelope, secret string) error {
	header := envelope.Header(v.header)
	if header == "" {
		return signatureError(v.name, "missing signature header")
	}

	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			signatures = append(signatures, value)
		}
	}

	if timestamp == "" || len(signatures) == 0 {
		return signatureError(v.name, "malformed signature header")
	}

	expected := hmacHex(secret, timestamp, ".", string(envelope.RawBody))
	for _, sig := range signatures {
		if digestsEqual(expected, sig) {
			return nil
		}
	}
	return signatureError(v.name, "signature mismatch")
}

// prefixedVerifier handles the single-digest header format, optionally with a
// scheme prefix such as "sha256=". The signed payload is the raw body.
type prefixedVerifier struct {
	name   string
	header string
	prefix string
}

func (v prefixedVerifier) Name() string { return v.name }

func (v prefixedVerifier) Verify(envelope models.WebhookEnvelope, secret string) error {
	header := envelope.Header(v.header)
	if header == "" {
		return signatureError(v.name, "missing signature header")
	}

	if v.prefix != "" {
		if !strings.HasPrefix(header, v.prefix) {
			return signatureError(v.name, "malformed signature header")
		}
		header = strings.TrimPrefix(header, v.prefix)
	}

	expected := hmacHex(secret, string(envelope.RawBody))
	if !digestsEqual(expected, header) {
		return signatureError(v.name, "signature mismatch")
	}
	return nil
}

// mailgunVerifier checks the signature object Mailgun embeds in the payload:
// hex HMAC over timestamp+token.
type mailgunVerifier struct{}

func (mailgunVerifier) Name() string { return "mailgun" }

func (mailgunVerifier) Verify(envelope models.WebhookEnvelope, secret string) error {
	sig, ok := envelope.Payload["signature"].(map[string]interface{})
	if !ok {
		return signatureError("mailgun", "missing signature object")
	}

	timestamp, _ := sig["timestamp"].(string)
	token, _ := sig["token"].(string)
	provided, _ := sig["signature"].(string)
	if timestamp == "" || token == "" || provided == "" {
		return signatureError("mailgun", "malformed signature object")
	}

	expected := hmacHex(secret, timestamp, token)
	if !digestsEqual(expected, provided) {
		return signatureError("mailgun", "signature mismatch")
	}
	return nil
}
