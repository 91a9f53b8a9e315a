package normalizer

import (
	"hookrelay/internal/constants"
	"hookrelay/pkg/models"
)

// Normalize maps a raw provider payload to the canonical operations for the
// analytics sink. It is pure and total: malformed or partial payloads yield
// an empty or best-effort sequence, never an error. Operations produced for
// one entity keep identify/group ahead of the entity's event.
func Normalize(source Source, payload map[string]interface{}) []models.Operation {
	obj := Object(payload)

	switch source {
	case SourceStripe:
		return normalizeStripe(obj)
	case SourceGitHub:
		return normalizeGitHub(obj)
	case SourceMailgun:
		return normalizeMailgun(obj)
	case SourceLinkedIn:
		return normalizeLinkedIn(obj)
	case SourceCalendly:
		return normalizeCalendly(obj)
	default:
		return normalizeGeneric(obj)
	}
}

// NormalizeEnvelope resolves the envelope's source name and normalizes its
// payload.
func NormalizeEnvelope(envelope models.WebhookEnvelope) []models.Operation {
	return Normalize(ParseSource(envelope.Source), envelope.Payload)
}

// orUnknown guarantees the non-empty distinct id invariant.
func orUnknown(distinctID string) string {
	if distinctID == "" {
		return constants.UnknownDistinctID
	}
	return distinctID
}
