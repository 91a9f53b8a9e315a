package normalizer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hookrelay/pkg/models"
)

func decodePayload(t *testing.T, raw string) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	return payload
}

func TestNormalizeStripe_CustomerCreated(t *testing.T) {
	payload := decodePayload(t, `{
		"type": "customer.created",
		"data": {"object": {
			"object": "customer",
			"id": "cus_123",
			"email": "jane@example.com",
			"name": "Jane Doe",
			"created": 1700000000
		}}
	}`)

	ops := Normalize(SourceStripe, payload)
	require.Len(t, ops, 2)

	require.Equal(t, models.KindIdentify, ops[0].Kind)
	assert.Equal(t, "cus_123", ops[0].Identify.DistinctID)
	assert.Equal(t, "jane@example.com", ops[0].Identify.Properties["email"])
	assert.Equal(t, "Jane Doe", ops[0].Identify.Properties["name"])
	assert.Equal(t, float64(1700000000), ops[0].Identify.Properties["created"])

	require.Equal(t, models.KindEvent, ops[1].Kind)
	assert.Equal(t, "stripe.customer.created", ops[1].Event.Name)
	assert.Equal(t, "cus_123", ops[1].Event.DistinctID)
}

func TestNormalizeStripe_CustomerWithoutOptionalFields(t *testing.T) {
	payload := decodePayload(t, `{
		"type": "customer.created",
		"data": {"object": {"object": "customer", "id": "cus_9", "email": null}}
	}`)

	ops := Normalize(SourceStripe, payload)
	require.Len(t, ops, 2)
	assert.NotContains(t, ops[0].Identify.Properties, "email")
	assert.NotContains(t, ops[0].Identify.Properties, "name")
}

func TestNormalizeStripe_NonCustomerKeyedByCustomerRef(t *testing.T) {
	payload := decodePayload(t, `{
		"type": "invoice.paid",
		"data": {"object": {"object": "invoice", "id": "in_1", "customer": "cus_42"}}
	}`)

	ops := Normalize(SourceStripe, payload)
	require.Len(t, ops, 1)
	require.Equal(t, models.KindEvent, ops[0].Kind)
	assert.Equal(t, "stripe.invoice.paid", ops[0].Event.Name)
	assert.Equal(t, "cus_42", ops[0].Event.DistinctID)
}

func TestNormalizeStripe_NonCustomerFallsBackToObjectID(t *testing.T) {
	payload := decodePayload(t, `{
		"type": "charge.refunded",
		"data": {"object": {"object": "charge", "id": "ch_7"}}
	}`)

	ops := Normalize(SourceStripe, payload)
	require.Len(t, ops, 1)
	assert.Equal(t, "ch_7", ops[0].Event.DistinctID)
}

func TestNormalizeStripe_MissingEnvelopeFields(t *testing.T) {
	assert.Empty(t, Normalize(SourceStripe, decodePayload(t, `{"data": {"object": {}}}`)))
	assert.Empty(t, Normalize(SourceStripe, decodePayload(t, `{"type": "customer.created"}`)))
	assert.Empty(t, Normalize(SourceStripe, decodePayload(t, `{"type": "x", "data": {"object": "not-an-object"}}`)))
}

func TestNormalizeGitHub_FullPayloadOrdering(t *testing.T) {
	payload := decodePayload(t, `{
		"action": "opened",
		"sender": {"login": "octocat", "id": 1, "type": "User"},
		"repository": {
			"name": "hello",
			"full_name": "octocat/hello",
			"private": false,
			"owner": {"login": "octocat"}
		}
	}`)

	ops := Normalize(SourceGitHub, payload)
	require.Len(t, ops, 3)

	require.Equal(t, models.KindIdentify, ops[0].Kind)
	assert.Equal(t, "github:octocat", ops[0].Identify.DistinctID)
	assert.Equal(t, "octocat", ops[0].Identify.Properties["github_login"])

	require.Equal(t, models.KindGroup, ops[1].Kind)
	assert.Equal(t, "repository", ops[1].Group.Type)
	assert.Equal(t, "github:octocat/hello", ops[1].Group.Key)
	assert.Equal(t, "github:octocat", ops[1].Group.DistinctID)
	assert.Equal(t, "octocat", ops[1].Group.Properties["owner"])

	require.Equal(t, models.KindEvent, ops[2].Kind)
	assert.Equal(t, "github.opened", ops[2].Event.Name)
	assert.Equal(t, "github:octocat", ops[2].Event.DistinctID)
}

func TestNormalizeGitHub_NoSenderStillEmitsEvent(t *testing.T) {
	payload := decodePayload(t, `{"zen": "Keep it simple"}`)

	ops := Normalize(SourceGitHub, payload)
	require.Len(t, ops, 1)
	require.Equal(t, models.KindEvent, ops[0].Kind)
	assert.Equal(t, "github.webhook", ops[0].Event.Name)
	assert.Equal(t, "unknown", ops[0].Event.DistinctID)
}

func TestNormalizeMailgun_WithRecipient(t *testing.T) {
	payload := decodePayload(t, `{"event": "delivered", "recipient": "bob@example.com"}`)

	ops := Normalize(SourceMailgun, payload)
	require.Len(t, ops, 2)
	assert.Equal(t, "bob@example.com", ops[0].Identify.DistinctID)
	assert.Equal(t, "bob@example.com", ops[0].Identify.Properties["email"])
	assert.Equal(t, "mailgun.delivered", ops[1].Event.Name)
}

func TestNormalizeMailgun_NoRecipient(t *testing.T) {
	ops := Normalize(SourceMailgun, decodePayload(t, `{"event": "delivered"}`))
	assert.Empty(t, ops)
}

func TestNormalizeLinkedIn_LeadsArray(t *testing.T) {
	payload := decodePayload(t, `{"leads": [
		{"email": "a@x.com", "firstName": "Ann", "lastName": "Ash", "company": "Acme Corp"},
		{"emailAddress": "b@x.com", "firstName": "Bo"}
	]}`)

	ops := Normalize(SourceLinkedIn, payload)
	require.Len(t, ops, 5)

	require.Equal(t, models.KindIdentify, ops[0].Kind)
	assert.Equal(t, "a@x.com", ops[0].Identify.DistinctID)
	assert.Equal(t, "Ann Ash", ops[0].Identify.Properties["name"])

	require.Equal(t, models.KindGroup, ops[1].Kind)
	assert.Equal(t, "company", ops[1].Group.Type)
	assert.Equal(t, "company:acme-corp", ops[1].Group.Key)
	assert.Equal(t, "a@x.com", ops[1].Group.DistinctID)

	require.Equal(t, models.KindEvent, ops[2].Kind)
	assert.Equal(t, "linkedin.lead_captured", ops[2].Event.Name)
	assert.Equal(t, "linkedin_lead_sync", ops[2].Event.Properties["source"])

	assert.Equal(t, "b@x.com", ops[3].Identify.DistinctID)
	assert.Equal(t, "Bo", ops[3].Identify.Properties["name"])
	assert.Equal(t, models.KindEvent, ops[4].Kind)
}

func TestNormalizeLinkedIn_DirectFields(t *testing.T) {
	payload := decodePayload(t, `{"email": "c@x.com", "firstName": "Cy", "campaignId": 99}`)

	ops := Normalize(SourceLinkedIn, payload)
	require.Len(t, ops, 2)
	assert.Equal(t, "c@x.com", ops[0].Identify.DistinctID)
	assert.Equal(t, float64(99), ops[1].Event.Properties["campaign_id"])
}

func TestNormalizeLinkedIn_NoIdentifierGetsGeneratedID(t *testing.T) {
	payload := decodePayload(t, `{"lead": {"firstName": "Dee"}}`)

	ops := Normalize(SourceLinkedIn, payload)
	require.Len(t, ops, 2)
	assert.Contains(t, ops[0].Identify.DistinctID, "linkedin:")
	assert.NotEqual(t, "linkedin:", ops[0].Identify.DistinctID)
	assert.Equal(t, ops[0].Identify.DistinctID, ops[1].Event.DistinctID)
}

func TestNormalizeLinkedIn_Unrecognized(t *testing.T) {
	assert.Empty(t, Normalize(SourceLinkedIn, decodePayload(t, `{"ping": true}`)))
}

func TestNormalizeCalendly_InviteeCreated(t *testing.T) {
	payload := decodePayload(t, `{
		"event": "invitee.created",
		"payload": {
			"invitee": {
				"email": "eve@example.com",
				"name": "Eve",
				"timezone": "Europe/Berlin",
				"uuid": "inv-1",
				"questions_and_answers": [
					{"question": "Company Size?", "answer": "50-100"}
				]
			},
			"event_type": {
				"name": "Intro Call",
				"uuid": "et-1",
				"organization": {"uuid": "org-1", "name": "Acme"}
			},
			"start_time": "2026-09-01T10:00:00Z",
			"end_time": "2026-09-01T10:30:00Z",
			"tracking": {"utm_source": "newsletter"}
		}
	}`)

	ops := Normalize(SourceCalendly, payload)
	require.Len(t, ops, 3)

	require.Equal(t, models.KindIdentify, ops[0].Kind)
	assert.Equal(t, "eve@example.com", ops[0].Identify.DistinctID)
	assert.Equal(t, "Europe/Berlin", ops[0].Identify.Properties["timezone"])
	assert.Equal(t, "50-100", ops[0].Identify.Properties["custom_company_size_"])

	require.Equal(t, models.KindEvent, ops[1].Kind)
	assert.Equal(t, "calendly.meeting_scheduled", ops[1].Event.Name)
	assert.Equal(t, "Intro Call", ops[1].Event.Properties["event_type_name"])
	assert.Equal(t, "2026-09-01T10:00:00Z", ops[1].Event.Properties["start_time"])
	assert.Equal(t, "newsletter", ops[1].Event.Properties["utm_source"])

	require.Equal(t, models.KindGroup, ops[2].Kind)
	assert.Equal(t, "organization", ops[2].Group.Type)
	assert.Equal(t, "calendly:org-1", ops[2].Group.Key)
	assert.Equal(t, "eve@example.com", ops[2].Group.DistinctID)
}

func TestNormalizeCalendly_InviteeCanceled(t *testing.T) {
	payload := decodePayload(t, `{
		"event": "invitee.canceled",
		"payload": {
			"invitee": {"email": "eve@example.com"},
			"event_type": {"name": "Intro Call"},
			"cancellation": {"reason": "conflict", "canceled_by": "host"},
			"canceled_at": "2026-09-01T09:00:00Z"
		}
	}`)

	ops := Normalize(SourceCalendly, payload)
	require.Len(t, ops, 2)
	assert.Equal(t, "calendly.meeting_canceled", ops[1].Event.Name)
	assert.Equal(t, "conflict", ops[1].Event.Properties["cancellation_reason"])
	assert.Equal(t, "host", ops[1].Event.Properties["canceled_by"])
}

func TestNormalizeCalendly_UnknownEventTypePassthrough(t *testing.T) {
	payload := decodePayload(t, `{
		"event": "routing_form_submission.created",
		"payload": {"email": "f@x.com", "form": "demo"}
	}`)

	ops := Normalize(SourceCalendly, payload)
	require.Len(t, ops, 2)
	assert.Equal(t, "f@x.com", ops[0].Identify.DistinctID)
	assert.Equal(t, "calendly.routing_form_submission.created", ops[1].Event.Name)
	assert.Equal(t, "demo", ops[1].Event.Properties["form"])
}

func TestNormalizeCalendly_NoNestedPayload(t *testing.T) {
	assert.Empty(t, Normalize(SourceCalendly, decodePayload(t, `{"event": "invitee.created"}`)))
}

func TestNormalizeGeneric_IdentifierWithProfile(t *testing.T) {
	payload := decodePayload(t, `{"user_id": "u-1", "email": "g@x.com", "event": "signup"}`)

	ops := Normalize(SourceGeneric, payload)
	require.Len(t, ops, 2)
	assert.Equal(t, "u-1", ops[0].Identify.DistinctID)
	assert.Equal(t, "g@x.com", ops[0].Identify.Properties["email"])
	assert.Equal(t, "signup", ops[1].Event.Name)
	assert.Equal(t, "u-1", ops[1].Event.DistinctID)
}

func TestNormalizeGeneric_IdentifierWithoutProfile(t *testing.T) {
	payload := decodePayload(t, `{"id": "obj-1", "status": "ok"}`)

	ops := Normalize(SourceGeneric, payload)
	require.Len(t, ops, 1)
	require.Equal(t, models.KindEvent, ops[0].Kind)
	assert.Equal(t, "webhook.received", ops[0].Event.Name)
	assert.Equal(t, "obj-1", ops[0].Event.DistinctID)
}

func TestNormalizeGeneric_NoIdentifier(t *testing.T) {
	ops := Normalize(SourceGeneric, decodePayload(t, `{"hello": "world"}`))
	require.Len(t, ops, 1)
	assert.Equal(t, "unknown", ops[0].Event.DistinctID)
}

func TestNormalize_DistinctIDsNeverEmpty(t *testing.T) {
	payloads := []string{
		`{"type": "x.y", "data": {"object": {}}}`,
		`{"action": "opened"}`,
		`{"event": "e", "recipient": "r@x.com"}`,
		`{"leads": [{"firstName": "A"}]}`,
		`{"event": "invitee.created", "payload": {"invitee": {}}}`,
		`{"foo": "bar"}`,
	}
	sources := []Source{SourceStripe, SourceGitHub, SourceMailgun, SourceLinkedIn, SourceCalendly, SourceGeneric}

	for i, raw := range payloads {
		for _, op := range Normalize(sources[i], decodePayload(t, raw)) {
			switch op.Kind {
			case models.KindIdentify:
				assert.NotEmpty(t, op.Identify.DistinctID)
			case models.KindEvent:
				assert.NotEmpty(t, op.Event.DistinctID)
			case models.KindGroup:
				assert.NotEmpty(t, op.Group.Key)
			}
		}
	}
}

func TestNormalize_NeverPanicsOnMalformedShapes(t *testing.T) {
	payloads := []string{
		`{"type": 42, "data": []}`,
		`{"sender": "not-an-object", "repository": 3}`,
		`{"recipient": 5}`,
		`{"leads": ["oops", 7]}`,
		`{"event": "invitee.created", "payload": {"invitee": {"questions_and_answers": [1, {"question": 2}]}}}`,
		`{"user_id": {"nested": true}}`,
	}

	for _, raw := range payloads {
		payload := decodePayload(t, raw)
		for _, source := range []Source{SourceStripe, SourceGitHub, SourceMailgun, SourceLinkedIn, SourceCalendly, SourceGeneric} {
			assert.NotPanics(t, func() { Normalize(source, payload) })
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	payload := decodePayload(t, `{
		"action": "opened",
		"sender": {"login": "octocat"},
		"repository": {"full_name": "octocat/hello"}
	}`)

	first := Normalize(SourceGitHub, payload)
	second := Normalize(SourceGitHub, payload)
	assert.Equal(t, first, second)
}

func TestParseSource_RoundTrip(t *testing.T) {
	for _, s := range []Source{SourceStripe, SourceGitHub, SourceMailgun, SourceLinkedIn, SourceCalendly, SourceGeneric} {
		assert.Equal(t, s, ParseSource(s.String()))
	}
	assert.Equal(t, SourceGeneric, ParseSource("unheard-of"))
}

func TestNormalizeEnvelope_UsesSourceName(t *testing.T) {
	envelope := models.WebhookEnvelope{
		Source:  "mailgun",
		Payload: decodePayload(t, `{"event": "opened", "recipient": "z@x.com"}`),
	}

	ops := NormalizeEnvelope(envelope)
	require.Len(t, ops, 2)
	assert.Equal(t, "mailgun.opened", ops[1].Event.Name)
}
