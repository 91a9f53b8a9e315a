package validation

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hookrelay/internal/logger"
	"hookrelay/pkg/errors"
	"hookrelay/pkg/models"
)

func sign(secret string, parts ...string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	for _, p := range parts {
		mac.Write([]byte(p))
	}
	return hex.EncodeToString(mac.Sum(nil))
}

func TestStripeVerifier_ValidSignature(t *testing.T) {
	body := `{"type":"customer.created"}`
	sig := sign("whsec_test", "1700000000", ".", body)

	envelope := models.WebhookEnvelope{
		Source:  "stripe",
		RawBody: []byte(body),
		Headers: map[string]string{
			"stripe-signature": "t=1700000000,v1=" + sig,
		},
	}

	require.NoError(t, VerifierFor("stripe").Verify(envelope, "whsec_test"))
}

func TestStripeVerifier_RotatedSecretSecondSignatureMatches(t *testing.T) {
	body := `{}`
	oldSig := sign("old", "1", ".", body)
	newSig := sign("new", "1", ".", body)

	envelope := models.WebhookEnvelope{
		Source:  "stripe",
		RawBody: []byte(body),
		Headers: map[string]string{
			"stripe-signature": "t=1,v1=" + oldSig + ",v1=" + newSig,
		},
	}

	require.NoError(t, VerifierFor("stripe").Verify(envelope, "new"))
}

func TestStripeVerifier_WrongSecret(t *testing.T) {
	body := `{}`
	envelope := models.WebhookEnvelope{
		Source:  "stripe",
		RawBody: []byte(body),
		Headers: map[string]string{
			"stripe-signature": "t=1,v1=" + sign("wrong", "1", ".", body),
		},
	}

	err := VerifierFor("stripe").Verify(envelope, "right")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestStripeVerifier_MissingHeader(t *testing.T) {
	envelope := models.WebhookEnvelope{Source: "stripe", RawBody: []byte(`{}`)}
	err := VerifierFor("stripe").Verify(envelope, "secret")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestStripeVerifier_MalformedHeader(t *testing.T) {
	envelope := models.WebhookEnvelope{
		Source:  "stripe",
		RawBody: []byte(`{}`),
		Headers: map[string]string{"stripe-signature": "garbage"},
	}
	require.Error(t, VerifierFor("stripe").Verify(envelope, "secret"))
}

func TestGitHubVerifier_ValidSignature(t *testing.T) {
	body := `{"action":"opened"}`
	envelope := models.WebhookEnvelope{
		Source:  "github",
		RawBody: []byte(body),
		Headers: map[string]string{
			"x-hub-signature-256": "sha256=" + sign("gh_secret", body),
		},
	}

	require.NoError(t, VerifierFor("github").Verify(envelope, "gh_secret"))
}

func TestGitHubVerifier_HeaderLookupIsCaseInsensitive(t *testing.T) {
	body := `{}`
	envelope := models.WebhookEnvelope{
		Source:  "github",
		RawBody: []byte(body),
		Headers: map[string]string{
			"X-Hub-Signature-256": "sha256=" + sign("gh_secret", body),
		},
	}

	require.NoError(t, VerifierFor("github").Verify(envelope, "gh_secret"))
}

func TestGitHubVerifier_MissingPrefix(t *testing.T) {
	body := `{}`
	envelope := models.WebhookEnvelope{
		Source:  "github",
		RawBody: []byte(body),
		Headers: map[string]string{"x-hub-signature-256": sign("gh_secret", body)},
	}

	require.Error(t, VerifierFor("github").Verify(envelope, "gh_secret"))
}

func TestCalendlyVerifier_ValidSignature(t *testing.T) {
	body := `{"event":"invitee.created"}`
	envelope := models.WebhookEnvelope{
		Source:  "calendly",
		RawBody: []byte(body),
		Headers: map[string]string{
			"calendly-webhook-signature": "t=170,v1=" + sign("cal_secret", "170", ".", body),
		},
	}

	require.NoError(t, VerifierFor("calendly").Verify(envelope, "cal_secret"))
}

func TestMailgunVerifier_ValidSignature(t *testing.T) {
	envelope := models.WebhookEnvelope{
		Source: "mailgun",
		Payload: map[string]interface{}{
			"signature": map[string]interface{}{
				"timestamp": "1700000000",
				"token":     "tok123",
				"signature": sign("mg_secret", "1700000000", "tok123"),
			},
		},
	}

	require.NoError(t, VerifierFor("mailgun").Verify(envelope, "mg_secret"))
}

func TestMailgunVerifier_TamperedToken(t *testing.T) {
	envelope := models.WebhookEnvelope{
		Source: "mailgun",
		Payload: map[string]interface{}{
			"signature": map[string]interface{}{
				"timestamp": "1700000000",
				"token":     "tampered",
				"signature": sign("mg_secret", "1700000000", "tok123"),
			},
		},
	}

	require.Error(t, VerifierFor("mailgun").Verify(envelope, "mg_secret"))
}

func TestMailgunVerifier_MissingSignatureObject(t *testing.T) {
	envelope := models.WebhookEnvelope{Source: "mailgun", Payload: map[string]interface{}{}}
	require.Error(t, VerifierFor("mailgun").Verify(envelope, "mg_secret"))
}

func TestGenericVerifier_PlainDigestHeader(t *testing.T) {
	body := `{"hello":"world"}`
	envelope := models.WebhookEnvelope{
		Source:  "linkedin",
		RawBody: []byte(body),
		Headers: map[string]string{"x-webhook-signature": sign("li_secret", body)},
	}

	require.NoError(t, VerifierFor("linkedin").Verify(envelope, "li_secret"))
}

func TestService_SkipsWhenNoSecretConfigured(t *testing.T) {
	svc := NewService(StaticSecrets{}, logger.NopLogger())

	envelope := models.WebhookEnvelope{Source: "stripe", RawBody: []byte(`{}`)}
	require.NoError(t, svc.Validate(context.Background(), &envelope))

	require.NotNil(t, envelope.Metadata.Validation)
	assert.Equal(t, "none", envelope.Metadata.Validation.Verifier)
}

func TestService_RecordsVerifierOnSuccess(t *testing.T) {
	body := `{"action":"opened"}`
	svc := NewService(StaticSecrets{"github": "gh_secret"}, logger.NopLogger())

	envelope := models.WebhookEnvelope{
		Source:  "github",
		RawBody: []byte(body),
		Headers: map[string]string{"x-hub-signature-256": "sha256=" + sign("gh_secret", body)},
	}

	require.NoError(t, svc.Validate(context.Background(), &envelope))
	require.NotNil(t, envelope.Metadata.Validation)
	assert.Equal(t, "github", envelope.Metadata.Validation.Verifier)
	assert.False(t, envelope.Metadata.Validation.VerifiedAt.IsZero())
}

func TestService_FailureIsFatalValidationError(t *testing.T) {
	svc := NewService(StaticSecrets{"github": "gh_secret"}, logger.NopLogger())

	envelope := models.WebhookEnvelope{
		Source:  "github",
		RawBody: []byte(`{}`),
		Headers: map[string]string{"x-hub-signature-256": "sha256=deadbeef"},
	}

	err := svc.Validate(context.Background(), &envelope)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	var appErr *errors.Error
	require.ErrorAs(t, err, &appErr)
	assert.True(t, appErr.IsFatal())
}
