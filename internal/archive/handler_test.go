package archive

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hookrelay/internal/constants"
)

type memoryRepository struct {
	records []Record
	err     error
}

func (m *memoryRepository) Save(_ context.Context, record Record) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, record)
	return nil
}

func (m *memoryRepository) FindByWebhookID(_ context.Context, webhookID string) (*Record, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.records {
		if m.records[i].WebhookID == webhookID {
			return &m.records[i], nil
		}
	}
	return nil, nil
}

func (m *memoryRepository) RecentBySource(_ context.Context, source string, limit int64) ([]Record, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []Record
	for _, r := range m.records {
		if r.Source == source && int64(len(out)) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func newTestMux(repo Repository) *http.ServeMux {
	mux := http.NewServeMux()
	NewHandler(repo).Register(mux)
	return mux
}

func TestHandler_LookupReturnsArchivedRecord(t *testing.T) {
	repo := &memoryRepository{records: []Record{{
		WebhookID:     "wh_1",
		Source:        "stripe",
		Status:        constants.ArchiveStatusFailed,
		FailureReason: "2 of 2 operations failed",
		ReceivedAt:    time.Now().UTC(),
		ProcessedAt:   time.Now().UTC(),
	}}}

	rec := httptest.NewRecorder()
	newTestMux(repo).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/archive/wh_1", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var got Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "wh_1", got.WebhookID)
	assert.Equal(t, constants.ArchiveStatusFailed, got.Status)
	assert.Equal(t, "2 of 2 operations failed", got.FailureReason)
}

func TestHandler_LookupUnknownWebhookReturns404(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestMux(&memoryRepository{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/archive/wh_missing", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "NOT_FOUND", body["error_code"])
}

func TestHandler_RecentFiltersBySource(t *testing.T) {
	repo := &memoryRepository{records: []Record{
		{WebhookID: "wh_1", Source: "stripe", Status: constants.ArchiveStatusDelivered},
		{WebhookID: "wh_2", Source: "github", Status: constants.ArchiveStatusDelivered},
		{WebhookID: "wh_3", Source: "stripe", Status: constants.ArchiveStatusSuppressed},
	}}

	rec := httptest.NewRecorder()
	newTestMux(repo).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/archive?source=stripe", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Source  string   `json:"source"`
		Records []Record `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "stripe", body.Source)
	require.Len(t, body.Records, 2)
	assert.Equal(t, "wh_1", body.Records[0].WebhookID)
	assert.Equal(t, "wh_3", body.Records[1].WebhookID)
}

func TestHandler_RecentRequiresSource(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestMux(&memoryRepository{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/archive", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_RecentRejectsBadLimit(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestMux(&memoryRepository{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/archive?source=stripe&limit=zero", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_RepositoryErrorReturns500(t *testing.T) {
	repo := &memoryRepository{err: errors.New("connection reset")}

	rec := httptest.NewRecorder()
	newTestMux(repo).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/archive/wh_1", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
