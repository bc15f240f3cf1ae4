package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"itsec-data/internal/domain"
	"itsec-data/internal/msapi"
	"itsec-data/internal/repository"
	"itsec-data/internal/service"
)

type fixedFetcher struct {
	records []domain.DeviceRecord
	err     error
}

func (f *fixedFetcher) FetchAll(ctx context.Context) ([]domain.DeviceRecord, msapi.FetchMetrics, error) {
	return f.records, msapi.FetchMetrics{APICalls: 1, Pages: 1}, f.err
}

type okWriter struct{}

func (okWriter) BulkUpsert(ctx context.Context, items []domain.DeviceRecord) ([]repository.UpsertItemResult, error) {
	out := make([]repository.UpsertItemResult, 0, len(items))
	for _, it := range items {
		out = append(out, repository.UpsertItemResult{ID: it.ID, Name: it.Name, Cost: 1})
	}
	return out, nil
}

type memMetadataRepo struct {
	stored map[string]*domain.SyncMetadata
}

func (m *memMetadataRepo) Get(ctx context.Context, key string) (*domain.SyncMetadata, error) {
	if v, ok := m.stored[key]; ok {
		return v, nil
	}
	return &domain.SyncMetadata{ID: key}, nil
}

func (m *memMetadataRepo) Put(ctx context.Context, key string, meta *domain.SyncMetadata) (*domain.SyncMetadata, error) {
	if m.stored == nil {
		m.stored = map[string]*domain.SyncMetadata{}
	}
	m.stored[key] = meta
	return meta, nil
}

func newTestSyncHandler(fetcher service.DeviceFetcher) (*SyncHandler, *memMetadataRepo) {
	meta := &memMetadataRepo{}
	svc := service.NewIntuneDeviceSyncService(fetcher, okWriter{}, meta, 100, zap.NewNop())
	return NewSyncHandler([]*service.DeviceSyncService{svc}, zap.NewNop()), meta
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Code   int            `json:"code"`
		Type   string         `json:"type"`
		Result map[string]any `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Equal(t, ResultSuccess, envelope.Code)
	return envelope.Result
}

func TestTriggerSyncSuccess(t *testing.T) {
	fetcher := &fixedFetcher{records: []domain.DeviceRecord{
		{ID: "d1", Name: "alpha", Raw: []byte(`{}`)},
		{ID: "d2", Name: "beta", Raw: []byte(`{}`)},
	}}
	h, meta := newTestSyncHandler(fetcher)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/itsec/api/v1/sync/intune/devices", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	result := decodeResult(t, rec)

	assert.Equal(t, true, result["success"])
	assert.Equal(t, domain.SyncStatusSuccess, result["status"])

	summary := result["summary"].(map[string]any)
	assert.Equal(t, float64(2), summary["devicesProcessed"])
	assert.Equal(t, float64(0), summary["devicesFailed"])
	assert.Equal(t, float64(2), summary["totalDevicesFetched"])

	api := result["sourceApiMetrics"].(map[string]any)
	assert.Equal(t, float64(1), api["apiCalls"])

	storeM := result["storeMetrics"].(map[string]any)
	assert.Equal(t, float64(2), storeM["writes"])

	errs := result["errors"].(map[string]any)
	assert.Equal(t, float64(0), errs["count"])
	assert.Equal(t, false, errs["hasMore"])

	assert.NotEmpty(t, result["timestamp"])

	// The run also left its metadata behind.
	assert.Contains(t, meta.stored, domain.IntuneSyncMetadataKey)
}

func TestTriggerSyncFailedRunIsStill200(t *testing.T) {
	h, _ := newTestSyncHandler(&fixedFetcher{err: errors.New("upstream down")})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/itsec/api/v1/sync/intune/devices", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	result := decodeResult(t, rec)
	assert.Equal(t, false, result["success"])
	assert.Equal(t, domain.SyncStatusFailed, result["status"])

	errs := result["errors"].(map[string]any)
	assert.Equal(t, float64(1), errs["count"])
	sample := errs["sample"].([]any)
	first := sample[0].(map[string]any)
	assert.Equal(t, "intune_api_fetch", first["device_id"])
}

func TestGetSyncStatus(t *testing.T) {
	h, meta := newTestSyncHandler(&fixedFetcher{})
	meta.stored = map[string]*domain.SyncMetadata{
		domain.IntuneSyncMetadataKey: {
			ID:               domain.IntuneSyncMetadataKey,
			LastSyncStatus:   domain.SyncStatusSuccess,
			DevicesProcessed: 7,
		},
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/itsec/api/v1/sync/intune/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	result := decodeResult(t, rec)
	assert.Equal(t, domain.SyncStatusSuccess, result["last_sync_status"])
	assert.Equal(t, float64(7), result["devices_processed"])
}

func TestSyncHandlerUnknownSource(t *testing.T) {
	h, _ := newTestSyncHandler(&fixedFetcher{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/itsec/api/v1/sync/jamf/devices", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSyncHandlerMethodNotAllowed(t *testing.T) {
	h, _ := newTestSyncHandler(&fixedFetcher{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/itsec/api/v1/sync/intune/devices", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSerializeSyncResultBoundsErrorSample(t *testing.T) {
	res := &service.SyncResult{Status: domain.SyncStatusPartial}
	for i := 0; i < 25; i++ {
		res.Errors = append(res.Errors, domain.SyncError{DeviceID: fmt.Sprintf("dev-%d", i)})
	}

	out := serializeSyncResult(res)
	errs := out["errors"].(map[string]any)

	assert.Equal(t, 25, errs["count"])
	assert.Equal(t, true, errs["hasMore"])
	assert.Len(t, errs["sample"].([]domain.SyncError), errorSampleSize)
}
