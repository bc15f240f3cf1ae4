package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"itsec-data/internal/domain"
	"itsec-data/internal/msapi"
)

type fakeFetcher struct {
	records []domain.DeviceRecord
	metrics msapi.FetchMetrics
	err     error
	panics  bool
	calls   int
}

func (f *fakeFetcher) FetchAll(ctx context.Context) ([]domain.DeviceRecord, msapi.FetchMetrics, error) {
	f.calls++
	if f.panics {
		panic("fetcher exploded")
	}
	return f.records, f.metrics, f.err
}

// fakeMetadataRepo mimics the first-run contract: Get returns a zero-valued
// record when nothing is stored.
type fakeMetadataRepo struct {
	stored map[string]*domain.SyncMetadata
	getErr error
	putErr error
	puts   []*domain.SyncMetadata
}

func newFakeMetadataRepo() *fakeMetadataRepo {
	return &fakeMetadataRepo{stored: map[string]*domain.SyncMetadata{}}
}

func (f *fakeMetadataRepo) Get(ctx context.Context, key string) (*domain.SyncMetadata, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if m, ok := f.stored[key]; ok {
		return m, nil
	}
	return &domain.SyncMetadata{ID: key}, nil
}

func (f *fakeMetadataRepo) Put(ctx context.Context, key string, m *domain.SyncMetadata) (*domain.SyncMetadata, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	cp := *m
	cp.ID = key
	f.stored[key] = &cp
	f.puts = append(f.puts, &cp)
	return &cp, nil
}

func (f *fakeMetadataRepo) lastPut(t *testing.T) *domain.SyncMetadata {
	t.Helper()
	require.NotEmpty(t, f.puts)
	return f.puts[len(f.puts)-1]
}

func TestSyncDevicesSuccess(t *testing.T) {
	fetcher := &fakeFetcher{
		records: makeRecords(3),
		metrics: msapi.FetchMetrics{APICalls: 2, Pages: 2, RequestTimeMs: 40},
	}
	writer := &fakeBulkWriter{}
	meta := newFakeMetadataRepo()
	svc := NewIntuneDeviceSyncService(fetcher, writer, meta, 100, zap.NewNop())

	res := svc.SyncDevices(context.Background(), nil)

	assert.True(t, res.Success)
	assert.Equal(t, domain.SyncStatusSuccess, res.Status)
	assert.Equal(t, 3, res.DevicesProcessed)
	assert.Equal(t, 0, res.DevicesFailed)
	assert.Equal(t, 3, res.TotalDevicesFetched)
	assert.Equal(t, 2, res.SourceAPI.Calls)
	assert.Equal(t, 3, res.Store.Writes)
	assert.Equal(t, float64(3), res.Store.WriteCost)

	put := meta.lastPut(t)
	assert.Equal(t, domain.IntuneSyncMetadataKey, put.ID)
	assert.Equal(t, domain.SyncStatusSuccess, put.LastSyncStatus)
	assert.Equal(t, 3, put.DevicesProcessed)
	assert.Equal(t, domain.SyncVersion, put.SyncVersion)
	assert.False(t, put.LastSyncEndTime.IsZero())
}

func TestSyncDevicesFetchErrorSkipsWriter(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("API unreachable")}
	writer := &fakeBulkWriter{}
	meta := newFakeMetadataRepo()
	svc := NewDefenderDeviceSyncService(fetcher, writer, meta, 100, zap.NewNop())

	res := svc.SyncDevices(context.Background(), nil)

	assert.False(t, res.Success)
	assert.Equal(t, domain.SyncStatusFailed, res.Status)
	assert.Equal(t, 0, res.DevicesProcessed)
	assert.Equal(t, 0, res.TotalDevicesFetched)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "defender_api_fetch", res.Errors[0].DeviceID)
	assert.Equal(t, "API unreachable", res.Errors[0].Error)

	// The writer is never touched when the fetch fails.
	assert.Empty(t, writer.batches)

	put := meta.lastPut(t)
	assert.Equal(t, domain.DefenderSyncMetadataKey, put.ID)
	assert.Equal(t, domain.SyncStatusFailed, put.LastSyncStatus)
}

func TestSyncDevicesPartialOnBatchFailure(t *testing.T) {
	fetcher := &fakeFetcher{records: makeRecords(4)}
	writer := &fakeBulkWriter{failBatches: map[int]bool{2: true}}
	meta := newFakeMetadataRepo()
	svc := NewIntuneDeviceSyncService(fetcher, writer, meta, 2, zap.NewNop())

	res := svc.SyncDevices(context.Background(), nil)

	assert.True(t, res.Success)
	assert.Equal(t, domain.SyncStatusPartial, res.Status)
	assert.Equal(t, 2, res.DevicesProcessed)
	assert.Equal(t, 2, res.DevicesFailed)
	assert.Equal(t, 4, res.TotalDevicesFetched)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "batch_2", res.Errors[0].DeviceID)
}

func TestSyncDevicesFailedWhenNothingWritten(t *testing.T) {
	fetcher := &fakeFetcher{records: makeRecords(2)}
	writer := &fakeBulkWriter{failItems: map[string]bool{"dev-0": true, "dev-1": true}}
	meta := newFakeMetadataRepo()
	svc := NewIntuneDeviceSyncService(fetcher, writer, meta, 100, zap.NewNop())

	res := svc.SyncDevices(context.Background(), nil)

	assert.False(t, res.Success)
	assert.Equal(t, domain.SyncStatusFailed, res.Status)
	assert.Equal(t, 2, res.DevicesFailed)
}

func TestSyncDevicesEmptyInventoryIsSuccess(t *testing.T) {
	fetcher := &fakeFetcher{records: nil}
	writer := &fakeBulkWriter{}
	meta := newFakeMetadataRepo()
	svc := NewIntuneDeviceSyncService(fetcher, writer, meta, 100, zap.NewNop())

	res := svc.SyncDevices(context.Background(), nil)

	assert.True(t, res.Success)
	assert.Equal(t, domain.SyncStatusSuccess, res.Status)
	assert.Equal(t, 0, res.TotalDevicesFetched)
	assert.Empty(t, writer.batches)

	// Metadata is still written for the empty run.
	put := meta.lastPut(t)
	assert.Equal(t, domain.SyncStatusSuccess, put.LastSyncStatus)
	assert.Equal(t, 0, put.TotalDevicesFetched)
}

func TestSyncDevicesRecoversFromPanic(t *testing.T) {
	fetcher := &fakeFetcher{panics: true}
	meta := newFakeMetadataRepo()
	svc := NewIntuneDeviceSyncService(fetcher, &fakeBulkWriter{}, meta, 100, zap.NewNop())

	res := svc.SyncDevices(context.Background(), nil)

	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Equal(t, domain.SyncStatusFailed, res.Status)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "sync_run", res.Errors[0].DeviceID)
	assert.Contains(t, res.Errors[0].Error, "fetcher exploded")
}

func TestSyncDevicesMetadataWriteFailureSwallowed(t *testing.T) {
	fetcher := &fakeFetcher{records: makeRecords(2)}
	meta := newFakeMetadataRepo()
	meta.putErr = errors.New("store down")
	svc := NewIntuneDeviceSyncService(fetcher, &fakeBulkWriter{}, meta, 100, zap.NewNop())

	res := svc.SyncDevices(context.Background(), nil)

	// The run outcome does not depend on metadata persistence.
	assert.True(t, res.Success)
	assert.Equal(t, domain.SyncStatusSuccess, res.Status)
	assert.Equal(t, 2, res.DevicesProcessed)
}

func TestSyncDevicesCarriesPreviousSnapshot(t *testing.T) {
	prevEnd := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	meta := newFakeMetadataRepo()
	meta.stored[domain.IntuneSyncMetadataKey] = &domain.SyncMetadata{
		ID:                  domain.IntuneSyncMetadataKey,
		LastSyncEndTime:     prevEnd,
		TotalDevicesFetched: 42,
	}

	fetcher := &fakeFetcher{records: makeRecords(1)}
	svc := NewIntuneDeviceSyncService(fetcher, &fakeBulkWriter{}, meta, 100, zap.NewNop())

	svc.SyncDevices(context.Background(), nil)

	put := meta.lastPut(t)
	require.NotNil(t, put.PreviousSyncTime)
	assert.Equal(t, prevEnd, *put.PreviousSyncTime)
	assert.Equal(t, 42, put.PreviousDeviceCount)
}

func TestSyncDevicesMetadataReadFailureTreatedAsFirstRun(t *testing.T) {
	meta := newFakeMetadataRepo()
	meta.getErr = errors.New("read failed")
	fetcher := &fakeFetcher{records: makeRecords(1)}
	svc := NewIntuneDeviceSyncService(fetcher, &fakeBulkWriter{}, meta, 100, zap.NewNop())

	res := svc.SyncDevices(context.Background(), nil)

	assert.True(t, res.Success)
}

func TestSyncDevicesProgressPhases(t *testing.T) {
	fetcher := &fakeFetcher{records: makeRecords(3)}
	svc := NewIntuneDeviceSyncService(fetcher, &fakeBulkWriter{}, newFakeMetadataRepo(), 2, zap.NewNop())

	var phases []string
	svc.SyncDevices(context.Background(), func(p SyncProgress) {
		phases = append(phases, p.Phase)
	})

	assert.Equal(t, []string{PhaseFetch, PhaseUpsert, PhaseUpsert}, phases)
}

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		name                       string
		processed, failed, fetched int
		want                       string
	}{
		{"all written", 5, 0, 5, domain.SyncStatusSuccess},
		{"some failed", 3, 2, 5, domain.SyncStatusPartial},
		{"none written", 0, 5, 5, domain.SyncStatusFailed},
		{"empty inventory", 0, 0, 0, domain.SyncStatusSuccess},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, deriveStatus(tc.processed, tc.failed, tc.fetched))
		})
	}
}
