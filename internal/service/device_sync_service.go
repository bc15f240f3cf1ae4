package service

import (
	"context"
	"fmt"
	"time"

	"itsec-data/internal/domain"
	"itsec-data/internal/msapi"
	"itsec-data/internal/repository"

	"go.uber.org/zap"
)

// Progress phases.
const (
	PhaseFetch  = "fetch"
	PhaseUpsert = "upsert"
)

// SyncProgress is a checkpoint notification during a sync run. Purely
// observational: callbacks are invoked synchronously and have no effect on
// control flow.
type SyncProgress struct {
	Phase            string
	DevicesProcessed int
	TotalDevices     int
	BatchNumber      int
	TotalBatches     int
}

// ProgressFunc receives progress checkpoints. May be nil.
type ProgressFunc func(SyncProgress)

// DeviceFetcher pulls a complete device inventory from an upstream source.
// A returned error means the whole inventory is unavailable; there is no
// partial-inventory fallback.
type DeviceFetcher interface {
	FetchAll(ctx context.Context) ([]domain.DeviceRecord, msapi.FetchMetrics, error)
}

// FetchFunc adapts a fetch method to the DeviceFetcher interface.
type FetchFunc func(ctx context.Context) ([]domain.DeviceRecord, msapi.FetchMetrics, error)

func (f FetchFunc) FetchAll(ctx context.Context) ([]domain.DeviceRecord, msapi.FetchMetrics, error) {
	return f(ctx)
}

// SyncResult is the outcome of one sync run. Every failure mode produces a
// well-formed result; SyncDevices never returns an error or panics.
type SyncResult struct {
	Success             bool                    `json:"success"`
	Status              string                  `json:"status"`
	DevicesProcessed    int                     `json:"devices_processed"`
	DevicesFailed       int                     `json:"devices_failed"`
	TotalDevicesFetched int                     `json:"total_devices_fetched"`
	ExecutionTimeMs     int64                   `json:"execution_time_ms"`
	Errors              []domain.SyncError      `json:"errors,omitempty"`
	SourceAPI           domain.SourceAPIMetrics `json:"source_api"`
	Store               domain.StoreMetrics     `json:"store"`
}

// DeviceSyncService drives one source's sync pipeline:
// fetch -> batch upsert -> metadata finalize. The same orchestrator serves
// both device sources; only the fetcher, writer and metadata key differ.
type DeviceSyncService struct {
	source       string
	metadataKey  string
	fetchErrorID string
	fetcher      DeviceFetcher
	upserter     *BatchUpserter
	metadata     repository.SyncMetadataRepository
	logger       *zap.Logger
}

// NewIntuneDeviceSyncService builds the pipeline for Intune managed devices.
func NewIntuneDeviceSyncService(fetcher DeviceFetcher, writer repository.BulkDeviceWriter, metadata repository.SyncMetadataRepository, batchSize int, logger *zap.Logger) *DeviceSyncService {
	return newDeviceSyncService("intune", domain.IntuneSyncMetadataKey, "intune_api_fetch", fetcher, writer, metadata, batchSize, logger)
}

// NewDefenderDeviceSyncService builds the pipeline for Defender machines.
func NewDefenderDeviceSyncService(fetcher DeviceFetcher, writer repository.BulkDeviceWriter, metadata repository.SyncMetadataRepository, batchSize int, logger *zap.Logger) *DeviceSyncService {
	return newDeviceSyncService("defender", domain.DefenderSyncMetadataKey, "defender_api_fetch", fetcher, writer, metadata, batchSize, logger)
}

func newDeviceSyncService(source, metadataKey, fetchErrorID string, fetcher DeviceFetcher, writer repository.BulkDeviceWriter, metadata repository.SyncMetadataRepository, batchSize int, logger *zap.Logger) *DeviceSyncService {
	return &DeviceSyncService{
		source:       source,
		metadataKey:  metadataKey,
		fetchErrorID: fetchErrorID,
		fetcher:      fetcher,
		upserter:     NewBatchUpserter(writer, batchSize, logger),
		metadata:     metadata,
		logger:       logger,
	}
}

// Source returns the source tag ("intune" or "defender").
func (s *DeviceSyncService) Source() string { return s.source }

// Status reads the stored sync metadata for this source.
func (s *DeviceSyncService) Status(ctx context.Context) (*domain.SyncMetadata, error) {
	return s.metadata.Get(ctx, s.metadataKey)
}

// SyncDevices runs one sync pass. The run is a single linear state machine:
// START -> FETCH -> (FETCH_FAILED | UPSERT -> FINALIZE). progress may be nil.
func (s *DeviceSyncService) SyncDevices(ctx context.Context, progress ProgressFunc) (result *SyncResult) {
	start := time.Now().UTC()

	meta := &domain.SyncMetadata{
		ID:                s.metadataKey,
		LastSyncStartTime: start,
		SyncVersion:       domain.SyncVersion,
	}

	// The stored record becomes the "previous" snapshot for trend comparison.
	// A read failure here is treated like a first run.
	if prev, err := s.metadata.Get(ctx, s.metadataKey); err != nil {
		s.logger.Warn("Failed to read previous sync metadata",
			zap.String("source", s.source), zap.Error(err))
	} else if !prev.LastSyncEndTime.IsZero() {
		t := prev.LastSyncEndTime
		meta.PreviousSyncTime = &t
		meta.PreviousDeviceCount = prev.TotalDevicesFetched
	}

	// The trigger (timer or HTTP) always gets a well-formed result back.
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Device sync run failed unexpectedly",
				zap.String("source", s.source), zap.Any("panic", r))
			result = s.finalizeFailure(ctx, meta, start, "sync_run", fmt.Sprintf("unexpected error: %v", r))
		}
	}()

	if progress != nil {
		progress(SyncProgress{Phase: PhaseFetch})
	}

	records, fm, err := s.fetcher.FetchAll(ctx)
	meta.SourceAPI = domain.SourceAPIMetrics{
		Calls:         fm.APICalls,
		Pages:         fm.Pages,
		RequestTimeMs: fm.RequestTimeMs,
	}
	if err != nil {
		s.logger.Error("Device inventory fetch failed",
			zap.String("source", s.source), zap.Error(err))
		return s.finalizeFailure(ctx, meta, start, s.fetchErrorID, err.Error())
	}

	meta.TotalDevicesFetched = len(records)

	var up BatchUpsertResult
	if len(records) > 0 {
		up = s.upserter.UpsertAll(ctx, records, progress)
	}

	status := deriveStatus(up.SuccessCount, up.FailureCount, len(records))
	end := time.Now().UTC()

	meta.LastSyncEndTime = end
	meta.LastSyncStatus = status
	meta.DevicesProcessed = up.SuccessCount
	meta.DevicesFailed = up.FailureCount
	meta.Errors = up.Errors
	meta.Store = domain.StoreMetrics{Writes: up.Writes, WriteCost: up.TotalCost}

	s.putMetadata(ctx, meta)

	result = &SyncResult{
		Success:             status != domain.SyncStatusFailed,
		Status:              status,
		DevicesProcessed:    up.SuccessCount,
		DevicesFailed:       up.FailureCount,
		TotalDevicesFetched: len(records),
		ExecutionTimeMs:     end.Sub(start).Milliseconds(),
		Errors:              up.Errors,
		SourceAPI:           meta.SourceAPI,
		Store:               meta.Store,
	}

	s.logger.Info("Device sync finished",
		zap.String("source", s.source),
		zap.String("status", status),
		zap.Int("devices_processed", up.SuccessCount),
		zap.Int("devices_failed", up.FailureCount),
		zap.Int("total_devices_fetched", len(records)),
		zap.Int64("execution_time_ms", result.ExecutionTimeMs),
	)
	return result
}

// finalizeFailure writes failed metadata with a single synthetic error entry
// and builds the matching result. Counters stay zero: the upsert phase never
// ran.
func (s *DeviceSyncService) finalizeFailure(ctx context.Context, meta *domain.SyncMetadata, start time.Time, errorID, message string) *SyncResult {
	end := time.Now().UTC()

	meta.LastSyncEndTime = end
	meta.LastSyncStatus = domain.SyncStatusFailed
	meta.DevicesProcessed = 0
	meta.DevicesFailed = 0
	meta.TotalDevicesFetched = 0
	meta.Store = domain.StoreMetrics{}
	meta.Errors = []domain.SyncError{{
		DeviceID:  errorID,
		Error:     message,
		Timestamp: end,
	}}

	s.putMetadata(ctx, meta)

	return &SyncResult{
		Success:         false,
		Status:          domain.SyncStatusFailed,
		ExecutionTimeMs: end.Sub(start).Milliseconds(),
		Errors:          meta.Errors,
		SourceAPI:       meta.SourceAPI,
	}
}

// putMetadata persists the run record. The sync outcome is independent of
// metadata persistence: a write failure is logged and swallowed.
func (s *DeviceSyncService) putMetadata(ctx context.Context, meta *domain.SyncMetadata) {
	if _, err := s.metadata.Put(ctx, s.metadataKey, meta); err != nil {
		s.logger.Error("Failed to persist sync metadata",
			zap.String("source", s.source), zap.Error(err))
	}
}

// deriveStatus is a pure function of the run counters: failed when devices
// were fetched but none written, partial when some writes failed, success
// otherwise (including the empty-inventory case).
func deriveStatus(processed, failed, fetched int) string {
	switch {
	case fetched > 0 && processed == 0:
		return domain.SyncStatusFailed
	case failed > 0:
		return domain.SyncStatusPartial
	default:
		return domain.SyncStatusSuccess
	}
}
