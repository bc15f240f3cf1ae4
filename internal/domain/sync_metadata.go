package domain

import "time"

// Sync run status values.
const (
	SyncStatusSuccess = "success"
	SyncStatusPartial = "partial"
	SyncStatusFailed  = "failed"
)

// SyncVersion tags the pipeline logic that produced a metadata record.
const SyncVersion = "2.1.0"

// Fixed singleton keys, one per device source.
const (
	IntuneSyncMetadataKey   = "intune_device_sync"
	DefenderSyncMetadataKey = "defender_device_sync"
)

// MaxSyncErrors bounds the error list of a sync run. The first N errors
// encountered are kept; later ones are dropped while the failure counters
// keep incrementing.
const MaxSyncErrors = 100

// SyncError is one failed item recorded during a sync run. DeviceID carries a
// synthetic identifier (batch_N, intune_api_fetch, defender_api_fetch) when
// the failure is not attributable to a single device.
type SyncError struct {
	DeviceID   string    `json:"device_id"`
	DeviceName string    `json:"device_name,omitempty"`
	Error      string    `json:"error"`
	Timestamp  time.Time `json:"timestamp"`
}

// SourceAPIMetrics are per-run upstream API counters, reset each run.
type SourceAPIMetrics struct {
	Calls         int   `json:"calls"`
	Pages         int   `json:"pages"`
	RequestTimeMs int64 `json:"request_time_ms"`
}

// StoreMetrics are per-run database write counters, reset each run. WriteCost
// generalizes the per-request cost the storage backend reports for each write
// (one unit per row for PostgreSQL).
type StoreMetrics struct {
	Writes    int     `json:"writes"`
	WriteCost float64 `json:"write_cost"`
}

// SyncMetadata is the authoritative last-known-sync-state for one device
// source, held as a singleton record keyed by a fixed id. It is read once at
// the start of a run (the snapshot becomes Previous*) and overwritten exactly
// once at the end. There is one writer per run; overlapping runs are not
// mutually excluded and the last writer wins.
type SyncMetadata struct {
	ID                  string      `json:"id"`
	LastSyncStartTime   time.Time   `json:"last_sync_start_time"`
	LastSyncEndTime     time.Time   `json:"last_sync_end_time"`
	LastSyncStatus      string      `json:"last_sync_status"`
	DevicesProcessed    int         `json:"devices_processed"`
	DevicesFailed       int         `json:"devices_failed"`
	TotalDevicesFetched int         `json:"total_devices_fetched"`
	Errors              []SyncError `json:"errors,omitempty"`

	SourceAPI SourceAPIMetrics `json:"source_api"`
	Store     StoreMetrics     `json:"store"`

	// Snapshot of the prior run, for trend comparison.
	PreviousSyncTime    *time.Time `json:"previous_sync_time,omitempty"`
	PreviousDeviceCount int        `json:"previous_device_count"`

	SyncVersion string `json:"sync_version"`
}
