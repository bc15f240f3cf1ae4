package repository

import (
	"context"

	"itsec-data/internal/domain"
)

// UpsertItemResult is the per-item outcome of one bulk write. Err is nil for a
// successful write; Cost is the write cost the backend reports for the item
// (one unit per row for PostgreSQL).
type UpsertItemResult struct {
	ID   string
	Name string
	Cost float64
	Err  error
}

// BulkDeviceWriter is the bulk-write capability the sync pipeline upserts
// through. One call is one batch: a returned error means the whole batch
// failed as a unit; otherwise the slice carries one result per input item in
// order.
type BulkDeviceWriter interface {
	BulkUpsert(ctx context.Context, items []domain.DeviceRecord) ([]UpsertItemResult, error)
}

// DeviceDocsRepository reads stored device documents for the API surface and
// accepts bulk writes from the sync pipeline.
type DeviceDocsRepository interface {
	BulkDeviceWriter

	ListDevices(ctx context.Context, filters DeviceDocFilters, page, size int) ([]*domain.DeviceDoc, int, error)
	GetDevice(ctx context.Context, id string) (*domain.DeviceDoc, error)
	CountDevices(ctx context.Context) (int, error)
}

// DeviceDocFilters filters device listings. Field/Value filters match against
// top-level payload fields (e.g. operatingSystem, complianceState, riskScore).
type DeviceDocFilters struct {
	SearchKeyword string // matches device name, case-insensitive substring
	Field         string
	Value         string
}
