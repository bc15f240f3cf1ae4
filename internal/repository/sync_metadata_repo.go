package repository

import (
	"context"

	"itsec-data/internal/domain"
)

// SyncMetadataRepository holds the singleton sync-state record per source key.
type SyncMetadataRepository interface {
	// Get returns the stored metadata for key, or a zero-valued record (not an
	// error) when none exists yet, so a first run needs no special casing.
	Get(ctx context.Context, key string) (*domain.SyncMetadata, error)

	// Put overwrites the singleton. The record's ID is normalized to key
	// regardless of what the caller set.
	Put(ctx context.Context, key string, m *domain.SyncMetadata) (*domain.SyncMetadata, error)
}
