package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"itsec-data/internal/domain"
)

// PostgresSyncMetadataRepo stores sync metadata as one JSONB row per source key.
type PostgresSyncMetadataRepo struct {
	db *sql.DB
}

func NewPostgresSyncMetadataRepo(db *sql.DB) *PostgresSyncMetadataRepo {
	return &PostgresSyncMetadataRepo{db: db}
}

func (r *PostgresSyncMetadataRepo) Get(ctx context.Context, key string) (*domain.SyncMetadata, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM sync_metadata WHERE id = $1`, key).Scan(&data)
	if err == sql.ErrNoRows {
		return &domain.SyncMetadata{ID: key}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sync metadata %s: %w", key, err)
	}

	var m domain.SyncMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode sync metadata %s: %w", key, err)
	}
	m.ID = key
	return &m, nil
}

func (r *PostgresSyncMetadataRepo) Put(ctx context.Context, key string, m *domain.SyncMetadata) (*domain.SyncMetadata, error) {
	m.ID = key

	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode sync metadata %s: %w", key, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO sync_metadata (id, data, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id)
		DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`, key, data)
	if err != nil {
		return nil, fmt.Errorf("failed to write sync metadata %s: %w", key, err)
	}
	return m, nil
}
