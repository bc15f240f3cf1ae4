package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"itsec-data/internal/domain"
)

// Allowed payload fields for filtered device listings, per table. Filtering on
// anything else is rejected so handler input can never reach SQL unchecked.
var deviceFilterFields = map[string]map[string]bool{
	"managed_devices": {
		"operatingSystem":   true,
		"complianceState":   true,
		"managementAgent":   true,
		"userPrincipalName": true,
	},
	"defender_devices": {
		"osPlatform":    true,
		"healthStatus":  true,
		"riskScore":     true,
		"exposureLevel": true,
	},
}

// PostgresDeviceDocsRepo stores device documents for one source. The same
// implementation backs both device tables; only the table name differs.
type PostgresDeviceDocsRepo struct {
	db    *sql.DB
	table string
}

func NewPostgresManagedDevicesRepo(db *sql.DB) *PostgresDeviceDocsRepo {
	return &PostgresDeviceDocsRepo{db: db, table: "managed_devices"}
}

func NewPostgresDefenderDevicesRepo(db *sql.DB) *PostgresDeviceDocsRepo {
	return &PostgresDeviceDocsRepo{db: db, table: "defender_devices"}
}

// BulkUpsert writes one batch of device records. Each item is written
// independently so one bad record cannot poison the batch; per-item errors are
// reported in the result slice. A returned error means the batch never
// started (statement preparation failed) and the caller should treat every
// item as failed.
func (r *PostgresDeviceDocsRepo) BulkUpsert(ctx context.Context, items []domain.DeviceRecord) ([]UpsertItemResult, error) {
	if len(items) == 0 {
		return nil, nil
	}

	q := fmt.Sprintf(`
		INSERT INTO %s (device_id, device_name, payload, synced_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (device_id)
		DO UPDATE SET device_name = EXCLUDED.device_name,
		              payload = EXCLUDED.payload,
		              synced_at = NOW()`, r.table)

	stmt, err := r.db.PrepareContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare bulk upsert: %w", err)
	}
	defer stmt.Close()

	results := make([]UpsertItemResult, 0, len(items))
	for _, it := range items {
		res := UpsertItemResult{ID: it.ID, Name: it.Name}
		if _, err := stmt.ExecContext(ctx, it.ID, it.Name, []byte(it.Raw)); err != nil {
			res.Err = err
		} else {
			res.Cost = 1
		}
		results = append(results, res)
	}
	return results, nil
}

func (r *PostgresDeviceDocsRepo) ListDevices(ctx context.Context, filters DeviceDocFilters, page, size int) ([]*domain.DeviceDoc, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	argN := 1

	if filters.SearchKeyword != "" {
		where = append(where, fmt.Sprintf("device_name ILIKE $%d", argN))
		args = append(args, "%"+filters.SearchKeyword+"%")
		argN++
	}
	if filters.Field != "" && filters.Value != "" {
		if !deviceFilterFields[r.table][filters.Field] {
			return nil, 0, fmt.Errorf("unsupported filter field %q", filters.Field)
		}
		where = append(where, fmt.Sprintf("payload->>'%s' = $%d", filters.Field, argN))
		args = append(args, filters.Value)
		argN++
	}

	queryCount := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", r.table, strings.Join(where, " AND "))
	var total int
	if err := r.db.QueryRowContext(ctx, queryCount, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	offset := (page - 1) * size
	args = append(args, size, offset)

	q := fmt.Sprintf(`
		SELECT device_id, device_name, payload, synced_at
		FROM %s
		WHERE %s
		ORDER BY device_name
		LIMIT $%d OFFSET $%d`, r.table, strings.Join(where, " AND "), argN, argN+1)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []*domain.DeviceDoc{}
	for rows.Next() {
		var d domain.DeviceDoc
		var payload []byte
		if err := rows.Scan(&d.ID, &d.Name, &payload, &d.SyncedAt); err != nil {
			return nil, 0, err
		}
		d.Payload = payload
		out = append(out, &d)
	}
	return out, total, rows.Err()
}

func (r *PostgresDeviceDocsRepo) GetDevice(ctx context.Context, id string) (*domain.DeviceDoc, error) {
	q := fmt.Sprintf(`SELECT device_id, device_name, payload, synced_at FROM %s WHERE device_id = $1`, r.table)

	var d domain.DeviceDoc
	var payload []byte
	err := r.db.QueryRowContext(ctx, q, id).Scan(&d.ID, &d.Name, &payload, &d.SyncedAt)
	if err != nil {
		return nil, err
	}
	d.Payload = payload
	return &d, nil
}

func (r *PostgresDeviceDocsRepo) CountDevices(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", r.table)).Scan(&n)
	return n, err
}
