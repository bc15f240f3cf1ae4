package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"itsec-data/internal/domain"
)

type PostgresRiskDetectionsRepo struct {
	db *sql.DB
}

func NewPostgresRiskDetectionsRepo(db *sql.DB) *PostgresRiskDetectionsRepo {
	return &PostgresRiskDetectionsRepo{db: db}
}

const riskDetectionColumns = `
	detection_id, risk_event_type, risk_level, risk_state,
	user_principal_name, ip_address, location, detected_date_time,
	CASE WHEN payload IS NULL THEN NULL ELSE payload::text END`

func scanRiskDetection(scan func(dest ...any) error) (*domain.RiskDetection, error) {
	var d domain.RiskDetection
	err := scan(
		&d.DetectionID,
		&d.RiskEventType,
		&d.RiskLevel,
		&d.RiskState,
		&d.UserPrincipalName,
		&d.IPAddress,
		&d.Location,
		&d.DetectedDateTime,
		&d.Payload,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *PostgresRiskDetectionsRepo) ListRiskDetections(ctx context.Context, filters RiskDetectionFilters, page, size int) ([]*domain.RiskDetection, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	argN := 1

	if filters.RiskLevel != "" {
		where = append(where, fmt.Sprintf("risk_level = $%d", argN))
		args = append(args, filters.RiskLevel)
		argN++
	}
	if filters.RiskState != "" {
		where = append(where, fmt.Sprintf("risk_state = $%d", argN))
		args = append(args, filters.RiskState)
		argN++
	}
	if filters.SearchKeyword != "" {
		where = append(where, fmt.Sprintf("user_principal_name ILIKE $%d", argN))
		args = append(args, "%"+filters.SearchKeyword+"%")
		argN++
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM risk_detections WHERE "+strings.Join(where, " AND "),
		args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	args = append(args, size, (page-1)*size)

	q := "SELECT " + riskDetectionColumns + `
		FROM risk_detections
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY detected_date_time DESC
		LIMIT $` + fmt.Sprintf("%d", argN) + ` OFFSET $` + fmt.Sprintf("%d", argN+1)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []*domain.RiskDetection{}
	for rows.Next() {
		d, err := scanRiskDetection(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	return out, total, rows.Err()
}

func (r *PostgresRiskDetectionsRepo) GetRiskDetection(ctx context.Context, detectionID string) (*domain.RiskDetection, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+riskDetectionColumns+" FROM risk_detections WHERE detection_id = $1", detectionID)
	d, err := scanRiskDetection(row.Scan)
	if err != nil {
		return nil, err
	}
	return d, nil
}
