package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"itsec-data/internal/domain"

	"github.com/lib/pq"
)

type PostgresAlertsRepo struct {
	db *sql.DB
}

func NewPostgresAlertsRepo(db *sql.DB) *PostgresAlertsRepo {
	return &PostgresAlertsRepo{db: db}
}

const alertColumns = `
	alert_id, title, severity, status, category, detection_source,
	threat_family_name, user_principal_name, source_ip, machine_id,
	creation_time, resolved_time,
	CASE WHEN payload IS NULL THEN NULL ELSE payload::text END`

func scanAlert(scan func(dest ...any) error) (*domain.Alert, error) {
	var a domain.Alert
	err := scan(
		&a.AlertID,
		&a.Title,
		&a.Severity,
		&a.Status,
		&a.Category,
		&a.DetectionSource,
		&a.ThreatFamilyName,
		&a.UserPrincipalName,
		&a.SourceIP,
		&a.MachineID,
		&a.CreationTime,
		&a.ResolvedTime,
		&a.Payload,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *PostgresAlertsRepo) ListAlerts(ctx context.Context, filters AlertFilters, page, size int) ([]*domain.Alert, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	argN := 1

	if len(filters.Severity) > 0 {
		where = append(where, fmt.Sprintf("severity = ANY($%d)", argN))
		args = append(args, pq.Array(filters.Severity))
		argN++
	}
	if filters.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", argN))
		args = append(args, filters.Status)
		argN++
	}
	if filters.Category != "" {
		where = append(where, fmt.Sprintf("category = $%d", argN))
		args = append(args, filters.Category)
		argN++
	}
	if filters.DetectionSource != "" {
		where = append(where, fmt.Sprintf("detection_source = $%d", argN))
		args = append(args, filters.DetectionSource)
		argN++
	}
	if filters.SearchKeyword != "" {
		where = append(where, fmt.Sprintf("title ILIKE $%d", argN))
		args = append(args, "%"+filters.SearchKeyword+"%")
		argN++
	}
	if filters.From != nil {
		where = append(where, fmt.Sprintf("creation_time >= $%d", argN))
		args = append(args, *filters.From)
		argN++
	}
	if filters.To != nil {
		where = append(where, fmt.Sprintf("creation_time < $%d", argN))
		args = append(args, *filters.To)
		argN++
	}

	queryCount := "SELECT COUNT(*) FROM alerts WHERE " + strings.Join(where, " AND ")
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
	args = append(args, size, (page-1)*size)

	q := "SELECT " + alertColumns + `
		FROM alerts
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY creation_time DESC
		LIMIT $` + fmt.Sprintf("%d", argN) + ` OFFSET $` + fmt.Sprintf("%d", argN+1)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []*domain.Alert{}
	for rows.Next() {
		a, err := scanAlert(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

func (r *PostgresAlertsRepo) GetAlert(ctx context.Context, alertID string) (*domain.Alert, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+alertColumns+" FROM alerts WHERE alert_id = $1", alertID)
	a, err := scanAlert(row.Scan)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *PostgresAlertsRepo) UpdateAlertStatus(ctx context.Context, alertID, status string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE alerts
		SET status = $2,
		    resolved_time = CASE WHEN $2 = 'resolved' THEN NOW() ELSE resolved_time END
		WHERE alert_id = $1`, alertID, status)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("alert %s not found: %w", alertID, sql.ErrNoRows)
	}
	return nil
}

func (r *PostgresAlertsRepo) SearchAlerts(ctx context.Context, query string, page, size int) ([]*domain.Alert, int, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}

	// Full-text match over the human-readable columns; plainto_tsquery keeps
	// raw user input out of the tsquery syntax.
	match := `to_tsvector('english',
		coalesce(title, '') || ' ' || coalesce(category, '') || ' ' || coalesce(threat_family_name, ''))
		@@ plainto_tsquery('english', $1)`

	var total int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM alerts WHERE "+match, query).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := "SELECT " + alertColumns + `
		FROM alerts
		WHERE ` + match + `
		ORDER BY creation_time DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, q, query, size, (page-1)*size)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []*domain.Alert{}
	for rows.Next() {
		a, err := scanAlert(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

func (r *PostgresAlertsRepo) CountByDetectionSource(ctx context.Context, start, end time.Time) ([]domain.NamedCount, int, error) {
	return r.groupedCounts(ctx, "detection_source", start, end, 0)
}

func (r *PostgresAlertsRepo) TopUsers(ctx context.Context, start, end time.Time, limit int) ([]domain.NamedCount, int, error) {
	return r.groupedCounts(ctx, "user_principal_name", start, end, limit)
}

func (r *PostgresAlertsRepo) TopSourceIPs(ctx context.Context, start, end time.Time, limit int) ([]domain.NamedCount, int, error) {
	return r.groupedCounts(ctx, "source_ip", start, end, limit)
}

func (r *PostgresAlertsRepo) CountByCategory(ctx context.Context, start, end time.Time) ([]domain.NamedCount, int, error) {
	return r.groupedCounts(ctx, "category", start, end, 0)
}

// groupedCounts buckets alerts in [start, end) by one column, skipping NULL
// and empty values, and also returns the total alert count in the window.
func (r *PostgresAlertsRepo) groupedCounts(ctx context.Context, column string, start, end time.Time, limit int) ([]domain.NamedCount, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM alerts WHERE creation_time >= $1 AND creation_time < $2`,
		start, end).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf(`
		SELECT %s, COUNT(*)
		FROM alerts
		WHERE creation_time >= $1 AND creation_time < $2
		  AND %s IS NOT NULL AND %s <> ''
		GROUP BY %s
		ORDER BY COUNT(*) DESC, %s`, column, column, column, column, column)
	args := []any{start, end}
	if limit > 0 {
		q += " LIMIT $3"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []domain.NamedCount{}
	for rows.Next() {
		var c domain.NamedCount
		if err := rows.Scan(&c.Name, &c.Count); err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *PostgresAlertsRepo) CountDistinctUsers(ctx context.Context, start, end time.Time) (int, error) {
	return r.distinctCount(ctx, "user_principal_name", start, end)
}

func (r *PostgresAlertsRepo) CountDistinctSourceIPs(ctx context.Context, start, end time.Time) (int, error) {
	return r.distinctCount(ctx, "source_ip", start, end)
}

func (r *PostgresAlertsRepo) distinctCount(ctx context.Context, column string, start, end time.Time) (int, error) {
	q := fmt.Sprintf(`
		SELECT COUNT(DISTINCT %s)
		FROM alerts
		WHERE creation_time >= $1 AND creation_time < $2
		  AND %s IS NOT NULL AND %s <> ''`, column, column, column)
	var n int
	err := r.db.QueryRowContext(ctx, q, start, end).Scan(&n)
	return n, err
}

func (r *PostgresAlertsRepo) LatestAlertTime(ctx context.Context, start, end time.Time) (*time.Time, error) {
	var t sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT MAX(creation_time) FROM alerts WHERE creation_time >= $1 AND creation_time < $2`,
		start, end).Scan(&t)
	if err != nil {
		return nil, err
	}
	if !t.Valid {
		return nil, nil
	}
	return &t.Time, nil
}
