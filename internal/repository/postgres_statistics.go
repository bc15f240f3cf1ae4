package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"itsec-data/internal/domain"
)

// PostgresStatisticsRepo stores statistics documents as JSONB rows keyed by
// the derived document id, with the period start date as a query column.
type PostgresStatisticsRepo struct {
	db *sql.DB
}

func NewPostgresStatisticsRepo(db *sql.DB) *PostgresStatisticsRepo {
	return &PostgresStatisticsRepo{db: db}
}

func (r *PostgresStatisticsRepo) UpsertStatistics(ctx context.Context, doc *domain.AlertStatisticsDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode statistics document %s: %w", doc.ID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO alert_statistics (id, stat_type, period_start_date, data, generated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id)
		DO UPDATE SET stat_type = EXCLUDED.stat_type,
		              period_start_date = EXCLUDED.period_start_date,
		              data = EXCLUDED.data,
		              generated_at = NOW()`,
		doc.ID, doc.Type, doc.PeriodStartDate, data)
	if err != nil {
		return fmt.Errorf("failed to write statistics document %s: %w", doc.ID, err)
	}
	return nil
}

func (r *PostgresStatisticsRepo) ListStatistics(ctx context.Context, filters StatisticsFilters, page, size int) ([]*domain.AlertStatisticsDocument, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	argN := 1

	if filters.Type != "" {
		where = append(where, fmt.Sprintf("stat_type = $%d", argN))
		args = append(args, filters.Type)
		argN++
	}
	if filters.StartDate != "" {
		where = append(where, fmt.Sprintf("period_start_date >= $%d", argN))
		args = append(args, filters.StartDate)
		argN++
	}
	if filters.EndDate != "" {
		where = append(where, fmt.Sprintf("period_start_date <= $%d", argN))
		args = append(args, filters.EndDate)
		argN++
	}

	queryCount := "SELECT COUNT(*) FROM alert_statistics WHERE " + strings.Join(where, " AND ")
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

	q := `
		SELECT data
		FROM alert_statistics
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY period_start_date DESC, stat_type
		LIMIT $` + fmt.Sprintf("%d", argN) + ` OFFSET $` + fmt.Sprintf("%d", argN+1)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []*domain.AlertStatisticsDocument{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, 0, err
		}
		var doc domain.AlertStatisticsDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, 0, fmt.Errorf("failed to decode statistics document: %w", err)
		}
		out = append(out, &doc)
	}
	return out, total, rows.Err()
}
