package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"itsec-data/internal/domain"
)

type PostgresVulnerabilitiesRepo struct {
	db *sql.DB
}

func NewPostgresVulnerabilitiesRepo(db *sql.DB) *PostgresVulnerabilitiesRepo {
	return &PostgresVulnerabilitiesRepo{db: db}
}

const vulnerabilityColumns = `
	cve_id, name, description, severity, cvss_score,
	exposed_machines, published_on, updated_on, public_exploit`

func scanVulnerability(scan func(dest ...any) error) (*domain.Vulnerability, error) {
	var v domain.Vulnerability
	err := scan(
		&v.CVEID,
		&v.Name,
		&v.Description,
		&v.Severity,
		&v.CVSSScore,
		&v.ExposedMachines,
		&v.PublishedOn,
		&v.UpdatedOn,
		&v.PublicExploit,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *PostgresVulnerabilitiesRepo) ListVulnerabilities(ctx context.Context, filters VulnerabilityFilters, page, size int) ([]*domain.Vulnerability, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	argN := 1

	if filters.Severity != "" {
		where = append(where, fmt.Sprintf("severity = $%d", argN))
		args = append(args, filters.Severity)
		argN++
	}
	if filters.MinCVSS > 0 {
		where = append(where, fmt.Sprintf("cvss_score >= $%d", argN))
		args = append(args, filters.MinCVSS)
		argN++
	}
	if filters.PublicExploit != nil {
		where = append(where, fmt.Sprintf("public_exploit = $%d", argN))
		args = append(args, *filters.PublicExploit)
		argN++
	}
	if filters.SearchKeyword != "" {
		where = append(where, fmt.Sprintf("(cve_id ILIKE $%d OR name ILIKE $%d)", argN, argN))
		args = append(args, "%"+filters.SearchKeyword+"%")
		argN++
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM vulnerabilities WHERE "+strings.Join(where, " AND "),
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

	q := "SELECT " + vulnerabilityColumns + `
		FROM vulnerabilities
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY cvss_score DESC, cve_id
		LIMIT $` + fmt.Sprintf("%d", argN) + ` OFFSET $` + fmt.Sprintf("%d", argN+1)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []*domain.Vulnerability{}
	for rows.Next() {
		v, err := scanVulnerability(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, v)
	}
	return out, total, rows.Err()
}

func (r *PostgresVulnerabilitiesRepo) GetVulnerability(ctx context.Context, cveID string) (*domain.Vulnerability, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+vulnerabilityColumns+" FROM vulnerabilities WHERE cve_id = $1", cveID)
	v, err := scanVulnerability(row.Scan)
	if err != nil {
		return nil, err
	}
	return v, nil
}
