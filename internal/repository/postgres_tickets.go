package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"itsec-data/internal/domain"
)

type PostgresTicketsRepo struct {
	db *sql.DB
}

func NewPostgresTicketsRepo(db *sql.DB) *PostgresTicketsRepo {
	return &PostgresTicketsRepo{db: db}
}

const ticketColumns = `
	ticket_id, title, description, status, priority,
	assigned_to, alert_id, created_at, updated_at`

// Columns a ticket update may touch.
var ticketUpdateColumns = map[string]bool{
	"title":       true,
	"description": true,
	"status":      true,
	"priority":    true,
	"assigned_to": true,
}

func scanTicket(scan func(dest ...any) error) (*domain.Ticket, error) {
	var t domain.Ticket
	err := scan(
		&t.TicketID,
		&t.Title,
		&t.Description,
		&t.Status,
		&t.Priority,
		&t.AssignedTo,
		&t.AlertID,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *PostgresTicketsRepo) ListTickets(ctx context.Context, filters TicketFilters, page, size int) ([]*domain.Ticket, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	argN := 1

	if filters.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", argN))
		args = append(args, filters.Status)
		argN++
	}
	if filters.Priority != "" {
		where = append(where, fmt.Sprintf("priority = $%d", argN))
		args = append(args, filters.Priority)
		argN++
	}
	if filters.AssignedTo != "" {
		where = append(where, fmt.Sprintf("assigned_to = $%d", argN))
		args = append(args, filters.AssignedTo)
		argN++
	}
	if filters.SearchKeyword != "" {
		where = append(where, fmt.Sprintf("title ILIKE $%d", argN))
		args = append(args, "%"+filters.SearchKeyword+"%")
		argN++
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tickets WHERE "+strings.Join(where, " AND "),
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

	q := "SELECT " + ticketColumns + `
		FROM tickets
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY updated_at DESC
		LIMIT $` + fmt.Sprintf("%d", argN) + ` OFFSET $` + fmt.Sprintf("%d", argN+1)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []*domain.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

func (r *PostgresTicketsRepo) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+ticketColumns+" FROM tickets WHERE ticket_id = $1", ticketID)
	t, err := scanTicket(row.Scan)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *PostgresTicketsRepo) CreateTicket(ctx context.Context, t *domain.Ticket) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tickets (ticket_id, title, description, status, priority, assigned_to, alert_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())`,
		t.TicketID, t.Title, t.Description, t.Status, t.Priority, t.AssignedTo, t.AlertID)
	return err
}

func (r *PostgresTicketsRepo) UpdateTicket(ctx context.Context, ticketID string, updates map[string]any) error {
	set := []string{}
	args := []any{ticketID}
	argN := 2

	for col, val := range updates {
		if !ticketUpdateColumns[col] {
			return fmt.Errorf("unsupported ticket column %q", col)
		}
		set = append(set, fmt.Sprintf("%s = $%d", col, argN))
		args = append(args, val)
		argN++
	}
	if len(set) == 0 {
		return nil
	}
	set = append(set, "updated_at = NOW()")

	res, err := r.db.ExecContext(ctx,
		"UPDATE tickets SET "+strings.Join(set, ", ")+" WHERE ticket_id = $1", args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("ticket %s not found: %w", ticketID, sql.ErrNoRows)
	}
	return nil
}
