package domain

import (
	"database/sql"
	"time"
)

// Ticket statuses.
const (
	TicketStatusOpen       = "open"
	TicketStatusInProgress = "in_progress"
	TicketStatusResolved   = "resolved"
	TicketStatusClosed     = "closed"
)

// Ticket is an IT ticket (tickets table). Tickets are created locally (UUID)
// rather than synced from an upstream source; a ticket may reference the alert
// it was opened for.
type Ticket struct {
	TicketID    string         `db:"ticket_id"`
	Title       string         `db:"title"`
	Description sql.NullString `db:"description"`
	Status      string         `db:"status"`
	Priority    string         `db:"priority"` // low|medium|high|urgent
	AssignedTo  sql.NullString `db:"assigned_to"`
	AlertID     sql.NullString `db:"alert_id"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

// ToJSON converts the ticket for HTTP responses.
func (t *Ticket) ToJSON() map[string]any {
	m := map[string]any{
		"ticket_id":  t.TicketID,
		"title":      t.Title,
		"status":     t.Status,
		"priority":   t.Priority,
		"created_at": t.CreatedAt,
		"updated_at": t.UpdatedAt,
	}
	if t.Description.Valid {
		m["description"] = t.Description.String
	}
	if t.AssignedTo.Valid {
		m["assigned_to"] = t.AssignedTo.String
	}
	if t.AlertID.Valid {
		m["alert_id"] = t.AlertID.String
	}
	return m
}
