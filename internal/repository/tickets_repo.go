package repository

import (
	"context"

	"itsec-data/internal/domain"
)

// TicketFilters filters ticket listings. All fields optional.
type TicketFilters struct {
	Status        string
	Priority      string
	AssignedTo    string
	SearchKeyword string // case-insensitive substring on title
}

// TicketsRepository stores locally created IT tickets.
type TicketsRepository interface {
	ListTickets(ctx context.Context, filters TicketFilters, page, size int) ([]*domain.Ticket, int, error)
	GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error)
	CreateTicket(ctx context.Context, t *domain.Ticket) error
	UpdateTicket(ctx context.Context, ticketID string, updates map[string]any) error
}
