package httpapi

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"itsec-data/internal/domain"
	"itsec-data/internal/repository"
)

// TicketHandler serves locally created IT tickets. This is the one
// API-writable collection; everything else arrives through sync.
type TicketHandler struct {
	ticketsRepo repository.TicketsRepository
	logger      *zap.Logger
}

func NewTicketHandler(ticketsRepo repository.TicketsRepository, logger *zap.Logger) *TicketHandler {
	return &TicketHandler{ticketsRepo: ticketsRepo, logger: logger}
}

func (h *TicketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/itsec/api/v1/tickets" && r.Method == http.MethodGet:
		h.ListTickets(w, r)
	case r.URL.Path == "/itsec/api/v1/tickets" && r.Method == http.MethodPost:
		h.CreateTicket(w, r)
	default:
		id := strings.TrimPrefix(r.URL.Path, "/itsec/api/v1/tickets/")
		if id == "" || strings.Contains(id, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch r.Method {
		case http.MethodGet:
			h.GetTicket(w, r, id)
		case http.MethodPatch:
			h.UpdateTicket(w, r, id)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}
}

func (h *TicketHandler) ListTickets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	filters := repository.TicketFilters{
		Status:        q.Get("status"),
		Priority:      q.Get("priority"),
		AssignedTo:    q.Get("assignedTo"),
		SearchKeyword: q.Get("search"),
	}
	page, size := parsePagination(r)

	items, total, err := h.ticketsRepo.ListTickets(ctx, filters, page, size)
	if err != nil {
		h.logger.Error("ListTickets failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to list tickets: %v", err)))
		return
	}

	out := make([]any, 0, len(items))
	for _, t := range items {
		out = append(out, t.ToJSON())
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": out,
		"total": total,
	}))
}

func (h *TicketHandler) GetTicket(w http.ResponseWriter, r *http.Request, ticketID string) {
	t, err := h.ticketsRepo.GetTicket(r.Context(), ticketID)
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, Fail("ticket not found"))
		return
	}
	if err != nil {
		h.logger.Error("GetTicket failed", zap.String("ticket_id", ticketID), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to get ticket: %v", err)))
		return
	}
	writeJSON(w, http.StatusOK, Ok(t.ToJSON()))
}

var allowedTicketPriorities = map[string]bool{
	"low":    true,
	"medium": true,
	"high":   true,
	"urgent": true,
}

// CreateTicket opens a new ticket, optionally linked to an alert.
func (h *TicketHandler) CreateTicket(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Priority    string `json:"priority"`
		AssignedTo  string `json:"assigned_to"`
		AlertID     string `json:"alert_id"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid body"))
		return
	}
	if body.Title == "" {
		writeJSON(w, http.StatusOK, Fail("title is required"))
		return
	}
	if body.Priority == "" {
		body.Priority = "medium"
	}
	if !allowedTicketPriorities[body.Priority] {
		writeJSON(w, http.StatusOK, Fail("priority must be one of: low, medium, high, urgent"))
		return
	}

	now := time.Now().UTC()
	t := &domain.Ticket{
		TicketID:    uuid.New().String(),
		Title:       body.Title,
		Description: sql.NullString{String: body.Description, Valid: body.Description != ""},
		Status:      domain.TicketStatusOpen,
		Priority:    body.Priority,
		AssignedTo:  sql.NullString{String: body.AssignedTo, Valid: body.AssignedTo != ""},
		AlertID:     sql.NullString{String: body.AlertID, Valid: body.AlertID != ""},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.ticketsRepo.CreateTicket(r.Context(), t); err != nil {
		h.logger.Error("CreateTicket failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to create ticket: %v", err)))
		return
	}

	writeJSON(w, http.StatusOK, Ok(t.ToJSON()))
}

// UpdateTicket applies a partial update. Allowed columns are enforced by the
// repository's allow-list.
func (h *TicketHandler) UpdateTicket(w http.ResponseWriter, r *http.Request, ticketID string) {
	var updates map[string]any
	if err := readBodyJSON(r, 1<<20, &updates); err != nil || len(updates) == 0 {
		writeJSON(w, http.StatusOK, Fail("invalid or empty body"))
		return
	}

	if err := h.ticketsRepo.UpdateTicket(r.Context(), ticketID, updates); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, Fail("ticket not found"))
			return
		}
		h.logger.Error("UpdateTicket failed", zap.String("ticket_id", ticketID), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to update ticket: %v", err)))
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{"ticket_id": ticketID}))
}
