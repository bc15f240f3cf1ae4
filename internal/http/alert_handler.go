package httpapi

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"itsec-data/internal/repository"
)

// AlertHandler serves Defender security alerts. Alerts arrive via sync, so
// the only write here is the status transition.
type AlertHandler struct {
	alertsRepo repository.AlertsRepository
	logger     *zap.Logger
}

func NewAlertHandler(alertsRepo repository.AlertsRepository, logger *zap.Logger) *AlertHandler {
	return &AlertHandler{alertsRepo: alertsRepo, logger: logger}
}

func (h *AlertHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/itsec/api/v1/alerts" && r.Method == http.MethodGet:
		h.ListAlerts(w, r)
	case r.URL.Path == "/itsec/api/v1/alerts/search" && r.Method == http.MethodGet:
		h.SearchAlerts(w, r)
	default:
		id := strings.TrimPrefix(r.URL.Path, "/itsec/api/v1/alerts/")
		switch {
		case id != "" && !strings.Contains(id, "/") && r.Method == http.MethodGet:
			h.GetAlert(w, r, id)
		case strings.HasSuffix(id, "/status") && r.Method == http.MethodPatch:
			h.UpdateAlertStatus(w, r, strings.TrimSuffix(id, "/status"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

// ListAlerts queries alerts with optional filters. severity accepts a
// comma-separated list.
func (h *AlertHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	filters := repository.AlertFilters{
		Status:          q.Get("status"),
		Category:        q.Get("category"),
		DetectionSource: q.Get("detectionSource"),
		SearchKeyword:   q.Get("search"),
	}
	if sev := q.Get("severity"); sev != "" {
		filters.Severity = strings.Split(sev, ",")
	}
	if from := q.Get("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			filters.From = &t
		}
	}
	if to := q.Get("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filters.To = &t
		}
	}
	page, size := parsePagination(r)

	items, total, err := h.alertsRepo.ListAlerts(ctx, filters, page, size)
	if err != nil {
		h.logger.Error("ListAlerts failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to list alerts: %v", err)))
		return
	}

	out := make([]any, 0, len(items))
	for _, a := range items {
		out = append(out, a.ToJSON())
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": out,
		"total": total,
	}))
}

// SearchAlerts runs the full-text query over title, category and threat
// family name.
func (h *AlertHandler) SearchAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSON(w, http.StatusOK, Fail("missing query parameter: q"))
		return
	}
	page, size := parsePagination(r)

	items, total, err := h.alertsRepo.SearchAlerts(ctx, query, page, size)
	if err != nil {
		h.logger.Error("SearchAlerts failed", zap.String("query", query), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to search alerts: %v", err)))
		return
	}

	out := make([]any, 0, len(items))
	for _, a := range items {
		out = append(out, a.ToJSON())
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": out,
		"total": total,
	}))
}

func (h *AlertHandler) GetAlert(w http.ResponseWriter, r *http.Request, alertID string) {
	alert, err := h.alertsRepo.GetAlert(r.Context(), alertID)
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, Fail("alert not found"))
		return
	}
	if err != nil {
		h.logger.Error("GetAlert failed", zap.String("alert_id", alertID), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to get alert: %v", err)))
		return
	}
	writeJSON(w, http.StatusOK, Ok(alert.ToJSON()))
}

var allowedAlertStatuses = map[string]bool{
	"new":        true,
	"inProgress": true,
	"resolved":   true,
}

// UpdateAlertStatus transitions an alert's status. Resolving stamps
// resolved_time in the repository.
func (h *AlertHandler) UpdateAlertStatus(w http.ResponseWriter, r *http.Request, alertID string) {
	var body struct {
		Status string `json:"status"`
	}
	if err := readBodyJSON(r, 1<<16, &body); err != nil || !allowedAlertStatuses[body.Status] {
		writeJSON(w, http.StatusOK, Fail("status must be one of: new, inProgress, resolved"))
		return
	}

	if err := h.alertsRepo.UpdateAlertStatus(r.Context(), alertID, body.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, Fail("alert not found"))
			return
		}
		h.logger.Error("UpdateAlertStatus failed", zap.String("alert_id", alertID), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to update alert status: %v", err)))
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"alert_id": alertID,
		"status":   body.Status,
	}))
}
