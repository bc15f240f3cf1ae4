package httpapi

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"itsec-data/internal/repository"
)

// RiskDetectionHandler serves synced identity-protection risk detections,
// read-only.
type RiskDetectionHandler struct {
	risksRepo repository.RiskDetectionsRepository
	logger    *zap.Logger
}

func NewRiskDetectionHandler(risksRepo repository.RiskDetectionsRepository, logger *zap.Logger) *RiskDetectionHandler {
	return &RiskDetectionHandler{risksRepo: risksRepo, logger: logger}
}

func (h *RiskDetectionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if r.URL.Path == "/itsec/api/v1/risk-detections" {
		h.ListRiskDetections(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/itsec/api/v1/risk-detections/")
	if id == "" || strings.Contains(id, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	h.GetRiskDetection(w, r, id)
}

func (h *RiskDetectionHandler) ListRiskDetections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	filters := repository.RiskDetectionFilters{
		RiskLevel:     q.Get("riskLevel"),
		RiskState:     q.Get("riskState"),
		SearchKeyword: q.Get("search"),
	}
	page, size := parsePagination(r)

	items, total, err := h.risksRepo.ListRiskDetections(ctx, filters, page, size)
	if err != nil {
		h.logger.Error("ListRiskDetections failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to list risk detections: %v", err)))
		return
	}

	out := make([]any, 0, len(items))
	for _, d := range items {
		out = append(out, d.ToJSON())
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": out,
		"total": total,
	}))
}

func (h *RiskDetectionHandler) GetRiskDetection(w http.ResponseWriter, r *http.Request, detectionID string) {
	d, err := h.risksRepo.GetRiskDetection(r.Context(), detectionID)
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, Fail("risk detection not found"))
		return
	}
	if err != nil {
		h.logger.Error("GetRiskDetection failed", zap.String("detection_id", detectionID), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to get risk detection: %v", err)))
		return
	}
	writeJSON(w, http.StatusOK, Ok(d.ToJSON()))
}
