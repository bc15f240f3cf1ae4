package httpapi

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"itsec-data/internal/repository"
	"itsec-data/internal/service"
)

// StatisticsHandler exposes alert-statistics documents and the generation
// trigger.
type StatisticsHandler struct {
	statsService *service.StatisticsService
	statsRepo    repository.StatisticsRepository
	logger       *zap.Logger
}

func NewStatisticsHandler(statsService *service.StatisticsService, statsRepo repository.StatisticsRepository, logger *zap.Logger) *StatisticsHandler {
	return &StatisticsHandler{
		statsService: statsService,
		statsRepo:    statsRepo,
		logger:       logger,
	}
}

func (h *StatisticsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/itsec/api/v1/statistics" && r.Method == http.MethodGet:
		h.ListStatistics(w, r)
	case r.URL.Path == "/itsec/api/v1/statistics/generate" && r.Method == http.MethodPost:
		h.GenerateStatistics(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// ListStatistics queries stored statistics documents by type and date range.
func (h *StatisticsHandler) ListStatistics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filters := repository.StatisticsFilters{
		Type:      r.URL.Query().Get("type"),
		StartDate: r.URL.Query().Get("startDate"),
		EndDate:   r.URL.Query().Get("endDate"),
	}
	page, size := parsePagination(r)

	items, total, err := h.statsRepo.ListStatistics(ctx, filters, page, size)
	if err != nil {
		h.logger.Error("ListStatistics failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to list statistics: %v", err)))
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": items,
		"total": total,
	}))
}

// GenerateStatistics runs one generation pass synchronously. Like the sync
// trigger, a failed run is a 200 with success=false in the payload.
func (h *StatisticsHandler) GenerateStatistics(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Statistics generation triggered via API")

	result := h.statsService.Run(r.Context())

	writeJSON(w, http.StatusOK, Ok(result))
}
