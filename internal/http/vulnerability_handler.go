package httpapi

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"itsec-data/internal/repository"
)

// VulnerabilityHandler serves synced CVE records, read-only.
type VulnerabilityHandler struct {
	vulnsRepo repository.VulnerabilitiesRepository
	logger    *zap.Logger
}

func NewVulnerabilityHandler(vulnsRepo repository.VulnerabilitiesRepository, logger *zap.Logger) *VulnerabilityHandler {
	return &VulnerabilityHandler{vulnsRepo: vulnsRepo, logger: logger}
}

func (h *VulnerabilityHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if r.URL.Path == "/itsec/api/v1/vulnerabilities" {
		h.ListVulnerabilities(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/itsec/api/v1/vulnerabilities/")
	if id == "" || strings.Contains(id, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	h.GetVulnerability(w, r, id)
}

func (h *VulnerabilityHandler) ListVulnerabilities(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	filters := repository.VulnerabilityFilters{
		Severity:      q.Get("severity"),
		SearchKeyword: q.Get("search"),
	}
	if min := q.Get("minCvss"); min != "" {
		if v, err := strconv.ParseFloat(min, 64); err == nil {
			filters.MinCVSS = v
		}
	}
	if pe := q.Get("publicExploit"); pe != "" {
		v := pe == "true"
		filters.PublicExploit = &v
	}
	page, size := parsePagination(r)

	items, total, err := h.vulnsRepo.ListVulnerabilities(ctx, filters, page, size)
	if err != nil {
		h.logger.Error("ListVulnerabilities failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to list vulnerabilities: %v", err)))
		return
	}

	out := make([]any, 0, len(items))
	for _, v := range items {
		out = append(out, v.ToJSON())
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": out,
		"total": total,
	}))
}

func (h *VulnerabilityHandler) GetVulnerability(w http.ResponseWriter, r *http.Request, cveID string) {
	v, err := h.vulnsRepo.GetVulnerability(r.Context(), cveID)
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, Fail("vulnerability not found"))
		return
	}
	if err != nil {
		h.logger.Error("GetVulnerability failed", zap.String("cve_id", cveID), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to get vulnerability: %v", err)))
		return
	}
	writeJSON(w, http.StatusOK, Ok(v.ToJSON()))
}
