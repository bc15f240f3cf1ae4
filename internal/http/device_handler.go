package httpapi

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"itsec-data/internal/domain"
	"itsec-data/internal/repository"
)

// DeviceHandler serves synced device inventories for both sources. Devices
// are read-only through the API; writes happen only in the sync pipeline.
type DeviceHandler struct {
	repos  map[string]repository.DeviceDocsRepository // keyed by source path segment
	logger *zap.Logger
}

func NewDeviceHandler(managed, defender repository.DeviceDocsRepository, logger *zap.Logger) *DeviceHandler {
	return &DeviceHandler{
		repos: map[string]repository.DeviceDocsRepository{
			"managed":  managed,
			"defender": defender,
		},
		logger: logger,
	}
}

func (h *DeviceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// /itsec/api/v1/devices/{source}[/{id}|/export]
	rest := strings.TrimPrefix(r.URL.Path, "/itsec/api/v1/devices/")
	parts := strings.SplitN(rest, "/", 2)
	repo, ok := h.repos[parts[0]]
	if !ok {
		writeJSON(w, http.StatusNotFound, Fail(fmt.Sprintf("unknown device source: %s", parts[0])))
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	switch {
	case len(parts) == 1 || parts[1] == "":
		h.ListDevices(w, r, repo)
	case parts[1] == "export":
		h.ExportDevices(w, r, parts[0], repo)
	case !strings.Contains(parts[1], "/"):
		h.GetDevice(w, r, repo, parts[1])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// ListDevices queries a device inventory. Arbitrary payload fields can be
// filtered with field/value (allow-listed in the repository).
func (h *DeviceHandler) ListDevices(w http.ResponseWriter, r *http.Request, repo repository.DeviceDocsRepository) {
	ctx := r.Context()
	q := r.URL.Query()

	filters := repository.DeviceDocFilters{
		SearchKeyword: q.Get("search"),
		Field:         q.Get("field"),
		Value:         q.Get("value"),
	}
	page, size := parsePagination(r)

	items, total, err := repo.ListDevices(ctx, filters, page, size)
	if err != nil {
		h.logger.Error("ListDevices failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to list devices: %v", err)))
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": items,
		"total": total,
	}))
}

func (h *DeviceHandler) GetDevice(w http.ResponseWriter, r *http.Request, repo repository.DeviceDocsRepository, id string) {
	doc, err := repo.GetDevice(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, Fail("device not found"))
		return
	}
	if err != nil {
		h.logger.Error("GetDevice failed", zap.String("device_id", id), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to get device: %v", err)))
		return
	}
	writeJSON(w, http.StatusOK, Ok(doc))
}

// ExportDevices streams the full inventory as an Excel workbook. The export
// pages through the repository so memory stays bounded by the page size.
func (h *DeviceHandler) ExportDevices(w http.ResponseWriter, r *http.Request, source string, repo repository.DeviceDocsRepository) {
	ctx := r.Context()

	const exportPageSize = 500
	var rows []map[string]any
	for page := 1; ; page++ {
		items, _, err := repo.ListDevices(ctx, repository.DeviceDocFilters{}, page, exportPageSize)
		if err != nil {
			h.logger.Error("ExportDevices failed", zap.String("source", source), zap.Error(err))
			writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to export devices: %v", err)))
			return
		}
		for _, doc := range items {
			rows = append(rows, deviceExportRow(source, doc))
		}
		if len(items) < exportPageSize {
			break
		}
	}

	var (
		data []byte
		err  error
	)
	if source == "defender" {
		data, err = GenerateDeviceExport(DefenderDeviceExportHeader, rows)
	} else {
		data, err = GenerateDeviceExport(ManagedDeviceExportHeader, rows)
	}
	if err != nil {
		h.logger.Error("Failed to generate device export", zap.String("source", source), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to generate export: %v", err)))
		return
	}

	filename := fmt.Sprintf("%s_devices_%s.xlsx", source, time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	_, _ = w.Write(data)
}

// deviceExportRow flattens a stored payload into the export columns via the
// typed projection for its source.
func deviceExportRow(source string, doc *domain.DeviceDoc) map[string]any {
	if source == "defender" {
		var d domain.DefenderDevice
		_ = json.Unmarshal(doc.Payload, &d)
		return map[string]any{
			"Device ID":      doc.ID,
			"Computer Name":  d.ComputerDNSName,
			"OS Platform":    d.OSPlatform,
			"OS Version":     d.OSVersion,
			"Health Status":  d.HealthStatus,
			"Risk Score":     d.RiskScore,
			"Exposure Level": d.ExposureLevel,
			"Last IP":        d.LastIPAddress,
			"First Seen":     d.FirstSeen,
			"Last Seen":      d.LastSeen,
			"Synced At":      doc.SyncedAt.Format(time.RFC3339),
		}
	}

	var m domain.ManagedDevice
	_ = json.Unmarshal(doc.Payload, &m)
	return map[string]any{
		"Device ID":        doc.ID,
		"Device Name":      m.DeviceName,
		"Operating System": m.OperatingSystem,
		"OS Version":       m.OSVersion,
		"Compliance State": m.ComplianceState,
		"Management Agent": m.ManagementAgent,
		"User":             m.UserPrincipalName,
		"Serial Number":    m.SerialNumber,
		"Enrolled":         m.EnrolledDateTime,
		"Last Sync":        m.LastSyncDateTime,
		"Synced At":        doc.SyncedAt.Format(time.RFC3339),
	}
}
