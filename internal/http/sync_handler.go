package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"itsec-data/internal/service"
)

const errorSampleSize = 10

// SyncHandler exposes the device sync pipelines: POST triggers a run, GET
// reads the stored sync metadata for a source.
type SyncHandler struct {
	pipelines map[string]*service.DeviceSyncService
	logger    *zap.Logger
}

func NewSyncHandler(pipelines []*service.DeviceSyncService, logger *zap.Logger) *SyncHandler {
	byName := make(map[string]*service.DeviceSyncService, len(pipelines))
	for _, p := range pipelines {
		byName[p.Source()] = p
	}
	return &SyncHandler{pipelines: byName, logger: logger}
}

func (h *SyncHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// /itsec/api/v1/sync/{source}/devices | /itsec/api/v1/sync/{source}/status
	rest := strings.TrimPrefix(r.URL.Path, "/itsec/api/v1/sync/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	pipeline, ok := h.pipelines[parts[0]]
	if !ok {
		writeJSON(w, http.StatusNotFound, Fail(fmt.Sprintf("unknown sync source: %s", parts[0])))
		return
	}

	switch {
	case parts[1] == "devices" && r.Method == http.MethodPost:
		h.TriggerSync(w, r, pipeline)
	case parts[1] == "status" && r.Method == http.MethodGet:
		h.GetStatus(w, r, pipeline)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// TriggerSync runs one sync pass synchronously and serializes the result.
// The run itself never fails the request; a failed run is a 200 with
// success=false.
func (h *SyncHandler) TriggerSync(w http.ResponseWriter, r *http.Request, pipeline *service.DeviceSyncService) {
	h.logger.Info("Device sync triggered via API", zap.String("source", pipeline.Source()))

	result := pipeline.SyncDevices(r.Context(), nil)

	writeJSON(w, http.StatusOK, Ok(serializeSyncResult(result)))
}

// GetStatus returns the stored metadata of the last run for this source.
func (h *SyncHandler) GetStatus(w http.ResponseWriter, r *http.Request, pipeline *service.DeviceSyncService) {
	meta, err := pipeline.Status(r.Context())
	if err != nil {
		h.logger.Error("Failed to read sync status",
			zap.String("source", pipeline.Source()), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to read sync status: %v", err)))
		return
	}
	writeJSON(w, http.StatusOK, Ok(meta))
}

// serializeSyncResult shapes a run result for API consumers: full counters,
// a bounded error sample, and flat metric blocks.
func serializeSyncResult(res *service.SyncResult) map[string]any {
	sample := res.Errors
	hasMore := false
	if len(sample) > errorSampleSize {
		sample = sample[:errorSampleSize]
		hasMore = true
	}

	return map[string]any{
		"success": res.Success,
		"status":  res.Status,
		"summary": map[string]any{
			"devicesProcessed":    res.DevicesProcessed,
			"devicesFailed":       res.DevicesFailed,
			"totalDevicesFetched": res.TotalDevicesFetched,
			"executionTimeMs":     res.ExecutionTimeMs,
		},
		"sourceApiMetrics": map[string]any{
			"apiCalls":      res.SourceAPI.Calls,
			"pages":         res.SourceAPI.Pages,
			"requestTimeMs": res.SourceAPI.RequestTimeMs,
		},
		"storeMetrics": map[string]any{
			"writes":    res.Store.Writes,
			"writeCost": res.Store.WriteCost,
		},
		"errors": map[string]any{
			"count":   len(res.Errors),
			"sample":  sample,
			"hasMore": hasMore,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
}
