package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router uses the standard library http.ServeMux; the route set is small and
// flat enough that a third-party router buys nothing here.
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterRoutes wires every API handler. Handlers do their own method and
// sub-path dispatch via ServeHTTP.
func (r *Router) RegisterRoutes(
	sync *SyncHandler,
	stats *StatisticsHandler,
	alerts *AlertHandler,
	devices *DeviceHandler,
	risks *RiskDetectionHandler,
	vulns *VulnerabilityHandler,
	tickets *TicketHandler,
) {
	r.Handle("/itsec/api/v1/sync/", sync.ServeHTTP)

	r.Handle("/itsec/api/v1/statistics", stats.ServeHTTP)
	r.Handle("/itsec/api/v1/statistics/", stats.ServeHTTP)

	r.Handle("/itsec/api/v1/alerts", alerts.ServeHTTP)
	r.Handle("/itsec/api/v1/alerts/", alerts.ServeHTTP)

	r.Handle("/itsec/api/v1/devices/", devices.ServeHTTP)

	r.Handle("/itsec/api/v1/risk-detections", risks.ServeHTTP)
	r.Handle("/itsec/api/v1/risk-detections/", risks.ServeHTTP)

	r.Handle("/itsec/api/v1/vulnerabilities", vulns.ServeHTTP)
	r.Handle("/itsec/api/v1/vulnerabilities/", vulns.ServeHTTP)

	r.Handle("/itsec/api/v1/tickets", tickets.ServeHTTP)
	r.Handle("/itsec/api/v1/tickets/", tickets.ServeHTTP)

	r.Handle("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
