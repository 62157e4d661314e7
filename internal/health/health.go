package health

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	httputil "slotswap/pkg/http"
	kafkamw "slotswap/pkg/kafka/middleware"
	"slotswap/pkg/logger"
)

type HealthResponse struct {
	Status  string                   `json:"status"`
	Storage string                   `json:"storage,omitempty"`
	Backend string                   `json:"backend,omitempty"`
	Events  *kafkamw.MetricsSnapshot `json:"events,omitempty"`
}

// Pinger reports whether the storage backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	storage Pinger
	backend string
	metrics *kafkamw.Metrics
	log     *logger.Logger
}

// NewHealthHandler builds the probe handler. metrics may be nil when events
// are disabled.
func NewHealthHandler(storage Pinger, backend string, metrics *kafkamw.Metrics, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		storage: storage,
		backend: backend,
		metrics: metrics,
		log:     log,
	}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
	}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Health", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{Backend: h.backend}
	if h.metrics != nil {
		snapshot := h.metrics.Snapshot()
		resp.Events = &snapshot
	}

	if err := h.storage.Ping(ctx); err != nil {
		h.log.Error("Storage health check failed",
			"backend", h.backend,
			"error", err,
			"path", r.URL.Path,
		)
		resp.Status = "unavailable"
		resp.Storage = "error"
		if writeErr := httputil.WriteJSON(w, http.StatusServiceUnavailable, resp); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Ready", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	resp.Status = "ready"
	resp.Storage = "ok"
	if err := httputil.WriteJSON(w, http.StatusOK, resp); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Ready", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}
