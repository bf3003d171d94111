package orchestrator

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/marketloop/coordinator/internal/adminauth"
	"github.com/marketloop/coordinator/internal/broker"
	"github.com/marketloop/coordinator/internal/httpserver"
	"github.com/marketloop/coordinator/internal/metrics"
	"github.com/marketloop/coordinator/internal/schema"
)

// NewRouter builds the orchestrator's full HTTP surface: an unauthenticated
// health/metrics/run group and an admin-token-gated group for halt/pnl/dlq
// operations (spec §4.8).
func NewRouter(s *Service, log zerolog.Logger, health *httpserver.Health, reg *metrics.Registry, adminToken string) *chi.Mux {
	r := httpserver.NewRouter(log, reg)
	r.Get("/health", health.Handler)
	r.Get("/metrics", reg.Handler())
	r.Post("/orchestrate/run", s.handleRun)
	r.Post("/orchestrate/stop", s.handleStop)
	r.Get("/pnl/status", s.handlePnLStatus)

	r.Group(func(admin chi.Router) {
		admin.Use(adminauth.Middleware(adminToken))
		admin.Post("/admin/pnl/reset", s.handlePnLReset)
		admin.Post("/admin/orchestrate/halt", s.handleHalt)
		admin.Post("/admin/orchestrate/unhalt", s.handleUnhalt)
		admin.Get("/admin/streams/pending", s.handlePendingSummary)
		admin.Get("/admin/streams/dlq", s.handleDLQList)
		admin.Post("/admin/streams/dlq/requeue", s.handleDLQRequeue)
	})

	return r
}

func (s *Service) handleRun(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Symbol string `json:"symbol"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Symbol == "" {
		httpserver.WriteError(w, http.StatusBadRequest, "missing_field", "symbol is required")
		return
	}

	requestID, traceID, err := s.StartRun(r.Context(), body.Symbol)
	if err != nil {
		if err == ErrHalted {
			httpserver.WriteError(w, http.StatusConflict, "halted", "trading is halted for today")
			return
		}
		httpserver.WriteError(w, http.StatusInternalServerError, "pipeline_failed", err.Error())
		return
	}

	httpserver.WriteJSON(w, http.StatusAccepted, map[string]string{
		"requestId": requestID,
		"traceId":   traceID,
	})
}

// handleStop implements the "stop" control operation as an append of
// {type: halt} onto orchestrator.commands (spec §9) rather than any direct
// in-process call, so every orchestrator replica observes it the same way.
func (s *Service) handleStop(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	cmd := schema.Command{
		Type:   schema.CommandHalt,
		Reason: body.Reason,
		TS:     time.Now().UTC(),
	}
	if _, err := broker.AppendWithRetry(r.Context(), s.broker, schema.StreamCommands, cmd); err != nil {
		httpserver.WriteError(w, http.StatusInternalServerError, "pipeline_failed", err.Error())
		return
	}
	httpserver.WriteJSON(w, http.StatusAccepted, map[string]bool{"stopping": true})
}

func (s *Service) handlePnLStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.PnLStatus(r.Context())
	if err != nil {
		httpserver.WriteError(w, http.StatusInternalServerError, "pipeline_failed", err.Error())
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, status)
}

func (s *Service) handlePnLReset(w http.ResponseWriter, r *http.Request) {
	status, err := s.PnLReset(r.Context())
	if err != nil {
		httpserver.WriteError(w, http.StatusInternalServerError, "pipeline_failed", err.Error())
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, status)
}

func (s *Service) handleHalt(w http.ResponseWriter, r *http.Request) {
	if err := s.Halt(r.Context()); err != nil {
		httpserver.WriteError(w, http.StatusInternalServerError, "pipeline_failed", err.Error())
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, map[string]bool{"halted": true})
}

func (s *Service) handleUnhalt(w http.ResponseWriter, r *http.Request) {
	if err := s.Unhalt(r.Context()); err != nil {
		httpserver.WriteError(w, http.StatusInternalServerError, "pipeline_failed", err.Error())
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, map[string]bool{"halted": false})
}

func (s *Service) handlePendingSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.PendingSummary(r.Context())
	if err != nil {
		httpserver.WriteError(w, http.StatusInternalServerError, "pipeline_failed", err.Error())
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, summary)
}

func (s *Service) handleDLQList(w http.ResponseWriter, r *http.Request) {
	stream := r.URL.Query().Get("stream")
	if stream == "" {
		httpserver.WriteError(w, http.StatusBadRequest, "missing_field", "stream query param is required")
		return
	}
	count := int64(50)
	if raw := r.URL.Query().Get("count"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			count = n
		}
	}

	items, err := s.DLQList(r.Context(), stream, count)
	if err != nil {
		httpserver.WriteError(w, http.StatusInternalServerError, "pipeline_failed", err.Error())
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, items)
}

func (s *Service) handleDLQRequeue(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Stream string `json:"stream"`
		ID     string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Stream == "" || body.ID == "" {
		httpserver.WriteError(w, http.StatusBadRequest, "missing_field", "stream and id are required")
		return
	}

	newID, err := s.DLQRequeue(r.Context(), body.Stream, body.ID)
	if err != nil {
		httpserver.WriteError(w, http.StatusInternalServerError, "pipeline_failed", err.Error())
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, map[string]string{"id": newID})
}
