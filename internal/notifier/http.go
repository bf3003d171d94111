package notifier

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/marketloop/coordinator/internal/adminauth"
	"github.com/marketloop/coordinator/internal/httpserver"
	"github.com/marketloop/coordinator/internal/metrics"
)

// NewRouter builds the notifier's HTTP surface: an unauthenticated
// health/metrics/recent group and an admin-token-gated ack endpoint.
func NewRouter(s *Service, log zerolog.Logger, health *httpserver.Health, reg *metrics.Registry, adminToken string) *chi.Mux {
	r := httpserver.NewRouter(log, reg)
	r.Get("/health", health.Handler)
	r.Get("/metrics", reg.Handler())
	r.Get("/notify/recent", s.handleRecent)

	r.Group(func(admin chi.Router) {
		admin.Use(adminauth.Middleware(adminToken))
		admin.Post("/admin/notify/ack", s.handleAck)
	})

	return r
}

func (s *Service) handleRecent(w http.ResponseWriter, r *http.Request) {
	isAcked := func(string) bool { return false }
	if s.Acks != nil {
		isAcked = func(id string) bool { return s.Acks.IsAcked(r.Context(), id) }
	}
	httpserver.WriteJSON(w, http.StatusOK, s.Ring.Snapshot(isAcked))
}

// handleAck implements POST /admin/notify/ack (spec §6: body
// `{traceId|requestId}`). requestId is preferred since it matches the ring's
// id for any event that carried one; traceId is accepted as a fallback for
// events acked before their requestId-keyed id is known to the caller.
func (s *Service) handleAck(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RequestID string `json:"requestId"`
		TraceID   string `json:"traceId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || (body.RequestID == "" && body.TraceID == "") {
		httpserver.WriteError(w, http.StatusBadRequest, "missing_field", "requestId or traceId is required")
		return
	}
	id := body.RequestID
	if id == "" {
		id = body.TraceID
	}
	if s.Acks == nil {
		httpserver.WriteError(w, http.StatusInternalServerError, "pipeline_failed", "ack store not configured")
		return
	}
	if err := s.Acks.Ack(r.Context(), id); err != nil {
		httpserver.WriteError(w, http.StatusInternalServerError, "pipeline_failed", err.Error())
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, map[string]bool{"acked": true})
}
