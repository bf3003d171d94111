// Package httpserver provides the chi middleware chain and small handler
// helpers shared by every service's admin HTTP surface.
package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/marketloop/coordinator/internal/metrics"
)

const maxBodyBytes = 1 << 20 // 1MiB

// NewRouter builds a chi.Router with RequestID, Recoverer, a structured
// request logger, a body-size limit and an HTTP metrics recorder, matching
// the teacher's middleware chain shape. reg may be nil, in which case no
// HTTP metrics are recorded.
func NewRouter(log zerolog.Logger, reg *metrics.Registry) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log, reg))
	r.Use(bodyLimit(maxBodyBytes))
	r.Use(middleware.Timeout(10 * time.Second))
	return r
}

func requestLogger(log zerolog.Logger, reg *metrics.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			elapsed := time.Since(start)
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("elapsed", elapsed).
				Str("requestId", middleware.GetReqID(r.Context())).
				Msg("http request")
			if reg != nil {
				reg.TrackHTTPRequest(r.URL.Path, ww.Status(), float64(elapsed.Milliseconds()))
			}
		})
	}
}

func bodyLimit(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}

// WriteJSON writes v as a JSON body with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorBody is the stable {error, detail?} shape spec §7 requires for
// synchronous failures.
type ErrorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, code, detail string) {
	WriteJSON(w, status, ErrorBody{Error: code, Detail: detail})
}

// Health reports liveness plus broker/store connectivity and process uptime.
type Health struct {
	startedAt time.Time
	ping      func() error
}

func NewHealth(ping func() error) *Health {
	return &Health{startedAt: time.Now(), ping: ping}
}

func (h *Health) Handler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := h.ping(); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	WriteJSON(w, code, map[string]any{
		"status": status,
		"uptime": time.Since(h.startedAt).String(),
	})
}
