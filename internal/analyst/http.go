package analyst

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/marketloop/coordinator/internal/schema"
)

type analyzeRequest struct {
	Symbol    string `json:"symbol"`
	RequestID string `json:"requestId"`
	TraceID   string `json:"traceId,omitempty"`
}

// Handler serves the orchestrator's http-mode synchronous analyze call.
// Not part of the token-gated admin surface: it is an internal peer
// endpoint (spec §4.3's http pipeline mode calling Analyst directly).
func Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"missing_field"}`, http.StatusBadRequest)
			return
		}

		side, confidence := Compute(req.Symbol)
		signal := schema.Signal{
			RequestID:  req.RequestID,
			TraceID:    req.TraceID,
			Symbol:     req.Symbol,
			Side:       side,
			Confidence: confidence,
			TS:         time.Now().UTC(),
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(signal)
	}
}
