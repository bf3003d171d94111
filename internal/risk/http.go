package risk

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/marketloop/coordinator/internal/schema"
)

type evaluateRequest struct {
	Symbol     string          `json:"symbol"`
	Side       schema.Side     `json:"side"`
	Confidence decimal.Decimal `json:"confidence"`
	RequestID  string          `json:"requestId"`
	TraceID    string          `json:"traceId,omitempty"`
}

// Handler serves the orchestrator's http-mode synchronous risk evaluation
// call. It reads optimizer:active_params exactly like the stream consumer
// (field names unified on tradingStartHour/tradingEndHour everywhere, per
// the evaluation-order resolution recorded for this component).
func Handler(rdb *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req evaluateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"missing_field"}`, http.StatusBadRequest)
			return
		}

		params, err := LoadParams(r.Context(), rdb)
		if err != nil {
			http.Error(w, `{"error":"pipeline_failed"}`, http.StatusInternalServerError)
			return
		}

		decision := Evaluate(req.Side, req.Confidence, params, time.Now().UTC().Hour())

		resp := schema.RiskResponse{
			RequestID: req.RequestID,
			TraceID:   req.TraceID,
			OK:        decision.OK,
			Reason:    decision.Reason,
			TS:        time.Now().UTC(),
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
