package executor

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/marketloop/coordinator/internal/broker"
	"github.com/marketloop/coordinator/internal/schema"
)

// Handler serves the orchestrator's http-mode synchronous order placement
// call, sharing the same adapter/state-persistence path as the stream
// consumer so idempotency and reconciliation stay consistent regardless of
// pipeline mode.
func (s *Service) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			OrderID   string      `json:"orderId"`
			Symbol    string      `json:"symbol"`
			Side      schema.Side `json:"side"`
			Qty       string      `json:"qty"`
			RequestID string      `json:"requestId,omitempty"`
			TraceID   string      `json:"traceId,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, `{"error":"missing_field"}`, http.StatusBadRequest)
			return
		}

		order := schema.Order{
			OrderID:   body.OrderID,
			RequestID: body.RequestID,
			TraceID:   body.TraceID,
			Symbol:    body.Symbol,
			Side:      body.Side,
			Qty:       parseAmount(body.Qty),
			TS:        time.Now().UTC(),
		}

		values, err := broker.Encode(order)
		if err != nil {
			http.Error(w, `{"error":"pipeline_failed"}`, http.StatusInternalServerError)
			return
		}

		if _, err := s.handle(r.Context(), values); err != nil {
			http.Error(w, `{"error":"pipeline_failed","detail":"`+err.Error()+`"}`, http.StatusBadGateway)
			return
		}

		state, err := loadOrderState(r.Context(), s.broker.Raw(), order.OrderID)
		if err != nil || state == nil || state.LastStatus == nil {
			http.Error(w, `{"error":"pipeline_failed"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(state.LastStatus)
	}
}
