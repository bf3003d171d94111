package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCounterIncAccumulates(t *testing.T) {
	r := NewRegistry()
	r.CounterInc("x", map[string]string{"a": "1"})
	r.CounterInc("x", map[string]string{"a": "1"})
	r.CounterInc("x", map[string]string{"a": "2"})

	require.Equal(t, int64(2), r.getCounter("x", map[string]string{"a": "1"}).Value())
	require.Equal(t, int64(1), r.getCounter("x", map[string]string{"a": "2"}).Value())
}

func TestGaugeSetOverwrites(t *testing.T) {
	r := NewRegistry()
	r.GaugeSet("g", nil, 3.5)
	r.GaugeSet("g", nil, 7)
	require.Equal(t, 7.0, r.getGauge("g", nil).Value())
}

func TestHandlerServesExpositionFormat(t *testing.T) {
	r := NewRegistry()
	r.TrackPending("orchestrator.commands", "analyst", 4)
	r.TrackRiskEvaluation(false, "low_confidence")

	req := httptest.NewRequest("GET", "/metrics", nil)
	rw := httptest.NewRecorder()
	r.Handler()(rw, req)

	body := rw.Body.String()
	require.Contains(t, body, "coordinator_stream_pending")
	require.Contains(t, body, "coordinator_risk_evaluations_total")
}
