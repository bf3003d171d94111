package broker

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marketloop/coordinator/internal/schema"
)

func TestEncodeDecodePayloadRoundTrip(t *testing.T) {
	cmd := schema.Command{
		Type:      schema.CommandAnalyze,
		Symbol:    "BTC-USD",
		RequestID: "req-1",
	}

	values, err := encodePayload(cmd)
	require.NoError(t, err)
	require.Contains(t, values, "data")

	var got schema.Command
	require.NoError(t, decodePayload(values, &got))
	require.Equal(t, cmd.Type, got.Type)
	require.Equal(t, cmd.Symbol, got.Symbol)
	require.Equal(t, cmd.RequestID, got.RequestID)
}

func TestDecodeRawExtractsFields(t *testing.T) {
	values, err := encodePayload(map[string]any{"requestId": "req-2", "symbol": "ETH-USD"})
	require.NoError(t, err)

	raw, err := decodeRaw(values)
	require.NoError(t, err)
	require.Equal(t, "req-2", raw["requestId"])
	require.Equal(t, "ETH-USD", raw["symbol"])
}

func TestDecodeRawEmptyPayload(t *testing.T) {
	raw, err := decodeRaw(map[string]interface{}{})
	require.NoError(t, err)
	require.Empty(t, raw)
}
