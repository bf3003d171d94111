package analyst

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeIsDeterministicPerSymbol(t *testing.T) {
	sideA, confA := Compute("BTC-USD")
	sideB, confB := Compute("BTC-USD")
	require.Equal(t, sideA, sideB)
	require.True(t, confA.Equal(confB))
}

func TestComputeVariesAcrossSymbols(t *testing.T) {
	_, confBTC := Compute("BTC-USD")
	_, confETH := Compute("ETH-USD")
	require.False(t, confBTC.Equal(confETH), "different symbols should seed different synthetic series")
}

func TestComputeConfidenceInUnitRange(t *testing.T) {
	for _, sym := range []string{"BTC-USD", "ETH-USD", "SOL-USD", "DOGE-USD"} {
		_, conf := Compute(sym)
		f, _ := conf.Float64()
		require.GreaterOrEqual(t, f, 0.0)
		require.LessOrEqual(t, f, 1.0)
	}
}
