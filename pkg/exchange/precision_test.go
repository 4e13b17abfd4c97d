package exchange

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatDecimal(t *testing.T) {
	tests := map[float64]string{
		1:           "1",
		1.5:         "1.5",
		0.1 + 0.2:   "0.3",
		0.123456789: "0.12345679",
		10:          "10",
		-2.25:       "-2.25",
	}
	for in, want := range tests {
		require.Equalf(t, want, FormatDecimal(in, 8), "FormatDecimal(%v)", in)
	}
}

func TestFloorToDecimals(t *testing.T) {
	require.Equal(t, "0.123", FloorToDecimals(0.12399, 3).String())
	require.Equal(t, "12", FloorToDecimals(12.99, 0).String())
	require.True(t, FloorToDecimals(0.0004, 3).IsZero())
}

func TestRoundSignificant(t *testing.T) {
	require.Equal(t, 12346.0, RoundSignificant(12345.678, 5))
	require.Equal(t, 0.0012346, RoundSignificant(0.00123456, 5))
	require.Equal(t, 0.0, RoundSignificant(0, 5))
}

func TestApplySlippage(t *testing.T) {
	require.InDelta(t, 105, ApplySlippage(100, true, 0.05), 1e-9)
	require.InDelta(t, 95, ApplySlippage(100, false, 0.05), 1e-9)
}
