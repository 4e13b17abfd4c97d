package copytrade

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/errkit"
)

func defaultRisk() RiskConfig {
	return RiskConfig{
		SizeMultiplier:     1,
		MaxLeverage:        20,
		MaxPositionPercent: 50,
		MinNotional:        10,
	}
}

func TestRiskEngine_Size(t *testing.T) {
	engine := NewRiskEngine(defaultRisk())

	size, ok := engine.Size(10, 1000, 10000)
	require.True(t, ok)
	assert.InDelta(t, 1.0, size, 1e-12)

	// capped at ourEquity * 50%
	size, ok = engine.Size(1e9, 1000, 1000)
	require.True(t, ok)
	assert.Equal(t, 500.0, size)

	// zero target equity falls back to target size, still capped
	size, ok = engine.Size(3, 1000, 0)
	require.True(t, ok)
	assert.Equal(t, 3.0, size)
	size, ok = engine.Size(3000, 1000, 0)
	require.True(t, ok)
	assert.Equal(t, 500.0, size)
}

func TestRiskEngine_SizeIsLinear(t *testing.T) {
	engine := NewRiskEngine(defaultRisk())
	for _, target := range []float64{0.001, 0.5, 3, 17.25} {
		one, ok := engine.Size(target, 5000, 5000)
		require.True(t, ok)
		two, ok := engine.Size(2*target, 5000, 5000)
		require.True(t, ok)
		assert.InDelta(t, 2*one, two, 1e-9)
	}
}

func TestRiskEngine_SizeNeverExceedsCap(t *testing.T) {
	engine := NewRiskEngine(defaultRisk())
	for _, target := range []float64{1, 100, 1e6, 1e12} {
		for _, targetEquity := range []float64{0, 1, 1000, 1e9} {
			size, ok := engine.Size(target, 2000, targetEquity)
			if ok {
				assert.LessOrEqual(t, size, 1000.0)
			}
		}
	}
}

func TestRiskEngine_SizeNoTrade(t *testing.T) {
	tests := []struct {
		name                          string
		multiplier                    float64
		target, ourEquity, targetEqty float64
	}{
		{name: "zero multiplier", multiplier: 0, target: 1, ourEquity: 1000, targetEqty: 1000},
		{name: "zero target size", multiplier: 1, target: 0, ourEquity: 1000, targetEqty: 1000},
		{name: "negative equity", multiplier: 1, target: 1, ourEquity: -10, targetEqty: 1000},
		{name: "nan", multiplier: 1, target: math.NaN(), ourEquity: 1000, targetEqty: 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultRisk()
			cfg.SizeMultiplier = tt.multiplier
			_, ok := NewRiskEngine(cfg).Size(tt.target, tt.ourEquity, tt.targetEqty)
			assert.False(t, ok)
		})
	}
}

func TestRiskEngine_CapLeverage(t *testing.T) {
	engine := NewRiskEngine(defaultRisk())
	assert.Equal(t, 1, engine.CapLeverage(0))
	assert.Equal(t, 5, engine.CapLeverage(5))
	assert.Equal(t, 20, engine.CapLeverage(50))
}

func TestRiskEngine_Validate(t *testing.T) {
	cfg := defaultRisk()
	cfg.BlockedAssets = []string{" doge ", "xyz", ""}
	engine := NewRiskEngine(cfg)

	tests := []struct {
		name     string
		params   CopyTradeParams
		price    string
		equity   float64
		wantCode string
	}{
		{name: "ok", params: CopyTradeParams{Coin: "BTC", Size: "0.001", Leverage: 5}, price: "20000", equity: 1000},
		{name: "blocked lower case", params: CopyTradeParams{Coin: "doge", Size: "1000", Leverage: 1}, price: "1", equity: 1e6, wantCode: errkit.CodeBlockedAsset},
		{name: "blocked wins over other failures", params: CopyTradeParams{Coin: "XYZ", Size: "0", Leverage: 99}, price: "1", equity: 0, wantCode: errkit.CodeBlockedAsset},
		{name: "below min notional", params: CopyTradeParams{Coin: "BTC", Size: "0.0001", Leverage: 1}, price: "20000", equity: 1000, wantCode: errkit.CodeBelowMinNotional},
		{name: "exactly min notional", params: CopyTradeParams{Coin: "BTC", Size: "0.5", Leverage: 1}, price: "20", equity: 1000},
		{name: "unparsable price", params: CopyTradeParams{Coin: "BTC", Size: "1", Leverage: 1}, price: "n/a", equity: 1000, wantCode: errkit.CodeBelowMinNotional},
		{name: "leverage too high", params: CopyTradeParams{Coin: "BTC", Size: "1", Leverage: 21}, price: "100", equity: 1000, wantCode: errkit.CodeLeverageTooHigh},
		{name: "position too large", params: CopyTradeParams{Coin: "BTC", Size: "6", Leverage: 1}, price: "100", equity: 1000, wantCode: errkit.CodePositionTooLarge},
		{name: "position at cap", params: CopyTradeParams{Coin: "BTC", Size: "5", Leverage: 1}, price: "100", equity: 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := engine.Validate(tt.params, tt.price, tt.equity)
			if tt.wantCode == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, errkit.CodeOf(err))
			assert.Equal(t, errkit.KindValidation, errkit.KindOf(err))
			assert.False(t, errkit.IsRetryable(err))
		})
	}
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "1", FormatSize(1.0))
	assert.Equal(t, "0.1", FormatSize(0.1))
	assert.Equal(t, "0.12345679", FormatSize(0.123456789))
	assert.Equal(t, "0.3", FormatSize(0.1+0.2))
}
