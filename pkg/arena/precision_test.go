package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundSize(t *testing.T) {
	pair := TradingPair{SizePrecision: 3}
	assert.Equal(t, 1.234, RoundSize(1.23499, pair))
	assert.Equal(t, 0.0, RoundSize(0.0009, pair))
	assert.Equal(t, 12.0, RoundSize(12.9, TradingPair{SizePrecision: 0}))
}

func TestRoundPrice(t *testing.T) {
	tests := []struct {
		name      string
		price     float64
		precision int32
		want      float64
	}{
		{name: "large price keeps five figures", price: 12345.678, precision: 1, want: 12346},
		{name: "snaps to tick", price: 1.234567, precision: 3, want: 1.235},
		{name: "small price", price: 0.000123456, precision: 6, want: 0.000123},
		{name: "zero", price: 0, precision: 2, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, RoundPrice(tt.price, TradingPair{PricePrecision: tt.precision}), 1e-12)
		})
	}
}
