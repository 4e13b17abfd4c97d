package copytrade

import (
	"math"
	"strconv"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/errkit"
	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/exchange"
)

// RiskConfig holds the sizing and validation limits.
type RiskConfig struct {
	SizeMultiplier     float64  `json:",default=1.0"`
	MaxLeverage        int      `json:",default=20"`
	MaxPositionPercent float64  `json:",default=50"`
	MinNotional        float64  `json:",default=10"`
	BlockedAssets      []string `json:",optional"`
}

// RiskEngine sizes and validates trades. It performs no I/O.
type RiskEngine struct {
	cfg     RiskConfig
	blocked map[string]struct{}
}

// NewRiskEngine normalises the block list to upper case.
func NewRiskEngine(cfg RiskConfig) *RiskEngine {
	blocked := make(map[string]struct{}, len(cfg.BlockedAssets))
	for _, asset := range cfg.BlockedAssets {
		if asset = strings.ToUpper(strings.TrimSpace(asset)); asset != "" {
			blocked[asset] = struct{}{}
		}
	}
	return &RiskEngine{cfg: cfg, blocked: blocked}
}

// Config returns the limits in force.
func (r *RiskEngine) Config() RiskConfig { return r.cfg }

// MaxNotional is the equity-based cap on one position.
func (r *RiskEngine) MaxNotional(ourEquity float64) float64 {
	return ourEquity * r.cfg.MaxPositionPercent / 100
}

// Size scales the observed fill by the equity ratio and the multiplier,
// capped at MaxNotional(ourEquity). ok is false when the result is not a
// positive finite number, meaning no trade should be placed.
func (r *RiskEngine) Size(targetSize, ourEquity, targetEquity float64) (size float64, ok bool) {
	if targetEquity == 0 {
		logx.Infof("copytrade: target equity is zero, sizing from target size directly")
		size = targetSize * r.cfg.SizeMultiplier
	} else {
		size = (ourEquity / targetEquity) * targetSize * r.cfg.SizeMultiplier
	}
	size = math.Min(size, r.MaxNotional(ourEquity))
	if size <= 0 || math.IsNaN(size) || math.IsInf(size, 0) {
		return 0, false
	}
	return size, true
}

// CapLeverage clamps leverage into [1, MaxLeverage].
func (r *RiskEngine) CapLeverage(leverage int) int {
	if leverage < 1 {
		return 1
	}
	if r.cfg.MaxLeverage > 0 && leverage > r.cfg.MaxLeverage {
		return r.cfg.MaxLeverage
	}
	return leverage
}

// IsBlocked reports whether coin is on the block list, ignoring case.
func (r *RiskEngine) IsBlocked(coin string) bool {
	_, ok := r.blocked[strings.ToUpper(strings.TrimSpace(coin))]
	return ok
}

// Validate rejects params that break a limit. Checks run in a fixed order:
// block list, minimum notional, leverage, maximum position value.
func (r *RiskEngine) Validate(params CopyTradeParams, price string, ourEquity float64) error {
	if r.IsBlocked(params.Coin) {
		return errkit.Validation(errkit.CodeBlockedAsset, "asset %s is blocked", params.Coin).
			With("coin", params.Coin)
	}

	size, _ := strconv.ParseFloat(params.Size, 64)
	px, _ := strconv.ParseFloat(strings.TrimSpace(price), 64)
	notional := size * px
	if !(notional >= r.cfg.MinNotional) {
		return errkit.Validation(errkit.CodeBelowMinNotional, "position size %s * %s < %v minimum",
			params.Size, price, r.cfg.MinNotional).
			With("notional", notional)
	}
	if params.Leverage > r.cfg.MaxLeverage {
		return errkit.Validation(errkit.CodeLeverageTooHigh, "leverage %d exceeds max %d",
			params.Leverage, r.cfg.MaxLeverage).
			With("leverage", params.Leverage)
	}
	if maxAllowed := r.MaxNotional(ourEquity); notional > maxAllowed {
		return errkit.Validation(errkit.CodePositionTooLarge, "position value %v exceeds %v max",
			notional, maxAllowed).
			With("notional", notional)
	}
	return nil
}

// FormatSize renders a size with at most eight decimals and no trailing zeros.
func FormatSize(size float64) string {
	return exchange.FormatDecimal(size, 8)
}
