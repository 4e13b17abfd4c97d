package copytrade

import (
	"context"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/errkit"
	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/exchange"
)

// DriftSource is what the drift report needs to read from both accounts.
type DriftSource interface {
	Address() string
	GetAccountEquity(ctx context.Context, address string) (exchange.AccountEquity, error)
	GetPositions(ctx context.Context, address string) ([]exchange.Position, error)
	GetOpenOrders(ctx context.Context, address string) ([]exchange.OrderInfo, error)
}

// DriftRow compares one coin across the two accounts.
type DriftRow struct {
	Coin         string  `json:"coin"`
	OurSize      float64 `json:"ourSize"`
	TargetSize   float64 `json:"targetSize"`
	ScaledTarget float64 `json:"scaledTarget"`
	Difference   float64 `json:"difference"`
	DriftPct     float64 `json:"driftPct"`
}

// DriftReport shows how far the controlled account has drifted from an
// equity-scaled copy of the observed one.
type DriftReport struct {
	Timestamp       time.Time            `json:"timestamp"`
	OurEquity       float64              `json:"ourEquity"`
	TargetEquity    float64              `json:"targetEquity"`
	Ratio           float64              `json:"ratio"`
	Rows            []DriftRow           `json:"rows"`
	OurPositions    []exchange.Position  `json:"ourPositions"`
	TargetPositions []exchange.Position  `json:"targetPositions"`
	OurOrders       []exchange.OrderInfo `json:"ourOrders"`
	TargetOrders    []exchange.OrderInfo `json:"targetOrders"`
}

// BuildDriftReport reads both accounts concurrently and compares positions.
func BuildDriftReport(ctx context.Context, src DriftSource, target string, multiplier float64, now time.Time) (*DriftReport, error) {
	our := src.Address()
	report := &DriftReport{Timestamp: now}

	var ourEq, targetEq exchange.AccountEquity
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { ourEq, err = src.GetAccountEquity(gctx, our); return })
	g.Go(func() (err error) { targetEq, err = src.GetAccountEquity(gctx, target); return })
	g.Go(func() (err error) { report.OurPositions, err = src.GetPositions(gctx, our); return })
	g.Go(func() (err error) { report.TargetPositions, err = src.GetPositions(gctx, target); return })
	g.Go(func() (err error) { report.OurOrders, err = src.GetOpenOrders(gctx, our); return })
	g.Go(func() (err error) { report.TargetOrders, err = src.GetOpenOrders(gctx, target); return })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var err error
	if report.OurEquity, err = ourEq.Value(); err != nil {
		return nil, errkit.Wrap(err, errkit.KindValidation, errkit.CodeInvalidEquity, "our equity")
	}
	if report.TargetEquity, err = targetEq.Value(); err != nil {
		return nil, errkit.Wrap(err, errkit.KindValidation, errkit.CodeInvalidEquity, "target equity")
	}
	if multiplier <= 0 {
		multiplier = 1
	}
	report.Ratio = multiplier
	if report.TargetEquity != 0 {
		report.Ratio = report.OurEquity / report.TargetEquity * multiplier
	}

	sizes := make(map[string]*DriftRow)
	row := func(coin string) *DriftRow {
		r, ok := sizes[coin]
		if !ok {
			r = &DriftRow{Coin: coin}
			sizes[coin] = r
		}
		return r
	}
	for _, p := range report.OurPositions {
		row(p.Coin).OurSize = p.Size()
	}
	for _, p := range report.TargetPositions {
		row(p.Coin).TargetSize = p.Size()
	}
	for _, r := range sizes {
		r.ScaledTarget = r.TargetSize * report.Ratio
		r.Difference = r.OurSize - r.ScaledTarget
		switch {
		case r.ScaledTarget != 0:
			r.DriftPct = r.Difference / math.Abs(r.ScaledTarget) * 100
		case r.OurSize != 0:
			r.DriftPct = 100
		}
		report.Rows = append(report.Rows, *r)
	}
	sort.Slice(report.Rows, func(i, j int) bool { return report.Rows[i].Coin < report.Rows[j].Coin })
	return report, nil
}
