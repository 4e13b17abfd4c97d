package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/copytrade"
	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/exchange"
)

// RenderDrift prints a drift report as a position table followed by the
// resting orders of both accounts.
func RenderDrift(w io.Writer, report *copytrade.DriftReport) error {
	if report == nil {
		_, err := fmt.Fprintln(w, "no drift report")
		return err
	}

	fmt.Fprintf(w, "\nDrift report %s\n", report.Timestamp.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "Equity: ours $%.2f • target $%.2f • ratio %.6f\n\n", report.OurEquity, report.TargetEquity, report.Ratio)

	table := tablewriter.NewWriter(w)
	table.Header("Coin", "Ours", "Target", "Scaled target", "Difference", "Drift")
	for _, row := range report.Rows {
		if err := table.Append(
			row.Coin,
			formatSize(row.OurSize),
			formatSize(row.TargetSize),
			formatSize(row.ScaledTarget),
			formatSize(row.Difference),
			fmt.Sprintf("%.2f%%", row.DriftPct),
		); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	fmt.Fprintf(w, "Open orders: ours %d • target %d\n", len(report.OurOrders), len(report.TargetOrders))
	if len(report.OurOrders)+len(report.TargetOrders) == 0 {
		return nil
	}
	orders := tablewriter.NewWriter(w)
	orders.Header("Account", "Coin", "Side", "Price", "Size", "Reduce only")
	for _, set := range []struct {
		label  string
		orders []exchange.OrderInfo
	}{
		{"ours", report.OurOrders},
		{"target", report.TargetOrders},
	} {
		for _, o := range set.orders {
			if err := orders.Append(set.label, o.Coin, o.Side, o.LimitPx, o.Sz, fmt.Sprintf("%t", o.ReduceOnly)); err != nil {
				return err
			}
		}
	}
	return orders.Render()
}

func formatSize(v float64) string {
	return fmt.Sprintf("%.6g", v)
}
