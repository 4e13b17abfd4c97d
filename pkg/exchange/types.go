package exchange

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Wire types shared by venue implementations. Numeric fields stay strings as
// delivered by Hyperliquid to avoid precision loss; helpers parse on demand.

// Position captures live position details.
type Position struct {
	Coin           string   `json:"coin"`
	Szi            string   `json:"szi"` // signed, positive = long
	EntryPx        string   `json:"entryPx"`
	PositionValue  string   `json:"positionValue"`
	Leverage       Leverage `json:"leverage"`
	LiquidationPx  string   `json:"liquidationPx,omitempty"`
	MarginUsed     string   `json:"marginUsed"`
	ReturnOnEquity string   `json:"returnOnEquity"`
	UnrealizedPnl  string   `json:"unrealizedPnl"`
}

// Size returns the signed position size, zero when unparsable.
func (p Position) Size() float64 {
	return parseOrZero(p.Szi)
}

// Leverage contains leverage settings for an instrument.
type Leverage struct {
	Type  string `json:"type"` // cross or isolated
	Value int    `json:"value"`
}

// AssetPosition is one entry of clearinghouseState.assetPositions.
type AssetPosition struct {
	Type     string   `json:"type"`
	Position Position `json:"position"`
}

// AccountState summarizes a trading account.
type AccountState struct {
	MarginSummary              MarginSummary   `json:"marginSummary"`
	CrossMarginSummary         MarginSummary   `json:"crossMarginSummary"`
	CrossMaintenanceMarginUsed string          `json:"crossMaintenanceMarginUsed"`
	Withdrawable               string          `json:"withdrawable"`
	AssetPositions             []AssetPosition `json:"assetPositions"`
	Time                       int64           `json:"time"`
}

// MarginSummary consolidates margin metrics.
type MarginSummary struct {
	AccountValue    string `json:"accountValue"`
	TotalMarginUsed string `json:"totalMarginUsed"`
	TotalNtlPos     string `json:"totalNtlPos"`
	TotalRawUSD     string `json:"totalRawUsd"`
}

// Positions flattens assetPositions.
func (s *AccountState) Positions() []Position {
	if s == nil {
		return nil
	}
	out := make([]Position, 0, len(s.AssetPositions))
	for _, ap := range s.AssetPositions {
		out = append(out, ap.Position)
	}
	return out
}

// Equity projects the equity summary of the account.
func (s *AccountState) Equity() AccountEquity {
	if s == nil {
		return AccountEquity{}
	}
	return AccountEquity{
		AccountValue:               s.MarginSummary.AccountValue,
		TotalMarginUsed:            s.MarginSummary.TotalMarginUsed,
		TotalNtlPos:                s.MarginSummary.TotalNtlPos,
		TotalRawUSD:                s.MarginSummary.TotalRawUSD,
		CrossMaintenanceMarginUsed: s.CrossMaintenanceMarginUsed,
		CrossMarginSummary:         s.CrossMarginSummary,
	}
}

// AccountEquity is the per-fill equity snapshot of one account.
type AccountEquity struct {
	AccountValue               string        `json:"accountValue"`
	TotalMarginUsed            string        `json:"totalMarginUsed"`
	TotalNtlPos                string        `json:"totalNtlPos"`
	TotalRawUSD                string        `json:"totalRawUsd"`
	CrossMaintenanceMarginUsed string        `json:"crossMaintenanceMarginUsed"`
	CrossMarginSummary         MarginSummary `json:"crossMarginSummary"`
}

// Value parses the account value. NaN and infinities are rejected.
func (e AccountEquity) Value() (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(e.AccountValue), 64)
	if err != nil {
		return 0, fmt.Errorf("exchange: parse account value %q: %w", e.AccountValue, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("exchange: account value %q is not finite", e.AccountValue)
	}
	return v, nil
}

// OrderInfo stores metadata about a resting order.
type OrderInfo struct {
	Coin       string `json:"coin"`
	Side       string `json:"side"`
	LimitPx    string `json:"limitPx"`
	Sz         string `json:"sz"`
	Oid        int64  `json:"oid"`
	Timestamp  int64  `json:"timestamp"`
	OrigSz     string `json:"origSz"`
	Cloid      string `json:"cloid,omitempty"`
	ReduceOnly bool   `json:"reduceOnly"`
}

// OrderResponse captures the standard exchange response after an order submission.
type OrderResponse struct {
	Status   string            `json:"status"` // ok or err
	Response OrderResponseData `json:"response"`
}

// OrderResponseData wraps the response payload.
type OrderResponseData struct {
	Type string                  `json:"type"`
	Data OrderResponseDataDetail `json:"data"`
}

// OrderResponseDataDetail contains the per-order statuses.
type OrderResponseDataDetail struct {
	Statuses []OrderStatusResponse `json:"statuses"`
}

// OrderStatusResponse tracks the status of an individual order request.
type OrderStatusResponse struct {
	Resting *RestingOrder `json:"resting,omitempty"`
	Filled  *FilledOrder  `json:"filled,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// RestingOrder represents an order that is currently resting on the book.
type RestingOrder struct {
	Oid int64 `json:"oid"`
}

// FilledOrder represents a fully matched order.
type FilledOrder struct {
	TotalSz string `json:"totalSz"`
	AvgPx   string `json:"avgPx"`
	Oid     int64  `json:"oid"`
}

func parseOrZero(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
