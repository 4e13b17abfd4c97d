package stream

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/copytrade"
)

var pingMessage = []byte(`{"method":"ping"}`)

type subscribeRequest struct {
	Method       string       `json:"method"`
	Subscription subscription `json:"subscription"`
}

type subscription struct {
	Type string `json:"type"`
	User string `json:"user"`
}

type envelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type userFills struct {
	IsSnapshot bool             `json:"isSnapshot"`
	User       string           `json:"user"`
	Fills      []map[string]any `json:"fills"`
}

func decodeUserFills(data json.RawMessage) (userFills, error) {
	var out userFills
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	err := dec.Decode(&out)
	return out, err
}

// normalizeFill maps a raw fill onto FillEvent, defaulting anything missing
// or mistyped instead of failing.
func normalizeFill(raw map[string]any) copytrade.FillEvent {
	side := copytrade.SideSell
	if text(raw["side"]) == string(copytrade.SideBuy) {
		side = copytrade.SideBuy
	}
	crossed, _ := raw["crossed"].(bool)
	return copytrade.FillEvent{
		Coin:          text(raw["coin"]),
		Px:            decimalText(raw["px"]),
		Sz:            decimalText(raw["sz"]),
		Side:          side,
		Time:          integer(raw["time"]),
		StartPosition: decimalText(raw["startPosition"]),
		Dir:           text(raw["dir"]),
		ClosedPnl:     decimalText(raw["closedPnl"]),
		Hash:          text(raw["hash"]),
		Oid:           integer(raw["oid"]),
		Crossed:       crossed,
		Fee:           decimalText(raw["fee"]),
	}
}

func text(v any) string {
	s, _ := v.(string)
	return s
}

func decimalText(v any) string {
	switch n := v.(type) {
	case string:
		if s := strings.TrimSpace(n); s != "" {
			return s
		}
	case json.Number:
		return n.String()
	}
	return "0"
}

func integer(v any) int64 {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return int64(f)
		}
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
			return i
		}
	}
	return 0
}
