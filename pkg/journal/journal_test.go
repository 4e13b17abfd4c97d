package journal

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/copytrade"
)

func TestWriterRecordsTrades(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "journal")
	w, err := NewWriter(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, w.Dir())

	at := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	params := copytrade.CopyTradeParams{Coin: "BTC", Side: copytrade.SideBuy, Size: "0.1", OrderType: copytrade.OrderMarket, Leverage: 3}
	rec := copytrade.TradeRecord{
		Fill:       copytrade.FillEvent{Coin: "BTC", Px: "50000", Sz: "1", Hash: "0xabc"},
		Action:     copytrade.ActionOpen,
		Result:     copytrade.TradeResult{Success: true, OrderID: "42", Params: params},
		Price:      50000,
		OurEquity:  1000,
		RecordedAt: at,
	}
	require.NoError(t, w.Record(context.Background(), rec))

	path, err := w.Write(copytrade.TradeRecord{Action: copytrade.ActionClose, Result: copytrade.TradeResult{Error: "rejected"}, RecordedAt: at})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "trade_20250203_040506_00002.json"), path)

	data, err := os.ReadFile(filepath.Join(dir, "trade_20250203_040506_00001.json"))
	require.NoError(t, err)
	var entry Entry
	require.NoError(t, json.Unmarshal(data, &entry))
	_, err = uuid.Parse(entry.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Seq)
	assert.Equal(t, copytrade.ActionOpen, entry.Action)
	assert.Equal(t, params, entry.Params)
	assert.Equal(t, "42", entry.OrderID)
	assert.Equal(t, "0xabc", entry.Fill.Hash)
	assert.True(t, entry.Success)
}

func TestWriterFillsTimestamp(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	require.NoError(t, err)
	w.nowFn = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	w.newID = func() string { return "fixed" }

	path, err := w.Write(copytrade.TradeRecord{})
	require.NoError(t, err)
	assert.Equal(t, "trade_20250101_000000_00001.json", filepath.Base(path))
}
