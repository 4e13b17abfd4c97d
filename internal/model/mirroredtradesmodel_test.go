package model

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/copytrade"
)

func newTestModel(t *testing.T) *customMirroredTradesModel {
	t.Helper()
	conn, db, err := Open(DialectSQLite, ":memory:", PoolConf{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	m := NewMirroredTradesModel(conn, DialectSQLite).(*customMirroredTradesModel)
	seq := 0
	m.newID = func() string {
		seq++
		return fmt.Sprintf("id-%02d", seq)
	}
	require.NoError(t, m.EnsureSchema(context.Background()))
	require.NoError(t, m.EnsureSchema(context.Background()), "schema creation is idempotent")
	return m
}

func sampleRecord(at time.Time) copytrade.TradeRecord {
	return copytrade.TradeRecord{
		Fill: copytrade.FillEvent{
			Coin: "BTC", Px: "50000", Sz: "0.1", Side: copytrade.SideBuy,
			Time: 1700000000000, Dir: "Open Long", Hash: "0xabc", Oid: 42,
		},
		Action: copytrade.ActionOpen,
		Result: copytrade.TradeResult{
			Success: true,
			OrderID: "777",
			Params: copytrade.CopyTradeParams{
				Coin: "BTC", Side: copytrade.SideBuy, Size: "0.01",
				OrderType: copytrade.OrderMarket, Leverage: 5,
			},
		},
		Price:      50010,
		OurEquity:  1000,
		RecordedAt: at,
	}
}

func TestRecordAndFind(t *testing.T) {
	m := newTestModel(t)
	ctx := context.Background()
	at := time.UnixMilli(1700000000123)

	require.NoError(t, m.Record(ctx, sampleRecord(at)))

	row, err := m.FindOne(ctx, "id-01")
	require.NoError(t, err)
	assert.Equal(t, at.UnixMilli(), row.RecordedAtMs)
	assert.Equal(t, "open", row.Action)
	assert.Equal(t, "BTC", row.Coin)
	assert.Equal(t, "B", row.Side)
	assert.Equal(t, "0.01", row.Size)
	assert.Equal(t, 50010.0, row.Price)
	assert.EqualValues(t, 5, row.Leverage)
	assert.False(t, row.ReduceOnly)
	assert.True(t, row.Success)
	assert.True(t, row.OrderId.Valid)
	assert.Equal(t, "777", row.OrderId.String)
	assert.False(t, row.Error.Valid)
	assert.Equal(t, "0xabc", row.FillHash)
	assert.EqualValues(t, 42, row.FillOid)
	assert.Equal(t, "Open Long", row.FillDir)
}

func TestRecordFailureFallsBackToFillCoin(t *testing.T) {
	m := newTestModel(t)
	ctx := context.Background()

	rec := sampleRecord(time.Time{})
	rec.Result = copytrade.TradeResult{Error: "equity unavailable"}
	m.now = func() time.Time { return time.UnixMilli(1700000009999) }
	require.NoError(t, m.Record(ctx, rec))

	row, err := m.FindOne(ctx, "id-01")
	require.NoError(t, err)
	assert.Equal(t, "BTC", row.Coin)
	assert.False(t, row.Success)
	assert.False(t, row.OrderId.Valid)
	assert.Equal(t, "equity unavailable", row.Error.String)
	assert.EqualValues(t, 1700000009999, row.RecordedAtMs)
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	m := newTestModel(t)
	ctx := context.Background()
	base := time.UnixMilli(1700000000000)
	for i := 0; i < 3; i++ {
		require.NoError(t, m.Record(ctx, sampleRecord(base.Add(time.Duration(i)*time.Second))))
	}

	rows, err := m.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "id-03", rows[0].Id)
	assert.Equal(t, "id-02", rows[1].Id)

	rows, err = m.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestFindOneMissingAndDelete(t *testing.T) {
	m := newTestModel(t)
	ctx := context.Background()

	_, err := m.FindOne(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Record(ctx, sampleRecord(time.UnixMilli(1))))
	require.NoError(t, m.Delete(ctx, "id-01"))
	_, err = m.FindOne(ctx, "id-01")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDialectRebind(t *testing.T) {
	q := "select a from t where b = ? and c = ? limit ?"
	assert.Equal(t, q, DialectSQLite.Rebind(q))
	assert.Equal(t, "select a from t where b = $1 and c = $2 limit $3", DialectPostgres.Rebind(q))
	assert.Equal(t, "pgx", DialectPostgres.DriverName())
	assert.Equal(t, "sqlite", DialectSQLite.DriverName())
	assert.Equal(t, "postgres", DialectPostgres.String())
}
