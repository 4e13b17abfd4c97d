package model

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/copytrade"
)

var _ MirroredTradesModel = (*customMirroredTradesModel)(nil)

const mirroredTradesSchema = `
create table if not exists mirrored_trades (
    id             text primary key,
    recorded_at_ms bigint not null,
    action         text not null,
    coin           text not null,
    side           text not null,
    size           text not null,
    price          double precision not null default 0,
    leverage       integer not null default 0,
    reduce_only    boolean not null default false,
    dry_run        boolean not null default false,
    success        boolean not null default false,
    order_id       text,
    error          text,
    our_equity     double precision not null default 0,
    fill_hash      text not null default '',
    fill_oid       bigint not null default 0,
    fill_px        text not null default '0',
    fill_sz        text not null default '0',
    fill_dir       text not null default '',
    fill_time_ms   bigint not null default 0
)`

const mirroredTradesIndex = `create index if not exists mirrored_trades_coin_recorded_idx on mirrored_trades (coin, recorded_at_ms)`

type (
	// MirroredTradesModel is an interface to be customized, add more methods here,
	// and implement the added methods in customMirroredTradesModel.
	MirroredTradesModel interface {
		mirroredTradesModel
		copytrade.Recorder
		EnsureSchema(ctx context.Context) error
		Recent(ctx context.Context, limit int) ([]*MirroredTrades, error)
	}

	customMirroredTradesModel struct {
		*defaultMirroredTradesModel
		now   func() time.Time
		newID func() string
	}
)

// NewMirroredTradesModel returns a model for the mirrored_trades table.
func NewMirroredTradesModel(conn sqlx.SqlConn, dialect Dialect) MirroredTradesModel {
	return &customMirroredTradesModel{
		defaultMirroredTradesModel: newMirroredTradesModel(conn, dialect),
		now:                        time.Now,
		newID:                      uuid.NewString,
	}
}

// EnsureSchema creates the table and its index when missing.
func (m *customMirroredTradesModel) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{mirroredTradesSchema, mirroredTradesIndex} {
		if _, err := m.conn.ExecCtx(ctx, stmt); err != nil {
			return fmt.Errorf("mirrored_trades.EnsureSchema: %w", err)
		}
	}
	return nil
}

// Record implements copytrade.Recorder.
func (m *customMirroredTradesModel) Record(ctx context.Context, rec copytrade.TradeRecord) error {
	if _, err := m.Insert(ctx, m.rowFromRecord(rec)); err != nil {
		return fmt.Errorf("mirrored_trades.Record insert: %w", err)
	}
	return nil
}

// Recent returns the latest rows, newest first. Limit defaults to 100 when
// non-positive.
func (m *customMirroredTradesModel) Recent(ctx context.Context, limit int) ([]*MirroredTrades, error) {
	if limit <= 0 {
		limit = 100
	}
	query := m.dialect.Rebind(fmt.Sprintf("select %s from %s order by recorded_at_ms desc, id limit ?",
		mirroredTradesRows, m.tableName()))
	var rows []*MirroredTrades
	if err := m.conn.QueryRowsCtx(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("mirrored_trades.Recent query: %w", err)
	}
	return rows, nil
}

func (m *customMirroredTradesModel) rowFromRecord(rec copytrade.TradeRecord) *MirroredTrades {
	recordedAt := rec.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = m.now()
	}
	params := rec.Result.Params
	coin := params.Coin
	if coin == "" {
		coin = rec.Fill.Coin
	}
	return &MirroredTrades{
		Id:           m.newID(),
		RecordedAtMs: recordedAt.UnixMilli(),
		Action:       string(rec.Action),
		Coin:         coin,
		Side:         string(params.Side),
		Size:         params.Size,
		Price:        rec.Price,
		Leverage:     int64(params.Leverage),
		ReduceOnly:   params.ReduceOnly,
		DryRun:       rec.DryRun,
		Success:      rec.Result.Success,
		OrderId:      nullString(rec.Result.OrderID),
		Error:        nullString(rec.Result.Error),
		OurEquity:    rec.OurEquity,
		FillHash:     rec.Fill.Hash,
		FillOid:      rec.Fill.Oid,
		FillPx:       rec.Fill.Px,
		FillSz:       rec.Fill.Sz,
		FillDir:      rec.Fill.Dir,
		FillTimeMs:   rec.Fill.Time,
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
