package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = sqlx.ErrNotFound

var mirroredTradesRows = strings.Join([]string{
	"id", "recorded_at_ms", "action", "coin", "side", "size", "price", "leverage",
	"reduce_only", "dry_run", "success", "order_id", "error", "our_equity",
	"fill_hash", "fill_oid", "fill_px", "fill_sz", "fill_dir", "fill_time_ms",
}, ",")

type (
	mirroredTradesModel interface {
		Insert(ctx context.Context, data *MirroredTrades) (sql.Result, error)
		FindOne(ctx context.Context, id string) (*MirroredTrades, error)
		Delete(ctx context.Context, id string) error
	}

	defaultMirroredTradesModel struct {
		conn    sqlx.SqlConn
		table   string
		dialect Dialect
	}

	MirroredTrades struct {
		Id           string         `db:"id"`
		RecordedAtMs int64          `db:"recorded_at_ms"`
		Action       string         `db:"action"`
		Coin         string         `db:"coin"`
		Side         string         `db:"side"`
		Size         string         `db:"size"`
		Price        float64        `db:"price"`
		Leverage     int64          `db:"leverage"`
		ReduceOnly   bool           `db:"reduce_only"`
		DryRun       bool           `db:"dry_run"`
		Success      bool           `db:"success"`
		OrderId      sql.NullString `db:"order_id"`
		Error        sql.NullString `db:"error"`
		OurEquity    float64        `db:"our_equity"`
		FillHash     string         `db:"fill_hash"`
		FillOid      int64          `db:"fill_oid"`
		FillPx       string         `db:"fill_px"`
		FillSz       string         `db:"fill_sz"`
		FillDir      string         `db:"fill_dir"`
		FillTimeMs   int64          `db:"fill_time_ms"`
	}
)

func newMirroredTradesModel(conn sqlx.SqlConn, dialect Dialect) *defaultMirroredTradesModel {
	return &defaultMirroredTradesModel{
		conn:    conn,
		table:   "mirrored_trades",
		dialect: dialect,
	}
}

func (m *defaultMirroredTradesModel) Insert(ctx context.Context, data *MirroredTrades) (sql.Result, error) {
	query := m.dialect.Rebind(fmt.Sprintf("insert into %s (%s) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		m.table, mirroredTradesRows))
	return m.conn.ExecCtx(ctx, query,
		data.Id, data.RecordedAtMs, data.Action, data.Coin, data.Side, data.Size, data.Price, data.Leverage,
		data.ReduceOnly, data.DryRun, data.Success, data.OrderId, data.Error, data.OurEquity,
		data.FillHash, data.FillOid, data.FillPx, data.FillSz, data.FillDir, data.FillTimeMs)
}

func (m *defaultMirroredTradesModel) FindOne(ctx context.Context, id string) (*MirroredTrades, error) {
	query := m.dialect.Rebind(fmt.Sprintf("select %s from %s where id = ? limit 1", mirroredTradesRows, m.table))
	var resp MirroredTrades
	err := m.conn.QueryRowCtx(ctx, &resp, query, id)
	switch {
	case err == nil:
		return &resp, nil
	case errors.Is(err, sqlx.ErrNotFound):
		return nil, ErrNotFound
	default:
		return nil, err
	}
}

func (m *defaultMirroredTradesModel) Delete(ctx context.Context, id string) error {
	query := m.dialect.Rebind(fmt.Sprintf("delete from %s where id = ?", m.table))
	_, err := m.conn.ExecCtx(ctx, query, id)
	return err
}

func (m *defaultMirroredTradesModel) tableName() string {
	return m.table
}
