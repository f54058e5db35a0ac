package model

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/stores/builder"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
	"github.com/zeromicro/go-zero/core/stringx"
)

// insertBatchRows keeps one statement well under the 65535 bind limit.
const insertBatchRows = 1000

var (
	stockPricesFieldNames        = builder.RawFieldNames(&StockPrices{}, true)
	stockPricesRows              = strings.Join(stockPricesFieldNames, ",")
	stockPricesInsertFieldNames  = stringx.Remove(stockPricesFieldNames, "id", "created_at")
	stockPricesRowsExpectAutoSet = strings.Join(stockPricesInsertFieldNames, ",")
)

var _ StockPricesModel = (*customStockPricesModel)(nil)

type (
	// StockPricesModel is an interface to be customized, add more methods here,
	// and implement the added methods in customStockPricesModel.
	StockPricesModel interface {
		WithSession(session sqlx.Session) StockPricesModel
		InsertIgnoreConflicts(ctx context.Context, rows []*StockPrices) (int64, error)
		LastDate(ctx context.Context, stockID int64) (time.Time, bool, error)
		ExistsForDate(ctx context.Context, stockID int64, date time.Time) (bool, error)
		CountByStock(ctx context.Context, stockID int64) (int64, error)
		DeleteByStock(ctx context.Context, stockID int64) (int64, error)
		FindRange(ctx context.Context, stockID int64, from, to time.Time) ([]*StockPrices, error)
	}

	customStockPricesModel struct {
		conn  sqlx.SqlConn
		table string
	}

	StockPrices struct {
		Id            int64               `db:"id"`
		StockId       int64               `db:"stock_id"`
		Date          time.Time           `db:"date"`
		Open          decimal.Decimal     `db:"open"`
		High          decimal.Decimal     `db:"high"`
		Low           decimal.Decimal     `db:"low"`
		Close         decimal.Decimal     `db:"close"`
		Volume        int64               `db:"volume"`
		AdjustedClose decimal.NullDecimal `db:"adjusted_close"`
		CreatedAt     time.Time           `db:"created_at"`
	}
)

// NewStockPricesModel returns a model for the database table.
func NewStockPricesModel(conn sqlx.SqlConn) StockPricesModel {
	return &customStockPricesModel{
		conn:  conn,
		table: `"public"."stock_prices"`,
	}
}

func (m *customStockPricesModel) WithSession(session sqlx.Session) StockPricesModel {
	return NewStockPricesModel(sqlx.NewSqlConnFromSession(session))
}

// InsertIgnoreConflicts inserts rows in batches and skips (stock_id, date)
// pairs that already exist. It returns the number of rows written.
func (m *customStockPricesModel) InsertIgnoreConflicts(ctx context.Context, rows []*StockPrices) (int64, error) {
	var written int64
	for start := 0; start < len(rows); start += insertBatchRows {
		end := min(start+insertBatchRows, len(rows))
		query, args := m.insertStatement(rows[start:end])
		res, err := m.conn.ExecCtx(ctx, query, args...)
		if err != nil {
			return written, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return written, err
		}
		written += n
	}
	return written, nil
}

func (m *customStockPricesModel) insertStatement(rows []*StockPrices) (string, []any) {
	cols := len(stockPricesInsertFieldNames)
	var b strings.Builder
	fmt.Fprintf(&b, "insert into %s (%s) values ", m.table, stockPricesRowsExpectAutoSet)
	args := make([]any, 0, len(rows)*cols)
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := 0; c < cols; c++ {
			if c > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", i*cols+c+1)
		}
		b.WriteByte(')')
		args = append(args, row.StockId, row.Date, row.Open, row.High, row.Low, row.Close, row.Volume, row.AdjustedClose)
	}
	b.WriteString(" on conflict (stock_id, date) do nothing")
	return b.String(), args
}

func (m *customStockPricesModel) LastDate(ctx context.Context, stockID int64) (time.Time, bool, error) {
	query := fmt.Sprintf("select max(date) as last from %s where stock_id = $1", m.table)
	var resp struct {
		Last sql.NullTime `db:"last"`
	}
	if err := m.conn.QueryRowCtx(ctx, &resp, query, stockID); err != nil {
		return time.Time{}, false, err
	}
	return resp.Last.Time, resp.Last.Valid, nil
}

func (m *customStockPricesModel) ExistsForDate(ctx context.Context, stockID int64, date time.Time) (bool, error) {
	query := fmt.Sprintf("select exists(select 1 from %s where stock_id = $1 and date = $2)", m.table)
	var exists bool
	err := m.conn.QueryRowCtx(ctx, &exists, query, stockID, date)
	return exists, err
}

func (m *customStockPricesModel) CountByStock(ctx context.Context, stockID int64) (int64, error) {
	query := fmt.Sprintf("select count(*) from %s where stock_id = $1", m.table)
	var n int64
	err := m.conn.QueryRowCtx(ctx, &n, query, stockID)
	return n, err
}

func (m *customStockPricesModel) DeleteByStock(ctx context.Context, stockID int64) (int64, error) {
	query := fmt.Sprintf("delete from %s where stock_id = $1", m.table)
	res, err := m.conn.ExecCtx(ctx, query, stockID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (m *customStockPricesModel) FindRange(ctx context.Context, stockID int64, from, to time.Time) ([]*StockPrices, error) {
	query := fmt.Sprintf("select %s from %s where stock_id = $1 and date between $2 and $3 order by date", stockPricesRows, m.table)
	var resp []*StockPrices
	if err := m.conn.QueryRowsCtx(ctx, &resp, query, stockID, from, to); err != nil {
		return nil, err
	}
	return resp, nil
}
