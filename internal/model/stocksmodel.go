package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/zeromicro/go-zero/core/stores/builder"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
	"github.com/zeromicro/go-zero/core/stringx"
)

var (
	stocksFieldNames          = builder.RawFieldNames(&Stocks{}, true)
	stocksRows                = strings.Join(stocksFieldNames, ",")
	stocksRowsExpectAutoSet   = strings.Join(stringx.Remove(stocksFieldNames, "id", "created_at", "updated_at"), ",")
	stocksRowsWithPlaceHolder = builder.PostgreSqlJoin(stringx.Remove(stocksFieldNames, "id", "created_at", "updated_at"))
)

var _ StocksModel = (*customStocksModel)(nil)

type (
	// StocksModel is an interface to be customized, add more methods here,
	// and implement the added methods in customStocksModel.
	StocksModel interface {
		stocksModel
		WithSession(session sqlx.Session) StocksModel
		FindOneBySymbol(ctx context.Context, symbol string) (*Stocks, error)
		InsertPlaceholder(ctx context.Context, data *Stocks) (int64, error)
		UpdateSyncDates(ctx context.Context, id int64, earliest, lastUpdate sql.NullTime) error
		FindActiveSymbols(ctx context.Context) ([]string, error)
		FindCoverage(ctx context.Context, symbols []string) ([]*StockCoverage, error)
	}

	stocksModel interface {
		FindOne(ctx context.Context, id int64) (*Stocks, error)
		Update(ctx context.Context, data *Stocks) error
		Delete(ctx context.Context, id int64) error
	}

	customStocksModel struct {
		conn  sqlx.SqlConn
		table string
	}

	Stocks struct {
		Id              int64          `db:"id"`
		Symbol          string         `db:"symbol"`
		Name            string         `db:"name"`
		AssetType       string         `db:"asset_type"`
		Sector          sql.NullString `db:"sector"`
		Industry        sql.NullString `db:"industry"`
		Exchange        sql.NullString `db:"exchange"`
		IpoDate         sql.NullTime   `db:"ipo_date"`          // earliest stored trading day
		LastPriceUpdate sql.NullTime   `db:"last_price_update"` // end date of the last sync
		IsActive        bool           `db:"is_active"`
		CreatedAt       time.Time      `db:"created_at"`
		UpdatedAt       time.Time      `db:"updated_at"`
	}
)

// NewStocksModel returns a model for the database table.
func NewStocksModel(conn sqlx.SqlConn) StocksModel {
	return &customStocksModel{
		conn:  conn,
		table: `"public"."stocks"`,
	}
}

func (m *customStocksModel) WithSession(session sqlx.Session) StocksModel {
	return NewStocksModel(sqlx.NewSqlConnFromSession(session))
}

func (m *customStocksModel) FindOne(ctx context.Context, id int64) (*Stocks, error) {
	query := fmt.Sprintf("select %s from %s where id = $1 limit 1", stocksRows, m.table)
	var resp Stocks
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

func (m *customStocksModel) FindOneBySymbol(ctx context.Context, symbol string) (*Stocks, error) {
	query := fmt.Sprintf("select %s from %s where symbol = $1 limit 1", stocksRows, m.table)
	var resp Stocks
	err := m.conn.QueryRowCtx(ctx, &resp, query, symbol)
	switch {
	case err == nil:
		return &resp, nil
	case errors.Is(err, sqlx.ErrNotFound):
		return nil, ErrNotFound
	default:
		return nil, err
	}
}

// InsertPlaceholder creates the row and returns its id. A concurrent insert
// of the same symbol surfaces as a unique violation.
func (m *customStocksModel) InsertPlaceholder(ctx context.Context, data *Stocks) (int64, error) {
	query := fmt.Sprintf("insert into %s (%s) values ($1, $2, $3, $4, $5, $6, $7, $8, $9) returning id", m.table, stocksRowsExpectAutoSet)
	var id int64
	err := m.conn.QueryRowCtx(ctx, &id, query, data.Symbol, data.Name, data.AssetType, data.Sector, data.Industry,
		data.Exchange, data.IpoDate, data.LastPriceUpdate, data.IsActive)
	return id, err
}

func (m *customStocksModel) Update(ctx context.Context, data *Stocks) error {
	query := fmt.Sprintf("update %s set %s, updated_at = now() where id = $1", m.table, stocksRowsWithPlaceHolder)
	_, err := m.conn.ExecCtx(ctx, query, data.Id, data.Symbol, data.Name, data.AssetType, data.Sector, data.Industry,
		data.Exchange, data.IpoDate, data.LastPriceUpdate, data.IsActive)
	return err
}

// UpdateSyncDates sets the sync bookkeeping dates. A NULL earliest keeps the
// stored value.
func (m *customStocksModel) UpdateSyncDates(ctx context.Context, id int64, earliest, lastUpdate sql.NullTime) error {
	query := fmt.Sprintf("update %s set ipo_date = coalesce($2, ipo_date), last_price_update = coalesce($3, last_price_update), updated_at = now() where id = $1", m.table)
	_, err := m.conn.ExecCtx(ctx, query, id, earliest, lastUpdate)
	return err
}

func (m *customStocksModel) FindActiveSymbols(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf("select symbol from %s where is_active order by symbol", m.table)
	var symbols []string
	if err := m.conn.QueryRowsCtx(ctx, &symbols, query); err != nil {
		return nil, err
	}
	return symbols, nil
}

func (m *customStocksModel) Delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf("delete from %s where id = $1", m.table)
	_, err := m.conn.ExecCtx(ctx, query, id)
	return err
}

// StockCoverage is one row of FindCoverage.
type StockCoverage struct {
	Symbol string       `db:"symbol"`
	First  sql.NullTime `db:"first_date"`
	Last   sql.NullTime `db:"last_date"`
	Rows   int64        `db:"row_count"`
}

// FindCoverage returns stored date bounds per symbol. An empty symbols list
// covers every active symbol.
func (m *customStocksModel) FindCoverage(ctx context.Context, symbols []string) ([]*StockCoverage, error) {
	query := `
SELECT s.symbol, MIN(p.date) AS first_date, MAX(p.date) AS last_date, COUNT(p.id) AS row_count
FROM public.stocks s
LEFT JOIN public.stock_prices p ON p.stock_id = s.id
WHERE %s
GROUP BY s.symbol
ORDER BY s.symbol`
	var (
		args   []any
		clause = "s.is_active"
	)
	if len(symbols) > 0 {
		clause = "s.symbol = ANY($1)"
		args = append(args, pq.Array(symbols))
	}
	var rows []*StockCoverage
	if err := m.conn.QueryRowsCtx(ctx, &rows, fmt.Sprintf(query, clause), args...); err != nil {
		return nil, err
	}
	return rows, nil
}
