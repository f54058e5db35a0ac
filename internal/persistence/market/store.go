package marketpersist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	"github.com/lib/pq"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"pricesync/internal/config"
	"pricesync/internal/model"
	"pricesync/pkg/market"
)

// pingAttempts bounds startup connectivity retries.
const pingAttempts = 5

// Store implements market.Store on Postgres.
type Store struct {
	conn   sqlx.SqlConn
	stocks model.StocksModel
	prices model.StockPricesModel
	inTx   bool
}

var (
	_ market.Store         = (*Store)(nil)
	_ market.HistoryReader = (*Store)(nil)
)

// NewStore wires a store over conn. Returns nil when conn is nil.
func NewStore(conn sqlx.SqlConn) *Store {
	if conn == nil {
		return nil
	}
	return &Store{
		conn:   conn,
		stocks: model.NewStocksModel(conn),
		prices: model.NewStockPricesModel(conn),
	}
}

// Open connects with the pgx driver, applies pool limits and pings with
// exponential backoff.
func Open(ctx context.Context, c config.PostgresConf) (*Store, error) {
	if c.DSN == "" {
		return nil, errors.New("marketpersist: postgres dsn not configured")
	}
	conn := sqlx.NewSqlConn("pgx", c.DSN)
	db, err := conn.RawDB()
	if err != nil {
		return nil, fmt.Errorf("marketpersist: open: %w", err)
	}
	if c.MaxOpen > 0 {
		db.SetMaxOpenConns(c.MaxOpen)
	}
	if c.MaxIdle > 0 {
		db.SetMaxIdleConns(c.MaxIdle)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), pingAttempts), ctx)
	err = backoff.RetryNotify(func() error {
		return db.PingContext(ctx)
	}, policy, func(err error, wait time.Duration) {
		logx.WithContext(ctx).Infof("marketpersist: ping failed, retrying in %s err=%v", wait.Round(time.Millisecond), err)
	})
	if err != nil {
		return nil, fmt.Errorf("marketpersist: ping: %w", err)
	}
	return NewStore(conn), nil
}

// Ping reports database reachability.
func (s *Store) Ping(ctx context.Context) error {
	db, err := s.conn.RawDB()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// Migrate executes a schema script.
func (s *Store) Migrate(ctx context.Context, script string) error {
	if _, err := s.conn.ExecCtx(ctx, script); err != nil {
		return fmt.Errorf("marketpersist: migrate: %w", err)
	}
	return nil
}

func (s *Store) withSession(session sqlx.Session) *Store {
	return &Store{
		conn:   sqlx.NewSqlConnFromSession(session),
		stocks: s.stocks.WithSession(session),
		prices: s.prices.WithSession(session),
		inTx:   true,
	}
}

// Transact implements market.Store over SqlConn.TransactCtx.
func (s *Store) Transact(ctx context.Context, fn func(ctx context.Context, tx market.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	return s.conn.TransactCtx(ctx, func(ctx context.Context, session sqlx.Session) error {
		return fn(ctx, s.withSession(session))
	})
}

// stockID returns the id for symbol; ok is false when the row is absent.
func (s *Store) stockID(ctx context.Context, symbol string) (int64, bool, error) {
	row, err := s.stocks.FindOneBySymbol(ctx, symbol)
	switch {
	case err == nil:
		return row.Id, true, nil
	case errors.Is(err, model.ErrNotFound):
		return 0, false, nil
	default:
		return 0, false, fmt.Errorf("marketpersist: find symbol %s: %w", symbol, err)
	}
}

// LastStoredDate implements market.Store.
func (s *Store) LastStoredDate(ctx context.Context, symbol string) (time.Time, bool, error) {
	id, ok, err := s.stockID(ctx, symbol)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	last, ok, err := s.prices.LastDate(ctx, id)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("marketpersist: last date %s: %w", symbol, err)
	}
	if !ok {
		return time.Time{}, false, nil
	}
	return market.Day(last), true, nil
}

// ExistsForDate implements market.Store.
func (s *Store) ExistsForDate(ctx context.Context, symbol string, date time.Time) (bool, error) {
	id, ok, err := s.stockID(ctx, symbol)
	if err != nil || !ok {
		return false, err
	}
	exists, err := s.prices.ExistsForDate(ctx, id, market.Day(date))
	if err != nil {
		return false, fmt.Errorf("marketpersist: exists %s %s: %w", symbol, market.FormatDay(date), err)
	}
	return exists, nil
}

// UpsertPrices implements market.Store with ON CONFLICT DO NOTHING.
func (s *Store) UpsertPrices(ctx context.Context, symbol string, points []market.PricePoint) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}
	meta, err := s.getOrCreate(ctx, symbol)
	if err != nil {
		return 0, err
	}
	rows := make([]*model.StockPrices, 0, len(points))
	for _, p := range points {
		rows = append(rows, &model.StockPrices{
			StockId:       meta.Id,
			Date:          market.Day(p.Date),
			Open:          p.Open,
			High:          p.High,
			Low:           p.Low,
			Close:         p.Close,
			Volume:        p.Volume,
			AdjustedClose: p.AdjustedClose,
		})
	}
	n, err := s.prices.InsertIgnoreConflicts(ctx, rows)
	if err != nil {
		return int(n), fmt.Errorf("marketpersist: insert prices %s: %w", symbol, err)
	}
	return int(n), nil
}

// GetOrCreateSymbol implements market.Store.
func (s *Store) GetOrCreateSymbol(ctx context.Context, symbol string) (*market.SymbolMetadata, error) {
	row, err := s.getOrCreate(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return toMetadata(row), nil
}

// getOrCreate inserts a placeholder row when symbol is unknown. A concurrent
// creator wins through the unique constraint and the row is re-read; inside a
// transaction the insert runs under a savepoint so the violation does not
// abort it.
func (s *Store) getOrCreate(ctx context.Context, symbol string) (*model.Stocks, error) {
	row, err := s.stocks.FindOneBySymbol(ctx, symbol)
	if err == nil {
		return row, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return nil, fmt.Errorf("marketpersist: find symbol %s: %w", symbol, err)
	}

	name := market.PlaceholderName(symbol)
	placeholder := &model.Stocks{
		Symbol:    symbol,
		Name:      name,
		AssetType: string(market.InferAssetType(symbol, name)),
		IsActive:  true,
	}
	if s.inTx {
		if _, err := s.conn.ExecCtx(ctx, "SAVEPOINT get_or_create_symbol"); err != nil {
			return nil, fmt.Errorf("marketpersist: savepoint: %w", err)
		}
	}
	id, err := s.stocks.InsertPlaceholder(ctx, placeholder)
	switch {
	case err == nil:
		logx.WithContext(ctx).Infof("marketpersist: created placeholder symbol=%s asset_type=%s", symbol, placeholder.AssetType)
		placeholder.Id = id
		return placeholder, nil
	case isUniqueViolation(err):
		if s.inTx {
			if _, rerr := s.conn.ExecCtx(ctx, "ROLLBACK TO SAVEPOINT get_or_create_symbol"); rerr != nil {
				return nil, fmt.Errorf("marketpersist: rollback savepoint: %w", rerr)
			}
		}
		row, err := s.stocks.FindOneBySymbol(ctx, symbol)
		if err != nil {
			return nil, fmt.Errorf("marketpersist: re-read symbol %s: %w", symbol, err)
		}
		return row, nil
	default:
		return nil, fmt.Errorf("marketpersist: create symbol %s: %w", symbol, err)
	}
}

// UpdateSymbolMetadata implements market.Store. A zero earliest keeps the
// stored value.
func (s *Store) UpdateSymbolMetadata(ctx context.Context, symbol string, earliest, lastSync time.Time) error {
	row, err := s.getOrCreate(ctx, symbol)
	if err != nil {
		return err
	}
	if err := s.stocks.UpdateSyncDates(ctx, row.Id, nullDay(earliest), nullDay(lastSync)); err != nil {
		return fmt.Errorf("marketpersist: update metadata %s: %w", symbol, err)
	}
	return nil
}

// ActiveSymbols implements market.Store.
func (s *Store) ActiveSymbols(ctx context.Context) ([]string, error) {
	symbols, err := s.stocks.FindActiveSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("marketpersist: active symbols: %w", err)
	}
	return symbols, nil
}

// CountPrices implements market.Store.
func (s *Store) CountPrices(ctx context.Context, symbol string) (int64, error) {
	id, ok, err := s.stockID(ctx, symbol)
	if err != nil || !ok {
		return 0, err
	}
	n, err := s.prices.CountByStock(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("marketpersist: count %s: %w", symbol, err)
	}
	return n, nil
}

// DeletePrices implements market.Store.
func (s *Store) DeletePrices(ctx context.Context, symbol string) (int64, error) {
	id, ok, err := s.stockID(ctx, symbol)
	if err != nil || !ok {
		return 0, err
	}
	n, err := s.prices.DeleteByStock(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("marketpersist: delete %s: %w", symbol, err)
	}
	return n, nil
}

// PricesBetween implements market.HistoryReader.
func (s *Store) PricesBetween(ctx context.Context, symbol string, from, to time.Time) ([]market.PricePoint, error) {
	id, ok, err := s.stockID(ctx, symbol)
	if err != nil || !ok {
		return nil, err
	}
	rows, err := s.prices.FindRange(ctx, id, market.Day(from), market.Day(to))
	if err != nil {
		return nil, fmt.Errorf("marketpersist: prices %s: %w", symbol, err)
	}
	points := make([]market.PricePoint, 0, len(rows))
	for _, r := range rows {
		points = append(points, market.PricePoint{
			Date:          market.Day(r.Date),
			Open:          r.Open,
			High:          r.High,
			Low:           r.Low,
			Close:         r.Close,
			AdjustedClose: r.AdjustedClose,
			Volume:        r.Volume,
		})
	}
	return points, nil
}

// Coverage implements market.HistoryReader.
func (s *Store) Coverage(ctx context.Context, symbols []string) ([]market.Coverage, error) {
	rows, err := s.stocks.FindCoverage(ctx, symbols)
	if err != nil {
		return nil, fmt.Errorf("marketpersist: coverage: %w", err)
	}
	out := make([]market.Coverage, 0, len(rows))
	for _, r := range rows {
		c := market.Coverage{Symbol: r.Symbol, Rows: r.Rows}
		if r.First.Valid {
			c.First = market.Day(r.First.Time)
		}
		if r.Last.Valid {
			c.Last = market.Day(r.Last.Time)
		}
		out = append(out, c)
	}
	return out, nil
}

func toMetadata(row *model.Stocks) *market.SymbolMetadata {
	meta := &market.SymbolMetadata{
		Symbol:    row.Symbol,
		Name:      row.Name,
		AssetType: market.AssetType(row.AssetType),
		IsActive:  row.IsActive,
	}
	if row.IpoDate.Valid {
		d := market.Day(row.IpoDate.Time)
		meta.EarliestDate = &d
	}
	if row.LastPriceUpdate.Valid {
		d := market.Day(row.LastPriceUpdate.Time)
		meta.LastSyncDate = &d
	}
	return meta
}

func nullDay(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: market.Day(t), Valid: true}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
