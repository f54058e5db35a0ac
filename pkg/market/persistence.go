package market

import (
	"context"
	"time"
)

// Store is the read/write contract the sync engine needs from persistence.
type Store interface {
	// LastStoredDate returns the newest stored trading day; ok is false when
	// the symbol has no price history.
	LastStoredDate(ctx context.Context, symbol string) (last time.Time, ok bool, err error)
	// ExistsForDate reports whether a price row exists for symbol on date.
	ExistsForDate(ctx context.Context, symbol string, date time.Time) (bool, error)
	// UpsertPrices inserts points, leaving already stored dates untouched, and
	// returns the number of rows written.
	UpsertPrices(ctx context.Context, symbol string, points []PricePoint) (int, error)
	// GetOrCreateSymbol loads the metadata row, creating a placeholder if absent.
	GetOrCreateSymbol(ctx context.Context, symbol string) (*SymbolMetadata, error)
	// UpdateSymbolMetadata records the earliest stored day and the last sync date.
	UpdateSymbolMetadata(ctx context.Context, symbol string, earliest, lastSync time.Time) error
	// ActiveSymbols lists symbols flagged active, ordered by symbol.
	ActiveSymbols(ctx context.Context) ([]string, error)
	// CountPrices returns the number of stored price rows for symbol.
	CountPrices(ctx context.Context, symbol string) (int64, error)
	// DeletePrices removes the stored price history for symbol.
	DeletePrices(ctx context.Context, symbol string) (int64, error)
	// Transact runs fn against a Store whose writes commit or roll back together.
	Transact(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

// Coverage summarises the stored history of one symbol.
type Coverage struct {
	Symbol string    `json:"symbol"`
	First  time.Time `json:"first"`
	Last   time.Time `json:"last"`
	Rows   int64     `json:"rows"`
}

// HistoryReader is implemented by stores that can serve stored bars back,
// used by re-export and coverage reporting.
type HistoryReader interface {
	PricesBetween(ctx context.Context, symbol string, from, to time.Time) ([]PricePoint, error)
	Coverage(ctx context.Context, symbols []string) ([]Coverage, error)
}
