// Package memstore is an in-process market.Store used by tests and by the
// CLI when no database is configured.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"pricesync/pkg/market"
)

// Store keeps symbols and prices in maps guarded by a RWMutex.
type Store struct {
	mu      sync.RWMutex
	txMu    sync.Mutex
	symbols map[string]*market.SymbolMetadata
	prices  map[string]map[time.Time]market.PricePoint
}

// New returns an empty store.
func New() *Store {
	return &Store{
		symbols: make(map[string]*market.SymbolMetadata),
		prices:  make(map[string]map[time.Time]market.PricePoint),
	}
}

var (
	_ market.Store         = (*Store)(nil)
	_ market.HistoryReader = (*Store)(nil)
)

// LastStoredDate implements market.Store.
func (s *Store) LastStoredDate(ctx context.Context, symbol string) (time.Time, bool, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var last time.Time
	for d := range s.prices[symbol] {
		if d.After(last) {
			last = d
		}
	}
	return last, !last.IsZero(), nil
}

// ExistsForDate implements market.Store.
func (s *Store) ExistsForDate(ctx context.Context, symbol string, date time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.prices[symbol][market.Day(date)]
	return ok, nil
}

// UpsertPrices implements market.Store. Dates already present are left alone.
func (s *Store) UpsertPrices(ctx context.Context, symbol string, points []market.PricePoint) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	series, ok := s.prices[symbol]
	if !ok {
		series = make(map[time.Time]market.PricePoint, len(points))
		s.prices[symbol] = series
	}
	written := 0
	for _, p := range points {
		p.Date = market.Day(p.Date)
		if _, exists := series[p.Date]; exists {
			continue
		}
		series[p.Date] = p
		written++
	}
	return written, nil
}

// GetOrCreateSymbol implements market.Store.
func (s *Store) GetOrCreateSymbol(ctx context.Context, symbol string) (*market.SymbolMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if meta, ok := s.symbols[symbol]; ok {
		cp := *meta
		return &cp, nil
	}
	name := market.PlaceholderName(symbol)
	meta := &market.SymbolMetadata{
		Symbol:    symbol,
		Name:      name,
		AssetType: market.InferAssetType(symbol, name),
		IsActive:  true,
	}
	s.symbols[symbol] = meta
	cp := *meta
	return &cp, nil
}

// UpdateSymbolMetadata implements market.Store. A zero earliest leaves the
// stored value untouched.
func (s *Store) UpdateSymbolMetadata(ctx context.Context, symbol string, earliest, lastSync time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, ok := s.symbols[symbol]
	if !ok {
		name := market.PlaceholderName(symbol)
		meta = &market.SymbolMetadata{Symbol: symbol, Name: name, AssetType: market.InferAssetType(symbol, name), IsActive: true}
		s.symbols[symbol] = meta
	}
	if !earliest.IsZero() {
		e := market.Day(earliest)
		meta.EarliestDate = &e
	}
	if !lastSync.IsZero() {
		l := market.Day(lastSync)
		meta.LastSyncDate = &l
	}
	return nil
}

// ActiveSymbols implements market.Store.
func (s *Store) ActiveSymbols(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.symbols))
	for sym, meta := range s.symbols {
		if meta.IsActive {
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out, nil
}

// CountPrices implements market.Store.
func (s *Store) CountPrices(ctx context.Context, symbol string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.prices[symbol])), nil
}

// DeletePrices implements market.Store.
func (s *Store) DeletePrices(ctx context.Context, symbol string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.prices[symbol]))
	delete(s.prices, symbol)
	return n, nil
}

// Transact implements market.Store. Transactions run one at a time; a failed
// fn restores the state captured before it started.
func (s *Store) Transact(ctx context.Context, fn func(ctx context.Context, tx market.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	symbols, prices := s.snapshot()
	if err := fn(ctx, s); err != nil {
		s.mu.Lock()
		s.symbols, s.prices = symbols, prices
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) snapshot() (map[string]*market.SymbolMetadata, map[string]map[time.Time]market.PricePoint) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	symbols := make(map[string]*market.SymbolMetadata, len(s.symbols))
	for k, v := range s.symbols {
		cp := *v
		symbols[k] = &cp
	}
	prices := make(map[string]map[time.Time]market.PricePoint, len(s.prices))
	for k, series := range s.prices {
		cp := make(map[time.Time]market.PricePoint, len(series))
		for d, p := range series {
			cp[d] = p
		}
		prices[k] = cp
	}
	return symbols, prices
}

// AddSymbol registers symbol with explicit metadata.
func (s *Store) AddSymbol(meta market.SymbolMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := meta
	s.symbols[meta.Symbol] = &cp
}

// Symbol returns a copy of the metadata for symbol.
func (s *Store) Symbol(symbol string) (market.SymbolMetadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.symbols[symbol]
	if !ok {
		return market.SymbolMetadata{}, false
	}
	return *meta, true
}

// Prices returns the stored series for symbol in ascending date order.
func (s *Store) Prices(symbol string) []market.PricePoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]market.PricePoint, 0, len(s.prices[symbol]))
	for _, p := range s.prices[symbol] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// PricesBetween implements market.HistoryReader.
func (s *Store) PricesBetween(ctx context.Context, symbol string, from, to time.Time) ([]market.PricePoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return market.WithinRange(s.Prices(symbol), market.Day(from), market.Day(to)), nil
}

// Coverage implements market.HistoryReader. An empty symbols list covers
// every active symbol.
func (s *Store) Coverage(ctx context.Context, symbols []string) ([]market.Coverage, error) {
	if len(symbols) == 0 {
		active, err := s.ActiveSymbols(ctx)
		if err != nil {
			return nil, err
		}
		symbols = active
	}
	out := make([]market.Coverage, 0, len(symbols))
	for _, sym := range symbols {
		if _, ok := s.Symbol(sym); !ok {
			continue
		}
		c := market.Coverage{Symbol: sym}
		if prices := s.Prices(sym); len(prices) > 0 {
			c.First, c.Last, c.Rows = prices[0].Date, prices[len(prices)-1].Date, int64(len(prices))
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}
