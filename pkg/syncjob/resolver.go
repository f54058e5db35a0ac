package syncjob

import (
	"context"
	"fmt"
	"time"

	"pricesync/pkg/market"
)

// EarliestLookup answers how far back a symbol's history goes.
type EarliestLookup interface {
	EarliestAvailable(ctx context.Context, symbol string) (time.Time, error)
}

// Range is the resolved work for one symbol. It is derived from stored data
// on every run and never persisted.
type Range struct {
	Symbol     string
	Start      time.Time
	End        time.Time
	HasData    bool
	LastStored time.Time // zero when HasData is false
	UpToDate   bool      // nothing to fetch
	Skipped    bool      // years-back seeding of a symbol that already has data
}

// Request tunes a single resolution.
type Request struct {
	Force     bool
	YearsBack int
	End       time.Time // zero means today
}

// Resolver computes the minimal date range still needed per symbol.
type Resolver struct {
	store    market.Store
	earliest EarliestLookup
	now      func() time.Time
}

// NewResolver builds a Resolver. now defaults to time.Now.
func NewResolver(store market.Store, earliest EarliestLookup, now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{store: store, earliest: earliest, now: now}
}

// Today returns the current UTC date.
func (r *Resolver) Today() time.Time {
	return market.Day(r.now())
}

// Resolve returns the range to fetch for symbol.
//
// Forced runs and symbols without history start at the earliest available
// date; otherwise the day after the last stored one. YearsBack replaces the
// earliest lookup with today minus N years and skips symbols that already
// have data. A start on or after the end date means the symbol is current.
func (r *Resolver) Resolve(ctx context.Context, symbol string, req Request) (Range, error) {
	today := r.Today()
	end := today
	if !req.End.IsZero() {
		end = market.Day(req.End)
	}

	last, ok, err := r.store.LastStoredDate(ctx, symbol)
	if err != nil {
		return Range{}, &storageError{op: "last stored date " + symbol, err: err}
	}
	rng := Range{Symbol: symbol, End: end, HasData: ok}
	if ok {
		rng.LastStored = market.Day(last)
	}

	switch {
	case req.YearsBack > 0:
		if ok && !req.Force {
			rng.Skipped = true
			return rng, nil
		}
		rng.Start = today.AddDate(-req.YearsBack, 0, 0)
	case req.Force || !ok:
		earliest, err := r.earliest.EarliestAvailable(ctx, symbol)
		if err != nil {
			return Range{}, fmt.Errorf("syncjob: earliest available %s: %w", symbol, err)
		}
		rng.Start = market.Day(earliest)
	default:
		rng.Start = rng.LastStored.AddDate(0, 0, 1)
	}

	if !rng.Start.Before(rng.End) {
		rng.UpToDate = true
	}
	return rng, nil
}
