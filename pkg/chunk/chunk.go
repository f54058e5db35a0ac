package chunk

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"pricesync/pkg/market"
)

// DefaultYears is the sub-window span. Fifteen years of trading days stay
// below a 5000 record cap with room to spare.
const DefaultYears = 15

// Window is one inclusive sub-range of a chunked fetch.
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (w Window) String() string {
	return market.FormatDay(w.From) + ".." + market.FormatDay(w.To)
}

// Split divides [from, to] into consecutive windows of years calendar years.
// Each window ends at start+years clamped to to; the next one starts a day
// later. An inverted range yields no windows.
func Split(from, to time.Time, years int) []Window {
	from, to = market.Day(from), market.Day(to)
	if years <= 0 {
		years = DefaultYears
	}
	if from.After(to) {
		return nil
	}
	var windows []Window
	for start := from; !start.After(to); {
		end := start.AddDate(years, 0, 0)
		if end.After(to) {
			end = to
		}
		windows = append(windows, Window{From: start, To: end})
		start = end.AddDate(0, 0, 1)
	}
	return windows
}

// RangeFetcher is the single-range call the chunker drives, usually the
// fallback orchestrator.
type RangeFetcher interface {
	FetchRange(ctx context.Context, symbol string, from, to time.Time) ([]market.PricePoint, error)
}

// Fetcher pages through long ranges in chronological sub-windows.
type Fetcher struct {
	source           RangeFetcher
	years            int
	skipLeadingEmpty bool
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithYears overrides the window span.
func WithYears(years int) Option {
	return func(f *Fetcher) {
		if years > 0 {
			f.years = years
		}
	}
}

// WithSkipLeadingEmpty keeps paging past empty windows until the first
// non-empty one. Useful when the start date is a conservative fallback.
func WithSkipLeadingEmpty(skip bool) Option {
	return func(f *Fetcher) {
		f.skipLeadingEmpty = skip
	}
}

// NewFetcher wraps source.
func NewFetcher(source RangeFetcher, opts ...Option) *Fetcher {
	f := &Fetcher{source: source, years: DefaultYears}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Windows returns the sub-windows Fetch would request.
func (f *Fetcher) Windows(from, to time.Time) []Window {
	return Split(from, to, f.years)
}

// Fetch retrieves [from, to] window by window and merges the results. The
// first record seen for a date wins. An empty window ends the walk, except
// for leading windows when skipLeadingEmpty is set or from is
// market.FallbackEarliest, which means no provider knew the listing date.
// Any window error aborts the fetch; points collected so far are discarded.
func (f *Fetcher) Fetch(ctx context.Context, symbol string, from, to time.Time) ([]market.PricePoint, error) {
	from, to = market.Day(from), market.Day(to)
	windows := f.Windows(from, to)
	skipLeading := f.skipLeadingEmpty || market.IsFallbackEarliest(from)
	merged := make(map[time.Time]market.PricePoint)
	order := make([]time.Time, 0)

	for i, w := range windows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		points, err := f.source.FetchRange(ctx, symbol, w.From, w.To)
		if err != nil {
			return nil, fmt.Errorf("chunk %d/%d %s: %w", i+1, len(windows), w, err)
		}
		if len(points) == 0 {
			if skipLeading && len(order) == 0 {
				logx.WithContext(ctx).Debugf("chunk: empty leading window symbol=%s window=%s", symbol, w)
				continue
			}
			logx.WithContext(ctx).Infof("chunk: empty window, stopping symbol=%s window=%s fetched=%d", symbol, w, len(order))
			break
		}
		for _, p := range points {
			p.Date = market.Day(p.Date)
			if p.Date.Before(from) || p.Date.After(to) {
				continue
			}
			if _, seen := merged[p.Date]; seen {
				continue
			}
			merged[p.Date] = p
			order = append(order, p.Date)
		}
		logx.WithContext(ctx).Debugf("chunk: window done symbol=%s window=%s records=%d", symbol, w, len(points))
	}

	out := make([]market.PricePoint, 0, len(order))
	for _, d := range order {
		out = append(out, merged[d])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
