package market

import (
	"errors"
	"sort"
	"time"
)

var (
	errMissingDate   = errors.New("missing date")
	errMissingClose  = errors.New("missing close")
	errNegativeValue = errors.New("negative volume")
)

// Validate checks the PricePoint invariants.
func (p PricePoint) Validate() error {
	if p.Date.IsZero() {
		return errMissingDate
	}
	if p.Close.IsZero() {
		return errMissingClose
	}
	if p.Volume < 0 {
		return errNegativeValue
	}
	return nil
}

// NormalizePoints drops invalid records, normalises dates to UTC days,
// removes duplicate dates keeping the first occurrence and sorts ascending.
func NormalizePoints(points []PricePoint) []PricePoint {
	if len(points) == 0 {
		return []PricePoint{}
	}
	seen := make(map[time.Time]struct{}, len(points))
	out := make([]PricePoint, 0, len(points))
	for _, p := range points {
		p.Date = Day(p.Date)
		if p.Validate() != nil {
			continue
		}
		if _, dup := seen[p.Date]; dup {
			continue
		}
		seen[p.Date] = struct{}{}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// WithinRange keeps the points dated in [from, to] inclusive.
func WithinRange(points []PricePoint, from, to time.Time) []PricePoint {
	from, to = Day(from), Day(to)
	out := points[:0:0]
	for _, p := range points {
		if p.Date.Before(from) || p.Date.After(to) {
			continue
		}
		out = append(out, p)
	}
	return out
}
