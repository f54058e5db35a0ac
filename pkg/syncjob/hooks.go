package syncjob

import (
	"context"
	"errors"
	"time"

	"pricesync/pkg/market"
)

var (
	// ErrRunInProgress is returned when the RunGuard refuses a run.
	ErrRunInProgress = errors.New("syncjob: another sync run is in progress")
	// ErrUpdatesDisabled is returned by RunScheduled when update_enabled is false.
	ErrUpdatesDisabled = errors.New("syncjob: scheduled updates are disabled")
	// ErrNoData is reported for a first sync or reseed that returned no bars.
	ErrNoData = errors.New("syncjob: no data returned")
)

// RunGuard prevents overlapping runs across processes.
type RunGuard interface {
	// Acquire returns ok=false when another run holds the guard.
	Acquire(ctx context.Context) (release func(), ok bool, err error)
}

// Recorder keeps the latest per-symbol results and run summary.
type Recorder interface {
	RecordResult(ctx context.Context, result SyncResult) error
	RecordSummary(ctx context.Context, summary *SyncSummary) error
}

// Exporter receives the bars committed for a symbol.
type Exporter interface {
	Export(ctx context.Context, symbol string, from, to time.Time, points []market.PricePoint) error
}

// Recorders fans results out to several recorders. Every recorder is called;
// errors are joined.
type Recorders []Recorder

func (rs Recorders) RecordResult(ctx context.Context, result SyncResult) error {
	var errs []error
	for _, r := range rs {
		errs = append(errs, r.RecordResult(ctx, result))
	}
	return errors.Join(errs...)
}

func (rs Recorders) RecordSummary(ctx context.Context, summary *SyncSummary) error {
	var errs []error
	for _, r := range rs {
		errs = append(errs, r.RecordSummary(ctx, summary))
	}
	return errors.Join(errs...)
}
