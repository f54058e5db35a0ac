package syncjob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"pricesync/pkg/chunk"
	"pricesync/pkg/market"
)

// Source is what the job needs from the provider side: ranged fetches and
// earliest-date lookups. The fallback orchestrator satisfies it.
type Source interface {
	chunk.RangeFetcher
	EarliestLookup
}

// Job runs incremental syncs over batches of symbols. Symbols are processed
// sequentially; a failing symbol never aborts the batch.
type Job struct {
	store    market.Store
	fetcher  *chunk.Fetcher
	resolver *Resolver
	cfg      *Config
	now      func() time.Time

	guard    RunGuard
	recorder Recorder
	exporter Exporter
}

// Option configures a Job.
type Option func(*Job)

// WithClock injects the time source used for "today" and summary stamps.
func WithClock(now func() time.Time) Option {
	return func(j *Job) {
		if now != nil {
			j.now = now
		}
	}
}

// WithRunGuard installs a guard against overlapping runs.
func WithRunGuard(g RunGuard) Option {
	return func(j *Job) { j.guard = g }
}

// WithRecorder installs a result recorder.
func WithRecorder(r Recorder) Option {
	return func(j *Job) { j.recorder = r }
}

// WithExporter installs an export sink for committed bars.
func WithExporter(e Exporter) Option {
	return func(j *Job) { j.exporter = e }
}

// New builds a Job. A nil cfg uses DefaultConfig.
func New(store market.Store, source Source, cfg *Config, opts ...Option) *Job {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	j := &Job{store: store, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(j)
	}
	j.fetcher = chunk.NewFetcher(source, chunk.WithYears(cfg.ChunkYears), chunk.WithSkipLeadingEmpty(cfg.SkipLeadingEmpty))
	j.resolver = NewResolver(store, source, j.now)
	return j
}

// RunOption tunes a single invocation.
type RunOption func(*Request)

// UntilDate ends the synced range at d instead of today.
func UntilDate(d time.Time) RunOption {
	return func(r *Request) { r.End = d }
}

// SyncAllOptions selects the SyncAll flavour. YearsBack > 0 seeds symbols
// without data from today minus N years; zero runs an incremental update.
type SyncAllOptions struct {
	YearsBack int
}

// SyncSymbols syncs the given symbols. force re-resolves from the earliest
// available date regardless of stored history.
func (j *Job) SyncSymbols(ctx context.Context, symbols []string, force bool, opts ...RunOption) (*SyncSummary, error) {
	req := Request{Force: force}
	applyRunOptions(&req, opts)
	return j.run(ctx, ModeSymbols, market.NormalizeSymbols(symbols), req, false)
}

// SyncAll syncs every active symbol in the store.
func (j *Job) SyncAll(ctx context.Context, all SyncAllOptions, opts ...RunOption) (*SyncSummary, error) {
	req := Request{YearsBack: all.YearsBack}
	applyRunOptions(&req, opts)
	mode := ModeIncremental
	if all.YearsBack > 0 {
		mode = ModeYearsBack
	}
	return j.runActive(ctx, mode, req)
}

// RunScheduled is the scheduler entry point: an incremental SyncAll gated by
// update_enabled.
func (j *Job) RunScheduled(ctx context.Context) (*SyncSummary, error) {
	if !j.cfg.Updates() {
		logx.WithContext(ctx).Info("syncjob: scheduled updates are disabled, skipping run")
		return nil, ErrUpdatesDisabled
	}
	return j.runActive(ctx, ModeScheduled, Request{})
}

// Reseed re-syncs each symbol from the earliest available date and replaces
// its stored prices in the same commit. A failed fetch leaves history intact.
func (j *Job) Reseed(ctx context.Context, symbols []string, opts ...RunOption) (*SyncSummary, error) {
	req := Request{Force: true}
	applyRunOptions(&req, opts)
	return j.run(ctx, ModeReseed, market.NormalizeSymbols(symbols), req, true)
}

// Plan is the resolved work for one symbol without fetching any bars.
type Plan struct {
	Range
	Windows []chunk.Window
}

// Plan resolves ranges and chunk windows for symbols.
func (j *Job) Plan(ctx context.Context, symbols []string, force bool, opts ...RunOption) ([]Plan, error) {
	req := Request{Force: force}
	applyRunOptions(&req, opts)
	plans := make([]Plan, 0, len(symbols))
	for _, symbol := range market.NormalizeSymbols(symbols) {
		rng, err := j.resolver.Resolve(ctx, symbol, req)
		if err != nil {
			return nil, err
		}
		plan := Plan{Range: rng}
		if !rng.UpToDate && !rng.Skipped {
			plan.Windows = j.fetcher.Windows(rng.Start, rng.End)
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

func applyRunOptions(req *Request, opts []RunOption) {
	for _, opt := range opts {
		opt(req)
	}
}

func (j *Job) runActive(ctx context.Context, mode Mode, req Request) (*SyncSummary, error) {
	symbols, err := j.store.ActiveSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("syncjob: list active symbols: %w", err)
	}
	if len(symbols) == 0 && len(j.cfg.Symbols) > 0 {
		logx.WithContext(ctx).Infof("syncjob: no active symbols, seeding watchlist count=%d", len(j.cfg.Symbols))
		symbols = j.cfg.Symbols
	}
	return j.run(ctx, mode, symbols, req, false)
}

func (j *Job) run(ctx context.Context, mode Mode, symbols []string, req Request, clear bool) (*SyncSummary, error) {
	if j.guard != nil {
		release, ok, err := j.guard.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("syncjob: acquire run guard: %w", err)
		}
		if !ok {
			return nil, ErrRunInProgress
		}
		defer release()
	}

	summary := newSummary(mode, j.now())
	logx.WithContext(ctx).Infof("syncjob: start run=%s mode=%s symbols=%d force=%t", summary.RunID, mode, len(symbols), req.Force)

	for i, symbol := range symbols {
		if ctx.Err() != nil {
			summary.Cancelled = true
			summary.NotStarted = append(summary.NotStarted, symbols[i:]...)
			break
		}
		result, interrupted := j.syncSymbol(ctx, symbol, req, clear)
		if interrupted {
			summary.Cancelled = true
			summary.NotStarted = append(summary.NotStarted, symbols[i:]...)
			break
		}
		summary.add(result)
		j.record(ctx, result)
	}

	summary.FinishedAt = j.now()
	logx.WithContext(ctx).Infof("syncjob: done run=%s mode=%s successes=%d failures=%d skipped=%d records=%d cancelled=%t",
		summary.RunID, mode, summary.Successes, summary.Failures, summary.Skipped, summary.TotalRecords, summary.Cancelled)
	if j.recorder != nil {
		if err := j.recorder.RecordSummary(context.WithoutCancel(ctx), summary); err != nil {
			logx.WithContext(ctx).Errorf("syncjob: record summary run=%s err=%v", summary.RunID, err)
		}
	}
	return summary, nil
}

// syncSymbol processes one symbol. interrupted is true when cancellation
// stopped it before its commit; nothing was written for it. With clear, the
// stored history is replaced inside the commit, so a failed fetch leaves it
// untouched.
func (j *Job) syncSymbol(ctx context.Context, symbol string, req Request, clear bool) (SyncResult, bool) {
	logger := logx.WithContext(ctx)
	rng, err := j.resolver.Resolve(ctx, symbol, req)
	if err != nil {
		if ctx.Err() != nil {
			return SyncResult{}, true
		}
		logger.Errorf("syncjob: resolve symbol=%s err=%v", symbol, err)
		return failure(symbol, err), false
	}
	if rng.Skipped {
		logger.Infof("syncjob: symbol=%s has data, skipped", symbol)
		return SyncResult{Symbol: symbol, Skipped: true}, false
	}
	if rng.UpToDate {
		logger.Infof("syncjob: symbol=%s up to date last=%s", symbol, market.FormatDay(rng.LastStored))
		return SyncResult{Symbol: symbol, RangeStart: rng.Start, RangeEnd: rng.End, UpToDate: true}, false
	}

	points, err := j.fetcher.Fetch(ctx, symbol, rng.Start, rng.End)
	if err != nil {
		if ctx.Err() != nil {
			return SyncResult{}, true
		}
		logger.Errorf("syncjob: fetch symbol=%s range=%s..%s err=%v", symbol, market.FormatDay(rng.Start), market.FormatDay(rng.End), err)
		return failure(symbol, err), false
	}
	if len(points) == 0 && (clear || !rng.HasData) {
		err := fmt.Errorf("%w symbol=%s range=%s..%s", ErrNoData, symbol, market.FormatDay(rng.Start), market.FormatDay(rng.End))
		logger.Errorf("syncjob: %v", err)
		return failure(symbol, err), false
	}

	written, exported, err := j.commit(ctx, rng, points, clear)
	if err != nil {
		logger.Errorf("syncjob: commit symbol=%s err=%v", symbol, err)
		return failure(symbol, err), false
	}
	logger.Infof("syncjob: symbol=%s written=%d fetched=%d range=%s..%s",
		symbol, written, len(points), market.FormatDay(rng.Start), market.FormatDay(rng.End))

	if j.exporter != nil && len(exported) > 0 {
		if err := j.exporter.Export(ctx, symbol, rng.Start, rng.End, exported); err != nil {
			logger.Errorf("syncjob: export symbol=%s err=%v", symbol, err)
		}
	}
	return SyncResult{Symbol: symbol, RecordsWritten: written, RangeStart: rng.Start, RangeEnd: rng.End}, false
}

// commit writes new points and the symbol metadata in one transaction. It
// runs detached from ctx so a fetched symbol is never half written. With
// clear, stored prices are deleted first in the same transaction.
//
// written is the count the store reports. exported holds the rows known to
// be new; it is empty when the store wrote fewer rows than were offered,
// since the rows taken by a concurrent writer cannot be told apart.
func (j *Job) commit(ctx context.Context, rng Range, points []market.PricePoint, clear bool) (written int, exported []market.PricePoint, err error) {
	err = j.store.Transact(context.WithoutCancel(ctx), func(ctx context.Context, tx market.Store) error {
		meta, err := tx.GetOrCreateSymbol(ctx, rng.Symbol)
		if err != nil {
			return &storageError{op: "get or create symbol " + rng.Symbol, err: err}
		}

		stored := meta.EarliestDate
		fresh := make([]market.PricePoint, 0, len(points))
		if clear {
			deleted, err := tx.DeletePrices(ctx, rng.Symbol)
			if err != nil {
				return &storageError{op: "delete prices " + rng.Symbol, err: err}
			}
			logx.WithContext(ctx).Infof("syncjob: cleared symbol=%s deleted=%d", rng.Symbol, deleted)
			stored = nil
			fresh = append(fresh, points...)
		} else {
			for _, p := range points {
				if rng.HasData && !p.Date.After(rng.LastStored) {
					exists, err := tx.ExistsForDate(ctx, rng.Symbol, p.Date)
					if err != nil {
						return &storageError{op: "exists for date " + rng.Symbol, err: err}
					}
					if exists {
						continue
					}
				}
				fresh = append(fresh, p)
			}
		}

		n := 0
		if len(fresh) > 0 {
			n, err = tx.UpsertPrices(ctx, rng.Symbol, fresh)
			if err != nil {
				return &storageError{op: "upsert prices " + rng.Symbol, err: err}
			}
			if n < len(fresh) {
				logx.WithContext(ctx).Infof("syncjob: symbol=%s %d of %d rows already present, export skipped", rng.Symbol, len(fresh)-n, len(fresh))
			}
		}

		if err := tx.UpdateSymbolMetadata(ctx, rng.Symbol, earliestOf(stored, points), rng.End); err != nil {
			return &storageError{op: "update symbol metadata " + rng.Symbol, err: err}
		}
		written = n
		if n == len(fresh) {
			exported = fresh
		}
		return nil
	})
	if err != nil {
		var serr *storageError
		if !errors.As(err, &serr) {
			err = &storageError{op: "transaction " + rng.Symbol, err: err}
		}
		return 0, nil, err
	}
	return written, exported, nil
}

// earliestOf returns the older of the stored earliest date and the first
// fetched point. Zero when neither exists.
func earliestOf(stored *time.Time, points []market.PricePoint) time.Time {
	var earliest time.Time
	if stored != nil {
		earliest = market.Day(*stored)
	}
	if len(points) > 0 && (earliest.IsZero() || points[0].Date.Before(earliest)) {
		earliest = points[0].Date
	}
	return earliest
}

func (j *Job) record(ctx context.Context, result SyncResult) {
	if j.recorder == nil {
		return
	}
	if err := j.recorder.RecordResult(context.WithoutCancel(ctx), result); err != nil {
		logx.WithContext(ctx).Errorf("syncjob: record result symbol=%s err=%v", result.Symbol, err)
	}
}
