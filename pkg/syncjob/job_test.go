package syncjob

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pricesync/internal/persistence/memstore"
	"pricesync/pkg/chunk"
	"pricesync/pkg/fallback"
	"pricesync/pkg/market"
)

var testNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return testNow }

func day(s string) time.Time {
	d, err := market.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

// fakeSource serves weekday bars between listing and the current day.
type fakeSource struct {
	mu       sync.Mutex
	listing  map[string]time.Time
	fail     map[string]error
	calls    map[string][]chunk.Window
	onFetch  func(symbol string)
	earliest int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		listing: map[string]time.Time{},
		fail:    map[string]error{},
		calls:   map[string][]chunk.Window{},
	}
}

func (f *fakeSource) FetchRange(ctx context.Context, symbol string, from, to time.Time) ([]market.PricePoint, error) {
	f.mu.Lock()
	f.calls[symbol] = append(f.calls[symbol], chunk.Window{From: from, To: to})
	hook := f.onFetch
	listing, known := f.listing[symbol]
	failErr := f.fail[symbol]
	f.mu.Unlock()

	if hook != nil {
		hook(symbol)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if failErr != nil {
		return nil, failErr
	}
	if !known {
		return nil, market.NewError(market.KindNotFound, "fake", symbol, "unknown symbol")
	}
	var out []market.PricePoint
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if d.Before(listing) || d.After(market.Day(testNow)) {
			continue
		}
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		out = append(out, market.PricePoint{
			Date:   d,
			Open:   decimal.NewFromInt(100),
			High:   decimal.NewFromInt(101),
			Low:    decimal.NewFromInt(99),
			Close:  decimal.NewFromInt(100),
			Volume: 1000,
		})
	}
	return market.NormalizePoints(out), nil
}

func (f *fakeSource) EarliestAvailable(ctx context.Context, symbol string) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.earliest++
	if l, ok := f.listing[symbol]; ok {
		return l, nil
	}
	return market.FallbackEarliest, nil
}

func (f *fakeSource) windows(symbol string) []chunk.Window {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chunk.Window(nil), f.calls[symbol]...)
}

func weekdaysBetween(from, to time.Time) int {
	n := 0
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n++
		}
	}
	return n
}

func seed(t *testing.T, store *memstore.Store, symbol string, from, to time.Time) {
	t.Helper()
	var points []market.PricePoint
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		points = append(points, market.PricePoint{Date: d, Close: decimal.NewFromInt(50)})
	}
	_, err := store.UpsertPrices(context.Background(), symbol, points)
	require.NoError(t, err)
	_, err = store.GetOrCreateSymbol(context.Background(), symbol)
	require.NoError(t, err)
}

func newJob(store market.Store, src Source, opts ...Option) *Job {
	return New(store, src, DefaultConfig(), append([]Option{WithClock(clock)}, opts...)...)
}

func TestSyncSymbolsFullHistoryFromEarliest(t *testing.T) {
	store := memstore.New()
	src := newFakeSource()
	src.listing["QQQ"] = day("1999-05-03")

	summary, err := newJob(store, src).SyncSymbols(context.Background(), []string{" qqq "}, false)
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)

	res := summary.Results[0]
	assert.Equal(t, "QQQ", res.Symbol)
	assert.Empty(t, res.ErrorKind)
	assert.Equal(t, day("1999-05-03"), res.RangeStart)
	assert.Equal(t, day("2024-03-15"), res.RangeEnd)
	assert.Equal(t, weekdaysBetween(day("1999-05-03"), day("2024-03-15")), res.RecordsWritten)
	assert.Equal(t, res.RecordsWritten, summary.TotalRecords)
	assert.Equal(t, 1, summary.Successes)
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, ModeSymbols, summary.Mode)

	windows := src.windows("QQQ")
	require.Len(t, windows, 2)
	assert.Equal(t, day("1999-05-03"), windows[0].From)
	assert.Equal(t, day("2024-03-15"), windows[1].To)

	meta, ok := store.Symbol("QQQ")
	require.True(t, ok)
	assert.Equal(t, "QQQ (Auto-imported)", meta.Name)
	assert.Equal(t, market.AssetETF, meta.AssetType)
	assert.Equal(t, day("1999-05-03"), *meta.EarliestDate)
	assert.Equal(t, day("2024-03-15"), *meta.LastSyncDate)
}

func TestSyncSymbolsIsIdempotent(t *testing.T) {
	store := memstore.New()
	src := newFakeSource()
	src.listing["AAPL"] = day("2023-01-03")
	job := newJob(store, src)

	first, err := job.SyncSymbols(context.Background(), []string{"AAPL"}, false)
	require.NoError(t, err)
	require.Positive(t, first.TotalRecords)
	calls := len(src.windows("AAPL"))

	second, err := job.SyncSymbols(context.Background(), []string{"AAPL"}, false)
	require.NoError(t, err)
	assert.Zero(t, second.TotalRecords)
	assert.True(t, second.Results[0].UpToDate)
	assert.Equal(t, 1, second.Successes)
	assert.Len(t, src.windows("AAPL"), calls, "up to date symbols are not fetched")
}

func TestSyncSymbolsResumesAfterLastStoredDate(t *testing.T) {
	store := memstore.New()
	src := newFakeSource()
	src.listing["MSFT"] = day("1986-03-13")
	seed(t, store, "MSFT", day("2024-01-02"), day("2024-02-29"))

	summary, err := newJob(store, src).SyncSymbols(context.Background(), []string{"MSFT"}, false)
	require.NoError(t, err)

	res := summary.Results[0]
	assert.Equal(t, day("2024-03-01"), res.RangeStart)
	assert.Equal(t, weekdaysBetween(day("2024-03-01"), day("2024-03-15")), res.RecordsWritten)
	for _, w := range src.windows("MSFT") {
		assert.True(t, w.From.After(day("2024-02-29")), "fetched %s", w)
	}
	assert.Zero(t, src.earliest, "resume never consults the earliest date")

	meta, _ := store.Symbol("MSFT")
	assert.Equal(t, day("2024-03-01"), *meta.EarliestDate)
}

func TestSyncSymbolsForceSkipsStoredDates(t *testing.T) {
	store := memstore.New()
	src := newFakeSource()
	src.listing["IBM"] = day("2024-03-01")
	seed(t, store, "IBM", day("2024-03-01"), day("2024-03-08"))

	summary, err := newJob(store, src).SyncSymbols(context.Background(), []string{"IBM"}, true)
	require.NoError(t, err)
	res := summary.Results[0]
	assert.Equal(t, day("2024-03-01"), res.RangeStart)
	assert.Equal(t, weekdaysBetween(day("2024-03-09"), day("2024-03-15")), res.RecordsWritten)

	prices := store.Prices("IBM")
	assert.Equal(t, "50", prices[0].Close.String(), "stored rows are not overwritten")
}

func TestSyncSymbolsIsolatesFailures(t *testing.T) {
	store := memstore.New()
	src := newFakeSource()
	src.listing["SPY"] = day("2024-01-02")
	src.listing["DIA"] = day("2024-01-02")
	orchestrator, err := fallback.New([]market.Provider{asProvider(src)})
	require.NoError(t, err)

	summary, err := New(store, orchestrator, DefaultConfig(), WithClock(clock)).
		SyncSymbols(context.Background(), []string{"SPY", "NOPE", "DIA"}, false)
	require.NoError(t, err)
	require.Len(t, summary.Results, 3)
	assert.Equal(t, 2, summary.Successes)
	assert.Equal(t, 1, summary.Failures)

	failed := summary.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "NOPE", failed[0].Symbol)
	assert.Equal(t, KindExhausted, failed[0].ErrorKind)
	assert.Contains(t, failed[0].Message, "NOPE")
	assert.Positive(t, summary.Results[2].RecordsWritten)
}

func TestSyncSymbolsRateLimitedOnceCoolsDownWithoutEscalation(t *testing.T) {
	store := memstore.New()
	src := newFakeSource()
	src.listing["AAPL"] = day("2024-03-01")
	primary := &flakyProvider{fakeSource: src, name: "primary", failures: 1}
	backup := &flakyProvider{fakeSource: newFakeSource(), name: "backup"}

	var waits []time.Duration
	orchestrator, err := fallback.New([]market.Provider{primary, backup},
		fallback.WithSleeper(func(ctx context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		}))
	require.NoError(t, err)

	summary, err := New(store, orchestrator, DefaultConfig(), WithClock(clock)).
		SyncSymbols(context.Background(), []string{"AAPL"}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Successes)
	assert.Equal(t, []time.Duration{fallback.DefaultCooldown}, waits)
	assert.Empty(t, backup.windows("AAPL"))
}

func TestSyncCancellationLeavesCommittedPrefix(t *testing.T) {
	store := memstore.New()
	src := newFakeSource()
	for _, sym := range []string{"AAA", "BBB", "CCC", "DDD"} {
		src.listing[sym] = day("2024-03-01")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src.onFetch = func(symbol string) {
		if symbol == "CCC" {
			cancel()
		}
	}

	summary, err := newJob(store, src).SyncSymbols(ctx, []string{"AAA", "BBB", "CCC", "DDD"}, false)
	require.NoError(t, err)
	assert.True(t, summary.Cancelled)
	require.Len(t, summary.Results, 2)
	assert.Equal(t, "AAA", summary.Results[0].Symbol)
	assert.Equal(t, "BBB", summary.Results[1].Symbol)
	assert.Equal(t, []string{"CCC", "DDD"}, summary.NotStarted)

	for _, sym := range []string{"AAA", "BBB"} {
		n, err := store.CountPrices(context.Background(), sym)
		require.NoError(t, err)
		assert.Positive(t, n)
	}
	for _, sym := range []string{"CCC", "DDD"} {
		n, err := store.CountPrices(context.Background(), sym)
		require.NoError(t, err)
		assert.Zero(t, n)
	}
}

func TestSyncAllYearsBack(t *testing.T) {
	store := memstore.New()
	src := newFakeSource()
	src.listing["OLD"] = day("2000-01-03")
	src.listing["NEW"] = day("2000-01-03")
	seed(t, store, "OLD", day("2024-01-02"), day("2024-01-05"))
	_, err := store.GetOrCreateSymbol(context.Background(), "NEW")
	require.NoError(t, err)

	summary, err := newJob(store, src).SyncAll(context.Background(), SyncAllOptions{YearsBack: 5})
	require.NoError(t, err)
	assert.Equal(t, ModeYearsBack, summary.Mode)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Successes)

	byName := map[string]SyncResult{}
	for _, r := range summary.Results {
		byName[r.Symbol] = r
	}
	assert.True(t, byName["OLD"].Skipped)
	assert.Equal(t, day("2019-03-15"), byName["NEW"].RangeStart)
	assert.Empty(t, src.windows("OLD"))
}

func TestSyncAllSeedsWatchlistWhenStoreEmpty(t *testing.T) {
	store := memstore.New()
	src := newFakeSource()
	src.listing["SPY"] = day("2024-03-11")
	cfg := DefaultConfig()
	cfg.Symbols = []string{"SPY"}

	summary, err := New(store, src, cfg, WithClock(clock)).SyncAll(context.Background(), SyncAllOptions{})
	require.NoError(t, err)
	assert.Equal(t, ModeIncremental, summary.Mode)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, 5, summary.Results[0].RecordsWritten)

	active, err := store.ActiveSymbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"SPY"}, active)
}

func TestReseedReplacesHistory(t *testing.T) {
	store := memstore.New()
	src := newFakeSource()
	src.listing["AAPL"] = day("2024-03-04")
	seed(t, store, "AAPL", day("2024-03-01"), day("2024-03-15"))

	summary, err := newJob(store, src).Reseed(context.Background(), []string{"AAPL"})
	require.NoError(t, err)
	assert.Equal(t, ModeReseed, summary.Mode)
	assert.Equal(t, 10, summary.Results[0].RecordsWritten)

	prices := store.Prices("AAPL")
	require.Len(t, prices, 10)
	assert.Equal(t, day("2024-03-04"), prices[0].Date)
	assert.Equal(t, "100", prices[0].Close.String())
}

func TestReseedKeepsHistoryWhenFetchFails(t *testing.T) {
	store := memstore.New()
	src := newFakeSource()
	src.listing["AAPL"] = day("2024-03-04")
	src.fail["AAPL"] = market.NewError(market.KindTransient, "fake", "AAPL", "502")
	seed(t, store, "AAPL", day("2024-03-01"), day("2024-03-15"))

	summary, err := newJob(store, src).Reseed(context.Background(), []string{"AAPL"})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Failures)
	assert.Equal(t, "Transient", summary.Results[0].ErrorKind)
	assert.Len(t, store.Prices("AAPL"), 15)
}

func TestReseedKeepsHistoryWhenNothingReturned(t *testing.T) {
	store := memstore.New()
	seed(t, store, "AAPL", day("2024-03-01"), day("2024-03-15"))

	summary, err := newJob(store, emptySource{earliest: day("2024-03-01")}).Reseed(context.Background(), []string{"AAPL"})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Failures)
	assert.Equal(t, KindNoData, summary.Results[0].ErrorKind)
	assert.Len(t, store.Prices("AAPL"), 15)
}

// emptySource knows the listing date but never returns bars.
type emptySource struct {
	earliest time.Time
}

func (emptySource) FetchRange(context.Context, string, time.Time, time.Time) ([]market.PricePoint, error) {
	return []market.PricePoint{}, nil
}

func (e emptySource) EarliestAvailable(context.Context, string) (time.Time, error) {
	return e.earliest, nil
}

func TestFirstSyncWithoutDataFails(t *testing.T) {
	store := memstore.New()

	summary, err := newJob(store, emptySource{earliest: day("2020-01-02")}).
		SyncSymbols(context.Background(), []string{"ZZZ"}, false)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Failures)
	assert.Equal(t, KindNoData, summary.Results[0].ErrorKind)
	assert.Contains(t, summary.Results[0].Message, "ZZZ")

	_, ok := store.Symbol("ZZZ")
	assert.False(t, ok, "no metadata is stamped for a symbol without bars")
}

// noLookupProvider serves bars but has no earliest date lookup.
type noLookupProvider struct {
	*flakyProvider
}

func (noLookupProvider) EarliestAvailable(ctx context.Context, _ string) (time.Time, error) {
	return market.FallbackEarliest, ctx.Err()
}

func TestFirstSyncConsultsChainForListingDate(t *testing.T) {
	primarySrc := newFakeSource()
	primarySrc.listing["GOOGL"] = day("2004-08-19")
	backupSrc := newFakeSource()
	backupSrc.listing["GOOGL"] = day("2004-08-19")
	primary := noLookupProvider{&flakyProvider{fakeSource: primarySrc, name: "alphavantage"}}
	backup := &flakyProvider{fakeSource: backupSrc, name: "yahoo"}

	orchestrator, err := fallback.New([]market.Provider{primary, backup})
	require.NoError(t, err)
	store := memstore.New()

	summary, err := New(store, orchestrator, DefaultConfig(), WithClock(clock)).
		SyncSymbols(context.Background(), []string{"GOOGL"}, false)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Successes)

	res := summary.Results[0]
	assert.Equal(t, day("2004-08-19"), res.RangeStart)
	assert.Equal(t, weekdaysBetween(day("2004-08-19"), day("2024-03-15")), res.RecordsWritten)
	assert.Equal(t, 1, backupSrc.earliest)
	assert.Empty(t, backupSrc.windows("GOOGL"), "bars still come from the primary")
}

func TestFirstSyncFromUnknownListingDateSkipsEmptyWindows(t *testing.T) {
	src := newFakeSource()
	src.listing["GOOGL"] = day("2004-08-19")
	only := noLookupProvider{&flakyProvider{fakeSource: src, name: "alphavantage"}}
	orchestrator, err := fallback.New([]market.Provider{only})
	require.NoError(t, err)

	summary, err := New(memstore.New(), orchestrator, DefaultConfig(), WithClock(clock)).
		SyncSymbols(context.Background(), []string{"GOOGL"}, false)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Successes)

	res := summary.Results[0]
	assert.Equal(t, market.FallbackEarliest, res.RangeStart)
	assert.Equal(t, weekdaysBetween(day("2004-08-19"), day("2024-03-15")), res.RecordsWritten)
}

func TestProviderTimeoutIsTransient(t *testing.T) {
	src := newFakeSource()
	src.listing["AAPL"] = day("2024-03-11")
	src.fail["AAPL"] = market.ClassifyTransport("twelvedata", "AAPL", &url.Error{
		Op:  "Get",
		URL: "https://api.twelvedata.com/time_series?apikey=secret-key&symbol=AAPL",
		Err: context.DeadlineExceeded,
	})

	summary, err := newJob(memstore.New(), src).SyncSymbols(context.Background(), []string{"AAPL"}, false)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Failures)
	assert.False(t, summary.Cancelled)
	assert.Equal(t, "Transient", summary.Results[0].ErrorKind)
	assert.NotContains(t, summary.Results[0].Message, "secret-key")
}

// racingStore simulates a concurrent writer that stores the last offered
// row just before the job's upsert lands.
type racingStore struct {
	*memstore.Store
}

func (s racingStore) Transact(ctx context.Context, fn func(context.Context, market.Store) error) error {
	return s.Store.Transact(ctx, func(ctx context.Context, _ market.Store) error {
		return fn(ctx, s)
	})
}

func (s racingStore) UpsertPrices(ctx context.Context, symbol string, points []market.PricePoint) (int, error) {
	if len(points) > 0 {
		if _, err := s.Store.UpsertPrices(ctx, symbol, points[len(points)-1:]); err != nil {
			return 0, err
		}
	}
	return s.Store.UpsertPrices(ctx, symbol, points)
}

func TestRecordsWrittenComesFromStore(t *testing.T) {
	src := newFakeSource()
	src.listing["AAPL"] = day("2024-03-11")
	exporter := &mockExporter{}

	summary, err := newJob(racingStore{memstore.New()}, src, WithExporter(exporter)).
		SyncSymbols(context.Background(), []string{"AAPL"}, false)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Successes)
	assert.Equal(t, 4, summary.Results[0].RecordsWritten)
	assert.Equal(t, 4, summary.TotalRecords)
	exporter.AssertNotCalled(t, "Export", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

type refusingGuard struct{}

func (refusingGuard) Acquire(context.Context) (func(), bool, error) { return nil, false, nil }

func TestRunGuardRefusesOverlap(t *testing.T) {
	_, err := newJob(memstore.New(), newFakeSource(), WithRunGuard(refusingGuard{})).
		SyncSymbols(context.Background(), []string{"AAPL"}, false)
	assert.ErrorIs(t, err, ErrRunInProgress)
}

func TestRunScheduledHonoursUpdateEnabled(t *testing.T) {
	cfg := DefaultConfig()
	disabled := false
	cfg.UpdateEnabled = &disabled

	summary, err := New(memstore.New(), newFakeSource(), cfg, WithClock(clock)).RunScheduled(context.Background())
	assert.ErrorIs(t, err, ErrUpdatesDisabled)
	assert.Nil(t, summary)
}

func TestPlanDoesNotFetch(t *testing.T) {
	store := memstore.New()
	src := newFakeSource()
	src.listing["SPY"] = day("1993-01-29")
	seed(t, store, "AAPL", day("2024-03-01"), day("2024-03-15"))

	plans, err := newJob(store, src).Plan(context.Background(), []string{"SPY", "AAPL"}, false)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, day("1993-01-29"), plans[0].Start)
	assert.Len(t, plans[0].Windows, 2)
	assert.True(t, plans[1].UpToDate)
	assert.Empty(t, plans[1].Windows)
	assert.Empty(t, src.windows("SPY"))
}

type mockRecorder struct{ mock.Mock }

func (m *mockRecorder) RecordResult(ctx context.Context, r SyncResult) error {
	return m.Called(ctx, r).Error(0)
}

func (m *mockRecorder) RecordSummary(ctx context.Context, s *SyncSummary) error {
	return m.Called(ctx, s).Error(0)
}

type mockExporter struct{ mock.Mock }

func (m *mockExporter) Export(ctx context.Context, symbol string, from, to time.Time, points []market.PricePoint) error {
	return m.Called(ctx, symbol, from, to, points).Error(0)
}

func TestHookErrorsDoNotFailSymbols(t *testing.T) {
	store := memstore.New()
	src := newFakeSource()
	src.listing["AAPL"] = day("2024-03-11")

	recorder := &mockRecorder{}
	recorder.On("RecordResult", mock.Anything, mock.MatchedBy(func(r SyncResult) bool { return r.Symbol == "AAPL" })).
		Return(errors.New("redis down")).Once()
	recorder.On("RecordSummary", mock.Anything, mock.AnythingOfType("*syncjob.SyncSummary")).
		Return(errors.New("redis down")).Once()
	exporter := &mockExporter{}
	exporter.On("Export", mock.Anything, "AAPL", day("2024-03-11"), day("2024-03-15"),
		mock.MatchedBy(func(p []market.PricePoint) bool { return len(p) == 5 })).
		Return(errors.New("disk full")).Once()

	summary, err := newJob(store, src, WithRecorder(recorder), WithExporter(exporter)).
		SyncSymbols(context.Background(), []string{"AAPL"}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Successes)
	recorder.AssertExpectations(t)
	exporter.AssertExpectations(t)
}

type failingStore struct {
	*memstore.Store
}

func (failingStore) Transact(context.Context, func(context.Context, market.Store) error) error {
	return errors.New("connection reset")
}

func TestStoreFailureIsReportedPerSymbol(t *testing.T) {
	src := newFakeSource()
	src.listing["AAPL"] = day("2024-03-11")

	summary, err := newJob(failingStore{memstore.New()}, src).SyncSymbols(context.Background(), []string{"AAPL"}, false)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Failures)
	assert.Equal(t, KindStorage, summary.Results[0].ErrorKind)
	assert.Contains(t, summary.Results[0].Message, "connection reset")
}

// flakyProvider adapts fakeSource to market.Provider and fails the first
// few fetches with RateLimited.
type flakyProvider struct {
	*fakeSource
	name     string
	failures int
}

func (p *flakyProvider) FetchRange(ctx context.Context, symbol string, from, to time.Time) ([]market.PricePoint, error) {
	p.mu.Lock()
	if p.failures > 0 {
		p.failures--
		p.mu.Unlock()
		return nil, market.NewError(market.KindRateLimited, p.name, symbol, "429")
	}
	p.mu.Unlock()
	return p.fakeSource.FetchRange(ctx, symbol, from, to)
}

func (p *flakyProvider) HealthCheck(context.Context) bool { return true }
func (p *flakyProvider) Name() string                     { return p.name }

func asProvider(src *fakeSource) market.Provider {
	return &flakyProvider{fakeSource: src, name: "fake"}
}

type countingRecorder struct {
	results, summaries int
	err                error
}

func (c *countingRecorder) RecordResult(context.Context, SyncResult) error {
	c.results++
	return c.err
}

func (c *countingRecorder) RecordSummary(context.Context, *SyncSummary) error {
	c.summaries++
	return c.err
}

func TestRecordersFanOut(t *testing.T) {
	ok := &countingRecorder{}
	bad := &countingRecorder{err: errors.New("redis down")}
	rs := Recorders{bad, ok}

	err := rs.RecordResult(context.Background(), SyncResult{Symbol: "AAA"})
	require.ErrorContains(t, err, "redis down")
	require.NoError(t, Recorders{ok}.RecordSummary(context.Background(), &SyncSummary{}))

	assert.Equal(t, 1, bad.results)
	assert.Equal(t, 1, ok.results)
	assert.Equal(t, 1, ok.summaries)
}
