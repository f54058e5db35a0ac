package fallback

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"pricesync/pkg/market"
	"pricesync/pkg/market/mocks"
)

var (
	from = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to   = time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
)

type recordingSleeper struct {
	mu     sync.Mutex
	waits  []time.Duration
	result error
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	if s.result != nil {
		return s.result
	}
	return ctx.Err()
}

func newMockProvider(ctrl *gomock.Controller, name string) *mocks.MockProvider {
	p := mocks.NewMockProvider(ctrl)
	p.EXPECT().Name().Return(name).AnyTimes()
	return p
}

func samplePoints() []market.PricePoint {
	return []market.PricePoint{{Date: from, Close: decimal.NewFromInt(100)}}
}

func providerErr(kind market.ErrorKind, provider string) error {
	return market.NewError(kind, provider, "AAPL", kind.String())
}

func newOrchestrator(t *testing.T, sleeper *recordingSleeper, providers ...market.Provider) *Orchestrator {
	t.Helper()
	o, err := New(providers, WithSleeper(sleeper.Sleep), WithCooldown(time.Minute), WithTransientDelay(time.Second))
	require.NoError(t, err)
	return o
}

func TestFetchRangePrimarySucceeds(t *testing.T) {
	ctrl := gomock.NewController(t)
	primary := newMockProvider(ctrl, "twelvedata")
	backup := newMockProvider(ctrl, "alphavantage")
	primary.EXPECT().FetchRange(gomock.Any(), "AAPL", from, to).Return(samplePoints(), nil)

	sleeper := &recordingSleeper{}
	points, err := newOrchestrator(t, sleeper, primary, backup).FetchRange(context.Background(), "AAPL", from, to)
	require.NoError(t, err)
	assert.Len(t, points, 1)
	assert.Empty(t, sleeper.waits)
}

func TestFetchRangeRateLimitedEscalatesAfterOneRetry(t *testing.T) {
	ctrl := gomock.NewController(t)
	primary := newMockProvider(ctrl, "twelvedata")
	backup := newMockProvider(ctrl, "alphavantage")
	gomock.InOrder(
		primary.EXPECT().FetchRange(gomock.Any(), "AAPL", from, to).Return(nil, providerErr(market.KindRateLimited, "twelvedata")).Times(2),
		backup.EXPECT().FetchRange(gomock.Any(), "AAPL", from, to).Return(samplePoints(), nil).Times(1),
	)

	sleeper := &recordingSleeper{}
	points, err := newOrchestrator(t, sleeper, primary, backup).FetchRange(context.Background(), "AAPL", from, to)
	require.NoError(t, err)
	assert.Len(t, points, 1)
	assert.Equal(t, []time.Duration{time.Minute}, sleeper.waits)
}

func TestFetchRangeSingleRateLimitRecoversWithoutEscalation(t *testing.T) {
	ctrl := gomock.NewController(t)
	primary := newMockProvider(ctrl, "twelvedata")
	backup := newMockProvider(ctrl, "alphavantage")
	gomock.InOrder(
		primary.EXPECT().FetchRange(gomock.Any(), "AAPL", from, to).Return(nil, providerErr(market.KindRateLimited, "twelvedata")),
		primary.EXPECT().FetchRange(gomock.Any(), "AAPL", from, to).Return(samplePoints(), nil),
	)
	backup.EXPECT().FetchRange(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	sleeper := &recordingSleeper{}
	_, err := newOrchestrator(t, sleeper, primary, backup).FetchRange(context.Background(), "AAPL", from, to)
	require.NoError(t, err)
	assert.Len(t, sleeper.waits, 1, "exactly one cooldown")
}

func TestFetchRangeEscalationPolicy(t *testing.T) {
	tests := []struct {
		name         string
		kind         market.ErrorKind
		primaryCalls int
		wantWaits    []time.Duration
	}{
		{name: "transient retried once", kind: market.KindTransient, primaryCalls: 2, wantWaits: []time.Duration{time.Second}},
		{name: "not found escalates immediately", kind: market.KindNotFound, primaryCalls: 1},
		{name: "invalid escalates immediately", kind: market.KindInvalid, primaryCalls: 1},
		{name: "config missing is skipped", kind: market.KindConfigMissing, primaryCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			primary := newMockProvider(ctrl, "twelvedata")
			backup := newMockProvider(ctrl, "yahoo")
			primary.EXPECT().FetchRange(gomock.Any(), "AAPL", from, to).
				Return(nil, providerErr(tt.kind, "twelvedata")).Times(tt.primaryCalls)
			backup.EXPECT().FetchRange(gomock.Any(), "AAPL", from, to).Return(samplePoints(), nil)

			sleeper := &recordingSleeper{}
			_, err := newOrchestrator(t, sleeper, primary, backup).FetchRange(context.Background(), "AAPL", from, to)
			require.NoError(t, err)
			assert.Equal(t, tt.wantWaits, sleeper.waits)
		})
	}
}

func TestFetchRangeExhausted(t *testing.T) {
	ctrl := gomock.NewController(t)
	primary := newMockProvider(ctrl, "twelvedata")
	middle := newMockProvider(ctrl, "alphavantage")
	last := newMockProvider(ctrl, "yahoo")
	primary.EXPECT().FetchRange(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, providerErr(market.KindConfigMissing, "twelvedata"))
	middle.EXPECT().FetchRange(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, providerErr(market.KindNotFound, "alphavantage"))
	last.EXPECT().FetchRange(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, providerErr(market.KindTransient, "yahoo")).Times(2)

	sleeper := &recordingSleeper{}
	_, err := newOrchestrator(t, sleeper, primary, middle, last).FetchRange(context.Background(), "AAPL", from, to)
	require.Error(t, err)

	var exhausted *ExhaustedProvidersError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, "AAPL", exhausted.Symbol)
	assert.Equal(t, []string{"twelvedata"}, exhausted.Skipped)
	require.Len(t, exhausted.Attempts, 2)
	assert.Equal(t, "alphavantage", exhausted.Attempts[0].Provider)
	assert.Equal(t, "yahoo", exhausted.Attempts[1].Provider)
	assert.True(t, market.IsKind(err, market.KindNotFound))
	assert.True(t, IsExhausted(err))
	assert.Contains(t, err.Error(), "skipped: twelvedata")
}

func TestFetchRangeCancelledDuringCooldown(t *testing.T) {
	ctrl := gomock.NewController(t)
	primary := newMockProvider(ctrl, "twelvedata")
	backup := newMockProvider(ctrl, "yahoo")
	primary.EXPECT().FetchRange(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, providerErr(market.KindRateLimited, "twelvedata"))
	backup.EXPECT().FetchRange(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	ctx, cancel := context.WithCancel(context.Background())
	sleeper := &recordingSleeper{}
	o, err := New([]market.Provider{primary, backup}, WithSleeper(func(c context.Context, d time.Duration) error {
		cancel()
		return sleeper.Sleep(c, d)
	}))
	require.NoError(t, err)

	_, err = o.FetchRange(ctx, "AAPL", from, to)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsExhausted(err))
}

func TestEarliestAvailableEscalates(t *testing.T) {
	ctrl := gomock.NewController(t)
	primary := newMockProvider(ctrl, "twelvedata")
	backup := newMockProvider(ctrl, "yahoo")
	want := time.Date(1999, 5, 3, 0, 0, 0, 0, time.UTC)
	primary.EXPECT().EarliestAvailable(gomock.Any(), "QQQ").Return(time.Time{}, providerErr(market.KindConfigMissing, "twelvedata"))
	backup.EXPECT().EarliestAvailable(gomock.Any(), "QQQ").Return(want, nil)

	got, err := newOrchestrator(t, &recordingSleeper{}, primary, backup).EarliestAvailable(context.Background(), "QQQ")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestEarliestAvailableWalksPastUnknownDates(t *testing.T) {
	want := time.Date(2004, 8, 19, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		backup func(p *mocks.MockProvider)
		want   time.Time
	}{
		{
			name: "later provider knows the date",
			backup: func(p *mocks.MockProvider) {
				p.EXPECT().EarliestAvailable(gomock.Any(), "GOOGL").Return(want, nil)
			},
			want: want,
		},
		{
			name: "nobody knows",
			backup: func(p *mocks.MockProvider) {
				p.EXPECT().EarliestAvailable(gomock.Any(), "GOOGL").Return(market.FallbackEarliest, nil)
			},
			want: market.FallbackEarliest,
		},
		{
			name: "unknown beats a failing provider",
			backup: func(p *mocks.MockProvider) {
				p.EXPECT().EarliestAvailable(gomock.Any(), "GOOGL").Return(time.Time{}, providerErr(market.KindNotFound, "yahoo"))
			},
			want: market.FallbackEarliest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			primary := newMockProvider(ctrl, "alphavantage")
			backup := newMockProvider(ctrl, "yahoo")
			primary.EXPECT().EarliestAvailable(gomock.Any(), "GOOGL").Return(market.FallbackEarliest, nil)
			tt.backup(backup)

			got, err := newOrchestrator(t, &recordingSleeper{}, primary, backup).EarliestAvailable(context.Background(), "GOOGL")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEarliestAvailableExhausted(t *testing.T) {
	ctrl := gomock.NewController(t)
	primary := newMockProvider(ctrl, "twelvedata")
	primary.EXPECT().EarliestAvailable(gomock.Any(), "QQQ").Return(time.Time{}, providerErr(market.KindInvalid, "twelvedata"))

	_, err := newOrchestrator(t, &recordingSleeper{}, primary).EarliestAvailable(context.Background(), "QQQ")
	require.Error(t, err)
	assert.True(t, IsExhausted(err))
}

type slowEarliest struct {
	calls atomic.Int32
	gate  chan struct{}
}

func (s *slowEarliest) FetchRange(context.Context, string, time.Time, time.Time) ([]market.PricePoint, error) {
	return nil, errors.New("unused")
}

func (s *slowEarliest) EarliestAvailable(ctx context.Context, symbol string) (time.Time, error) {
	s.calls.Add(1)
	<-s.gate
	return market.FallbackEarliest, nil
}

func (s *slowEarliest) HealthCheck(context.Context) bool { return true }
func (s *slowEarliest) Name() string                     { return "slow" }

func TestEarliestAvailableCollapsesConcurrentLookups(t *testing.T) {
	p := &slowEarliest{gate: make(chan struct{})}
	o, err := New([]market.Provider{p})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := o.EarliestAvailable(context.Background(), "SPY")
			assert.NoError(t, err)
			assert.Equal(t, market.FallbackEarliest, got)
		}()
	}
	require.Eventually(t, func() bool { return p.calls.Load() >= 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(p.gate)
	wg.Wait()
	assert.LessOrEqual(t, p.calls.Load(), int32(8))
	assert.GreaterOrEqual(t, p.calls.Load(), int32(1))
}

func TestHealthReportsInChainOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	primary := newMockProvider(ctrl, "twelvedata")
	backup := newMockProvider(ctrl, "yahoo")
	primary.EXPECT().HealthCheck(gomock.Any()).Return(false)
	backup.EXPECT().HealthCheck(gomock.Any()).Return(true)

	o := newOrchestrator(t, &recordingSleeper{}, primary, backup)
	health := o.Health(context.Background())
	require.Len(t, health, 2)
	assert.Equal(t, "twelvedata", health[0].Name)
	assert.False(t, health[0].Healthy)
	assert.Equal(t, "yahoo", health[1].Name)
	assert.True(t, health[1].Healthy)
	assert.Equal(t, []string{"twelvedata", "yahoo"}, o.Providers())
}

func TestNewRequiresProviders(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNoProviders)
}
