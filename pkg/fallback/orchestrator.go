package fallback

import (
	"context"
	"errors"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"pricesync/pkg/market"
	"pricesync/pkg/ratelimit"
)

const (
	// DefaultCooldown is waited before retrying a rate limited provider.
	DefaultCooldown = 60 * time.Second
	// DefaultTransientRetries is the number of extra attempts on transient failure.
	DefaultTransientRetries = 1
	// DefaultTransientDelay separates transient retries.
	DefaultTransientDelay = 2 * time.Second
)

// Orchestrator tries providers in a fixed order and escalates on classified
// failure. It satisfies market.Provider itself.
type Orchestrator struct {
	providers        []market.Provider
	cooldown         time.Duration
	transientRetries int
	transientDelay   time.Duration
	sleep            func(ctx context.Context, d time.Duration) error

	earliest singleflight.Group
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCooldown overrides the rate limit cooldown.
func WithCooldown(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.cooldown = d
		}
	}
}

// WithTransientRetries overrides how often a transient failure is retried on
// the same provider.
func WithTransientRetries(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.transientRetries = n
		}
	}
}

// WithTransientDelay overrides the pause between transient retries.
func WithTransientDelay(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.transientDelay = d
		}
	}
}

// WithSleeper injects the wait used for cooldowns.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) {
		if sleep != nil {
			o.sleep = sleep
		}
	}
}

// New builds an orchestrator over providers in escalation order.
func New(providers []market.Provider, opts ...Option) (*Orchestrator, error) {
	chain := make([]market.Provider, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			chain = append(chain, p)
		}
	}
	if len(chain) == 0 {
		return nil, ErrNoProviders
	}
	o := &Orchestrator{
		providers:        chain,
		cooldown:         DefaultCooldown,
		transientRetries: DefaultTransientRetries,
		transientDelay:   DefaultTransientDelay,
		sleep:            ratelimit.Sleep,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Name implements market.Provider.
func (o *Orchestrator) Name() string { return "fallback" }

// Providers returns the provider names in escalation order.
func (o *Orchestrator) Providers() []string {
	names := make([]string, 0, len(o.providers))
	for _, p := range o.providers {
		names = append(names, p.Name())
	}
	return names
}

// FetchRange implements market.Provider by walking the chain.
func (o *Orchestrator) FetchRange(ctx context.Context, symbol string, from, to time.Time) ([]market.PricePoint, error) {
	return run(ctx, o, symbol, "fetch", func(ctx context.Context, p market.Provider) ([]market.PricePoint, error) {
		return p.FetchRange(ctx, symbol, from, to)
	})
}

// EarliestAvailable implements market.Provider. Concurrent lookups of the
// same symbol share one walk of the chain. A provider answering
// market.FallbackEarliest has no lookup for the symbol, so the walk moves on;
// FallbackEarliest is returned only when no provider knew a real date.
func (o *Orchestrator) EarliestAvailable(ctx context.Context, symbol string) (time.Time, error) {
	v, err, _ := o.earliest.Do(symbol, func() (any, error) {
		return o.walkEarliest(ctx, symbol)
	})
	if err != nil {
		return time.Time{}, err
	}
	return v.(time.Time), nil
}

func (o *Orchestrator) walkEarliest(ctx context.Context, symbol string) (time.Time, error) {
	call := func(ctx context.Context, p market.Provider) (time.Time, error) {
		return p.EarliestAvailable(ctx, symbol)
	}
	exhausted := &ExhaustedProvidersError{Symbol: symbol}
	unknown := false
	for _, p := range o.providers {
		day, res, err := attempt(ctx, o, p, symbol, "earliest", call)
		if err == nil {
			if !market.IsFallbackEarliest(day) {
				return day, nil
			}
			logx.WithContext(ctx).Debugf("fallback: no earliest date from provider=%s symbol=%s", p.Name(), symbol)
			unknown = true
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return time.Time{}, ctxErr
		}
		exhausted.note(ctx, p.Name(), "earliest", res, err)
	}
	if unknown {
		return market.FallbackEarliest, nil
	}
	return time.Time{}, exhausted
}

// ProviderHealth is the outcome of probing one provider.
type ProviderHealth struct {
	Name    string        `json:"name"`
	Healthy bool          `json:"healthy"`
	Elapsed time.Duration `json:"elapsed"`
}

// Health checks every provider concurrently and reports in chain order.
func (o *Orchestrator) Health(ctx context.Context) []ProviderHealth {
	results := make([]ProviderHealth, len(o.providers))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range o.providers {
		i, p := i, p
		g.Go(func() error {
			start := time.Now()
			healthy := p.HealthCheck(gctx)
			results[i] = ProviderHealth{Name: p.Name(), Healthy: healthy, Elapsed: time.Since(start)}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// HealthCheck implements market.Provider: healthy when any provider is.
func (o *Orchestrator) HealthCheck(ctx context.Context) bool {
	for _, h := range o.Health(ctx) {
		if h.Healthy {
			return true
		}
	}
	return false
}

type outcome int

const (
	outcomeEscalate outcome = iota
	outcomeSkip
)

func run[T any](ctx context.Context, o *Orchestrator, symbol, op string, call func(context.Context, market.Provider) (T, error)) (T, error) {
	var zero T
	exhausted := &ExhaustedProvidersError{Symbol: symbol}
	for _, p := range o.providers {
		val, res, err := attempt(ctx, o, p, symbol, op, call)
		if err == nil {
			return val, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
		exhausted.note(ctx, p.Name(), op, res, err)
	}
	return zero, exhausted
}

func (e *ExhaustedProvidersError) note(ctx context.Context, provider, op string, res outcome, err error) {
	switch res {
	case outcomeSkip:
		logx.WithContext(ctx).Infof("fallback: skip provider=%s op=%s symbol=%s err=%v", provider, op, e.Symbol, err)
		e.Skipped = append(e.Skipped, provider)
	default:
		logx.WithContext(ctx).Errorf("fallback: escalate from provider=%s op=%s symbol=%s err=%v", provider, op, e.Symbol, err)
		e.Attempts = append(e.Attempts, Attempt{Provider: provider, Err: err})
	}
}

// attempt drives one provider through its retry budget.
func attempt[T any](ctx context.Context, o *Orchestrator, p market.Provider, symbol, op string, call func(context.Context, market.Provider) (T, error)) (T, outcome, error) {
	var zero T
	cooledDown := false
	transientLeft := o.transientRetries
	for {
		if err := ctx.Err(); err != nil {
			return zero, outcomeEscalate, err
		}
		val, err := call(ctx, p)
		if err == nil {
			return val, outcomeEscalate, nil
		}
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return zero, outcomeEscalate, err
		}

		var wait time.Duration
		switch market.KindOf(err) {
		case market.KindConfigMissing:
			return zero, outcomeSkip, err
		case market.KindRateLimited:
			if cooledDown {
				return zero, outcomeEscalate, err
			}
			cooledDown = true
			wait = o.cooldown
			logx.WithContext(ctx).Infof("fallback: rate limited provider=%s op=%s symbol=%s, cooling down %s", p.Name(), op, symbol, wait)
		case market.KindTransient:
			if transientLeft <= 0 {
				return zero, outcomeEscalate, err
			}
			transientLeft--
			wait = o.transientDelay
			logx.WithContext(ctx).Infof("fallback: transient failure provider=%s op=%s symbol=%s err=%v, retrying", p.Name(), op, symbol, err)
		default:
			return zero, outcomeEscalate, err
		}
		if err := o.sleep(ctx, wait); err != nil {
			return zero, outcomeEscalate, err
		}
	}
}
