package twelvedata

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"pricesync/pkg/market"
	"pricesync/pkg/ratelimit"
)

// defaultProviderTimeout bounds health checks. Data calls are bounded by the
// http.Client timeout instead so that limiter waits are not cut short.
const defaultProviderTimeout = 30 * time.Second

// Provider exposes the Twelve Data client through market.Provider.
type Provider struct {
	client  *Client
	timeout time.Duration
	now     func() time.Time
}

type providerConfig struct {
	timeout      time.Duration
	clientConfig []Option
}

// ProviderOption customises the Twelve Data provider.
type ProviderOption func(*providerConfig)

// WithTimeout overrides the default per-call timeout.
func WithTimeout(timeout time.Duration) ProviderOption {
	return func(cfg *providerConfig) {
		if timeout > 0 {
			cfg.timeout = timeout
		}
	}
}

// WithClientOptions passes options to the underlying client.
func WithClientOptions(options ...Option) ProviderOption {
	return func(cfg *providerConfig) {
		cfg.clientConfig = append(cfg.clientConfig, options...)
	}
}

// NewProvider constructs a Twelve Data market provider.
func NewProvider(opts ...ProviderOption) *Provider {
	cfg := &providerConfig{timeout: defaultProviderTimeout}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Provider{
		client:  NewClient(cfg.clientConfig...),
		timeout: cfg.timeout,
		now:     time.Now,
	}
}

func init() {
	market.RegisterProvider(providerType, func(name string, cfg *market.ProviderConfig) (market.Provider, error) {
		opts := []ProviderOption{}
		clientOptions := []Option{
			WithName(name),
			WithAPIKey(cfg.APIKey),
			WithBaseURL(cfg.BaseURL),
		}
		if cfg.Timeout > 0 {
			opts = append(opts, WithTimeout(cfg.Timeout))
		}
		if cfg.HTTPTimeout > 0 {
			clientOptions = append(clientOptions, WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}))
		}
		if cfg.UserAgent != "" {
			clientOptions = append(clientOptions, WithUserAgent(cfg.UserAgent))
		}
		requests := cfg.RateLimit.Requests
		if requests == 0 {
			requests = DefaultRequestsPerMinute
		}
		clientOptions = append(clientOptions, WithLimiter(ratelimit.New(requests, cfg.RateLimit.Window, ratelimit.WithName(name))))
		if cfg.AssumeAdjusted != nil {
			clientOptions = append(clientOptions, WithAssumeAdjusted(*cfg.AssumeAdjusted))
		}
		return NewProvider(append(opts, WithClientOptions(clientOptions...))...), nil
	})
}

// Name implements market.Provider.
func (p *Provider) Name() string {
	return p.client.name
}

// FetchRange implements market.Provider.
func (p *Provider) FetchRange(ctx context.Context, symbol string, from, to time.Time) ([]market.PricePoint, error) {
	points, err := p.client.TimeSeries(ctx, symbol, market.Day(from), market.Day(to))
	if err != nil {
		return nil, err
	}
	if len(points) >= MaxOutputSize {
		logx.WithContext(ctx).Infof("%s: output cap reached symbol=%s from=%s to=%s, older bars may be missing",
			p.Name(), symbol, market.FormatDay(from), market.FormatDay(to))
	}
	return market.WithinRange(market.NormalizePoints(points), from, to), nil
}

// EarliestAvailable implements market.Provider. Lookup failures other than
// quota, missing configuration or cancellation fall back to FallbackEarliest.
func (p *Provider) EarliestAvailable(ctx context.Context, symbol string) (time.Time, error) {
	day, err := p.client.EarliestTimestamp(ctx, symbol)
	if err == nil {
		return day, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return time.Time{}, err
	}
	switch market.KindOf(err) {
	case market.KindRateLimited, market.KindConfigMissing:
		return time.Time{}, err
	}
	logx.WithContext(ctx).Infof("%s: earliest_timestamp unavailable symbol=%s err=%v, using %s",
		p.Name(), symbol, err, market.FormatDay(market.FallbackEarliest))
	return market.FallbackEarliest, nil
}

// HealthCheck implements market.Provider.
func (p *Provider) HealthCheck(ctx context.Context) bool {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	from, to := market.HealthWindow(p.now())
	if _, err := p.client.TimeSeries(ctx, market.HealthSymbol, from, to); err != nil {
		logx.WithContext(ctx).Errorf("%s: health check failed err=%v", p.Name(), err)
		return false
	}
	return true
}

func (p *Provider) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}
