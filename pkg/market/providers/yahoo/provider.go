package yahoo

import (
	"context"
	"net/http"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"pricesync/pkg/market"
	"pricesync/pkg/ratelimit"
)

const defaultProviderTimeout = 20 * time.Second

// Provider adapts the Yahoo chart API to market.Provider.
type Provider struct {
	client  *Client
	timeout time.Duration
	now     func() time.Time
}

type providerConfig struct {
	timeout      time.Duration
	clientConfig []Option
}

// ProviderOption customises the provider.
type ProviderOption func(*providerConfig)

// WithTimeout bounds health checks and earliest date lookups.
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

// NewProvider constructs a Yahoo provider.
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
			WithBaseURL(cfg.BaseURL),
			WithUserAgent(cfg.UserAgent),
		}
		if cfg.Timeout > 0 {
			opts = append(opts, WithTimeout(cfg.Timeout))
		}
		if cfg.HTTPTimeout > 0 {
			clientOptions = append(clientOptions, WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}))
		}
		requests := cfg.RateLimit.Requests
		if requests == 0 {
			requests = DefaultRequestsPerMinute
		}
		clientOptions = append(clientOptions, WithLimiter(ratelimit.New(requests, cfg.RateLimit.Window, ratelimit.WithName(name))))
		return NewProvider(append(opts, WithClientOptions(clientOptions...))...), nil
	})
}

// Name implements market.Provider.
func (p *Provider) Name() string { return p.client.name }

// FetchRange implements market.Provider.
func (p *Provider) FetchRange(ctx context.Context, symbol string, from, to time.Time) ([]market.PricePoint, error) {
	result, err := p.client.Chart(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}
	points := p.client.Points(ctx, symbol, result)
	return market.WithinRange(market.NormalizePoints(points), from, to), nil
}

// EarliestAvailable implements market.Provider using meta.firstTradeDate.
// A one-week request is enough to receive the instrument meta.
func (p *Provider) EarliestAvailable(ctx context.Context, symbol string) (time.Time, error) {
	from, to := market.HealthWindow(p.now())
	result, err := p.client.Chart(ctx, symbol, from, to)
	if err != nil {
		if ctx.Err() != nil {
			return time.Time{}, ctx.Err()
		}
		if market.IsKind(err, market.KindRateLimited) {
			return time.Time{}, err
		}
		logx.WithContext(ctx).Infof("%s: first trade date unavailable symbol=%s err=%v, using %s",
			p.Name(), symbol, err, market.FormatDay(market.FallbackEarliest))
		return market.FallbackEarliest, nil
	}
	if result.Meta.FirstTradeDate == nil {
		return market.FallbackEarliest, nil
	}
	offset := time.Duration(result.Meta.GMTOffset) * time.Second
	return market.Day(time.Unix(*result.Meta.FirstTradeDate, 0).Add(offset)), nil
}

// HealthCheck implements market.Provider.
func (p *Provider) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	from, to := market.HealthWindow(p.now())
	if _, err := p.client.Chart(ctx, market.HealthSymbol, from, to); err != nil {
		logx.WithContext(ctx).Errorf("%s: health check failed err=%v", p.Name(), err)
		return false
	}
	return true
}
