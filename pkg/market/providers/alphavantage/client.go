package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"pricesync/pkg/market"
	"pricesync/pkg/ratelimit"
)

const (
	providerType       = "alphavantage"
	defaultBaseURL     = "https://www.alphavantage.co/query"
	defaultHTTPTimeout = 30 * time.Second
	// DefaultRequestsPerMinute matches the free tier quota.
	DefaultRequestsPerMinute = 5
)

// Client wraps the Alpha Vantage query endpoint.
type Client struct {
	name       string
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient injects a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBaseURL overrides the query endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = strings.TrimSpace(key)
	}
}

// WithLimiter replaces the default call budget.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) {
		if l != nil {
			c.limiter = l
		}
	}
}

// WithName overrides the provider name.
func WithName(name string) Option {
	return func(c *Client) {
		if strings.TrimSpace(name) != "" {
			c.name = name
		}
	}
}

// NewClient constructs an Alpha Vantage client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		name:       providerType,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.limiter == nil {
		c.limiter = ratelimit.New(DefaultRequestsPerMinute, ratelimit.DefaultWindow, ratelimit.WithName(c.name))
	}
	return c
}

// DailyAdjusted downloads the full daily adjusted history of symbol.
func (c *Client) DailyAdjusted(ctx context.Context, symbol string) ([]market.PricePoint, error) {
	if c.apiKey == "" {
		return nil, market.NewError(market.KindConfigMissing, c.name, symbol, "api key not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("function", "TIME_SERIES_DAILY_ADJUSTED")
	query.Set("symbol", symbol)
	query.Set("outputsize", "full")
	query.Set("apikey", c.apiKey)
	body, err := market.Get(ctx, c.httpClient, c.name, symbol, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var payload DailyAdjustedResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, market.WrapError(market.KindInvalid, c.name, symbol, fmt.Errorf("decode response: %w", err))
	}
	switch {
	case payload.ErrorMessage != "":
		return nil, market.NewError(market.KindNotFound, c.name, symbol, market.Truncate(payload.ErrorMessage, 160))
	case payload.Note != "":
		return nil, market.NewError(market.KindRateLimited, c.name, symbol, market.Truncate(payload.Note, 160))
	case payload.Information != "":
		return nil, market.NewError(market.KindRateLimited, c.name, symbol, market.Truncate(payload.Information, 160))
	}
	if len(payload.TimeSeries) == 0 {
		logx.WithContext(ctx).Infof("%s: no time series returned symbol=%s", c.name, symbol)
		return []market.PricePoint{}, nil
	}

	points := make([]market.PricePoint, 0, len(payload.TimeSeries))
	for date, entry := range payload.TimeSeries {
		point, err := parseEntry(date, entry)
		if err != nil {
			logx.WithContext(ctx).Debugf("%s: skip record symbol=%s date=%q err=%v", c.name, symbol, date, err)
			continue
		}
		points = append(points, point)
	}
	return points, nil
}

func parseEntry(date string, e DailyEntry) (market.PricePoint, error) {
	day, err := market.ParseDay(date)
	if err != nil {
		return market.PricePoint{}, fmt.Errorf("date: %w", err)
	}
	point := market.PricePoint{Date: day}
	for _, f := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"open", e.Open, &point.Open},
		{"high", e.High, &point.High},
		{"low", e.Low, &point.Low},
		{"close", e.Close, &point.Close},
	} {
		v, err := decimal.NewFromString(strings.TrimSpace(f.raw))
		if err != nil {
			return market.PricePoint{}, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}
	if raw := strings.TrimSpace(e.AdjustedClose); raw != "" {
		adj, err := decimal.NewFromString(raw)
		if err != nil {
			return market.PricePoint{}, fmt.Errorf("adjusted close: %w", err)
		}
		point.AdjustedClose = decimal.NewNullDecimal(adj)
	}
	if raw := strings.TrimSpace(e.Volume); raw != "" {
		volume, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return market.PricePoint{}, fmt.Errorf("volume: %w", err)
		}
		point.Volume = volume
	}
	return point, point.Validate()
}
