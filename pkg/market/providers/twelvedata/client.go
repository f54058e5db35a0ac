package twelvedata

import (
	"context"
	"encoding/json"
	"errors"
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
	providerType       = "twelvedata"
	defaultBaseURL     = "https://api.twelvedata.com"
	defaultHTTPTimeout = 20 * time.Second
	// MaxOutputSize is the per-call record cap of /time_series.
	MaxOutputSize = 5000
	// DefaultRequestsPerMinute matches the free plan quota.
	DefaultRequestsPerMinute = 8
)

// errNoData marks "no data for these dates", which is an empty result rather
// than a failure.
var errNoData = errors.New("twelvedata: no data for requested range")

// Client wraps the Twelve Data REST API.
type Client struct {
	name           string
	baseURL        string
	apiKey         string
	httpClient     *http.Client
	limiter        *ratelimit.Limiter
	assumeAdjusted bool
	header         http.Header
}

// Option configures a new Client.
type Option func(*Client)

// WithHTTPClient injects a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBaseURL overrides the API root.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithAPIKey sets the API key sent on every call.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = strings.TrimSpace(key)
	}
}

// WithLimiter replaces the default 8 calls/minute budget.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) {
		if l != nil {
			c.limiter = l
		}
	}
}

// WithName overrides the provider name used in errors.
func WithName(name string) Option {
	return func(c *Client) {
		if strings.TrimSpace(name) != "" {
			c.name = name
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.header.Set("User-Agent", ua)
		}
	}
}

// WithAssumeAdjusted controls whether close is copied into adjusted close.
// Series requested with adjust=all are documented as split and dividend
// adjusted; this has not been verified independently.
func WithAssumeAdjusted(v bool) Option {
	return func(c *Client) {
		c.assumeAdjusted = v
	}
}

// NewClient constructs a Twelve Data API client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		name:           providerType,
		baseURL:        defaultBaseURL,
		httpClient:     &http.Client{Timeout: defaultHTTPTimeout},
		assumeAdjusted: true,
		header:         http.Header{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.limiter == nil {
		c.limiter = ratelimit.New(DefaultRequestsPerMinute, ratelimit.DefaultWindow, ratelimit.WithName(c.name))
	}
	return c
}

// TimeSeries fetches daily bars for [from, to]. The result is unsorted as
// delivered by the API; callers normalise it.
func (c *Client) TimeSeries(ctx context.Context, symbol string, from, to time.Time) ([]market.PricePoint, error) {
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("interval", "1day")
	query.Set("start_date", market.FormatDay(from))
	query.Set("end_date", market.FormatDay(to))
	query.Set("outputsize", strconv.Itoa(MaxOutputSize))
	query.Set("adjust", "all")
	query.Set("order", "ASC")

	var payload TimeSeriesResponse
	if err := c.get(ctx, symbol, "/time_series", query, &payload); err != nil {
		if errors.Is(err, errNoData) {
			return []market.PricePoint{}, nil
		}
		return nil, err
	}

	points := make([]market.PricePoint, 0, len(payload.Values))
	for _, v := range payload.Values {
		point, err := c.parseValue(v)
		if err != nil {
			logx.WithContext(ctx).Debugf("%s: skip record symbol=%s datetime=%q err=%v", c.name, symbol, v.Datetime, err)
			continue
		}
		points = append(points, point)
	}
	return points, nil
}

// EarliestTimestamp returns the first daily bar available for symbol.
func (c *Client) EarliestTimestamp(ctx context.Context, symbol string) (time.Time, error) {
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("interval", "1day")

	var payload EarliestTimestampResponse
	if err := c.get(ctx, symbol, "/earliest_timestamp", query, &payload); err != nil {
		return time.Time{}, err
	}
	if payload.Datetime == "" {
		return time.Time{}, market.NewError(market.KindInvalid, c.name, symbol, "earliest_timestamp without datetime")
	}
	day, err := market.ParseDay(firstDateToken(payload.Datetime))
	if err != nil {
		return time.Time{}, market.WrapError(market.KindInvalid, c.name, symbol, fmt.Errorf("parse datetime: %w", err))
	}
	return day, nil
}

func (c *Client) get(ctx context.Context, symbol, path string, query url.Values, out any) error {
	if c.apiKey == "" {
		return market.NewError(market.KindConfigMissing, c.name, symbol, "api key not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	query.Set("apikey", c.apiKey)
	body, err := market.Get(ctx, c.httpClient, c.name, symbol, c.baseURL+path+"?"+query.Encode(), c.header)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return market.WrapError(market.KindInvalid, c.name, symbol, fmt.Errorf("decode response: %w", err))
	}
	if strings.EqualFold(env.Status, "error") {
		return c.envelopeError(symbol, env)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return market.WrapError(market.KindInvalid, c.name, symbol, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) envelopeError(symbol string, env envelope) error {
	msg := market.Truncate(strings.TrimSpace(env.Message), 160)
	lower := strings.ToLower(msg)
	kind, failed := market.KindForStatus(env.Code)
	switch {
	case strings.Contains(lower, "no data is available"):
		return errNoData
	case strings.Contains(lower, "not found") || strings.Contains(lower, "invalid symbol"):
		kind = market.KindNotFound
	case strings.Contains(lower, "api credits") || strings.Contains(lower, "rate limit"):
		kind = market.KindRateLimited
	case strings.Contains(lower, "apikey") && strings.Contains(lower, "missing"):
		kind = market.KindConfigMissing
	case !failed:
		kind = market.KindInvalid
	}
	return &market.Error{Kind: kind, Provider: c.name, Symbol: symbol, Status: env.Code, Message: msg}
}

func (c *Client) parseValue(v TimeSeriesValue) (market.PricePoint, error) {
	day, err := market.ParseDay(firstDateToken(v.Datetime))
	if err != nil {
		return market.PricePoint{}, fmt.Errorf("datetime: %w", err)
	}
	open, err := decimal.NewFromString(v.Open)
	if err != nil {
		return market.PricePoint{}, fmt.Errorf("open: %w", err)
	}
	high, err := decimal.NewFromString(v.High)
	if err != nil {
		return market.PricePoint{}, fmt.Errorf("high: %w", err)
	}
	low, err := decimal.NewFromString(v.Low)
	if err != nil {
		return market.PricePoint{}, fmt.Errorf("low: %w", err)
	}
	closePx, err := decimal.NewFromString(v.Close)
	if err != nil {
		return market.PricePoint{}, fmt.Errorf("close: %w", err)
	}
	var volume int64
	if strings.TrimSpace(v.Volume) != "" {
		volume, err = strconv.ParseInt(strings.TrimSpace(v.Volume), 10, 64)
		if err != nil {
			return market.PricePoint{}, fmt.Errorf("volume: %w", err)
		}
	}
	point := market.PricePoint{
		Date:   day,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePx,
		Volume: volume,
	}
	if c.assumeAdjusted {
		point.AdjustedClose = decimal.NullDecimal{Decimal: closePx, Valid: true}
	}
	return point, point.Validate()
}

// firstDateToken strips a time component from "2006-01-02 15:04:05".
func firstDateToken(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " T"); i > 0 {
		return s[:i]
	}
	return s
}
