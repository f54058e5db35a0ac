package yahoo

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
	providerType       = "yahoo"
	defaultBaseURL     = "https://query1.finance.yahoo.com"
	defaultHTTPTimeout = 20 * time.Second
	defaultUserAgent   = "Mozilla/5.0 (compatible; pricesync/1.0)"
	// DefaultRequestsPerMinute keeps well below the unofficial throttle.
	DefaultRequestsPerMinute = 30
)

// Client talks to the unofficial Yahoo Finance chart API. No key is needed.
type Client struct {
	name       string
	baseURL    string
	userAgent  string
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

// WithBaseURL overrides the API root.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithUserAgent overrides the User-Agent header. Yahoo rejects empty agents.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
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

// NewClient constructs a Yahoo chart client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		name:       providerType,
		baseURL:    defaultBaseURL,
		userAgent:  defaultUserAgent,
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

// Chart fetches daily bars for [from, to] together with the instrument meta.
func (c *Client) Chart(ctx context.Context, symbol string, from, to time.Time) (*ChartResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	query := url.Values{}
	query.Set("period1", strconv.FormatInt(market.Day(from).Unix(), 10))
	query.Set("period2", strconv.FormatInt(market.Day(to).AddDate(0, 0, 1).Unix(), 10))
	query.Set("interval", "1d")
	query.Set("events", "div|split")
	query.Set("includeAdjustedClose", "true")
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(symbol), query.Encode())

	header := http.Header{}
	header.Set("User-Agent", c.userAgent)
	body, err := market.Get(ctx, c.httpClient, c.name, symbol, endpoint, header)

	var payload ChartResponse
	decodeErr := json.Unmarshal(body, &payload)
	if decodeErr == nil && payload.Chart.Error != nil {
		return nil, c.chartError(symbol, payload.Chart.Error, err)
	}
	if err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, market.WrapError(market.KindInvalid, c.name, symbol, fmt.Errorf("decode response: %w", decodeErr))
	}
	if len(payload.Chart.Result) == 0 {
		return &ChartResult{}, nil
	}
	return &payload.Chart.Result[0], nil
}

// chartError classifies chart.error. An accompanying HTTP failure keeps its
// kind; otherwise the code decides.
func (c *Client) chartError(symbol string, ce *ChartError, httpErr error) error {
	msg := market.Truncate(strings.TrimSpace(ce.Code+": "+ce.Description), 160)
	var perr *market.Error
	if errors.As(httpErr, &perr) {
		perr.Message = msg
		return perr
	}
	kind := market.KindInvalid
	if strings.EqualFold(ce.Code, "Not Found") {
		kind = market.KindNotFound
	}
	return market.NewError(kind, c.name, symbol, msg)
}

// Points converts a chart result into PricePoints. Days with a null or
// invalid price are skipped.
func (c *Client) Points(ctx context.Context, symbol string, result *ChartResult) []market.PricePoint {
	if result == nil || len(result.Timestamp) == 0 || len(result.Indicators.Quote) == 0 {
		return []market.PricePoint{}
	}
	quote := result.Indicators.Quote[0]
	var adj []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adj = result.Indicators.AdjClose[0].AdjClose
	}
	offset := time.Duration(result.Meta.GMTOffset) * time.Second

	points := make([]market.PricePoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		open, high, low, closePx := at(quote.Open, i), at(quote.High, i), at(quote.Low, i), at(quote.Close, i)
		if open == nil || high == nil || low == nil || closePx == nil {
			logx.WithContext(ctx).Debugf("%s: skip record symbol=%s ts=%d err=null price", c.name, symbol, ts)
			continue
		}
		point := market.PricePoint{
			Date:  market.Day(time.Unix(ts, 0).Add(offset)),
			Open:  decimal.NewFromFloat(*open),
			High:  decimal.NewFromFloat(*high),
			Low:   decimal.NewFromFloat(*low),
			Close: decimal.NewFromFloat(*closePx),
		}
		if v := at(adj, i); v != nil {
			point.AdjustedClose = decimal.NewNullDecimal(decimal.NewFromFloat(*v))
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			point.Volume = *quote.Volume[i]
		}
		if err := point.Validate(); err != nil {
			logx.WithContext(ctx).Debugf("%s: skip record symbol=%s ts=%d err=%v", c.name, symbol, ts, err)
			continue
		}
		points = append(points, point)
	}
	return points
}

func at(values []*float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}
	return values[i]
}
