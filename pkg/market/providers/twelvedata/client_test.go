package twelvedata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricesync/pkg/market"
	"pricesync/pkg/ratelimit"
)

func writeJSON(t *testing.T, w http.ResponseWriter, status int, payload any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(payload))
}

func newTestProvider(t *testing.T, handler http.HandlerFunc, opts ...Option) (*httptest.Server, *Provider) {
	t.Helper()
	server := httptest.NewServer(handler)
	clientOpts := append([]Option{
		WithBaseURL(server.URL),
		WithHTTPClient(server.Client()),
		WithAPIKey("test-key"),
		WithLimiter(ratelimit.New(0, 0)),
	}, opts...)
	return server, NewProvider(WithClientOptions(clientOpts...))
}

func day(s string) time.Time {
	d, err := market.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestProviderFetchRange(t *testing.T) {
	var query atomic.Value
	server, provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/time_series", r.URL.Path)
		query.Store(r.URL.Query())
		writeJSON(t, w, http.StatusOK, map[string]any{
			"meta":   map[string]any{"symbol": "AAPL", "interval": "1day"},
			"status": "ok",
			"values": []map[string]string{
				{"datetime": "2024-01-04", "open": "182.15", "high": "183.09", "low": "180.88", "close": "181.91", "volume": "71983600"},
				{"datetime": "2024-01-03", "open": "184.22", "high": "185.88", "low": "183.43", "close": "184.25", "volume": "58414500"},
				{"datetime": "2024-01-03", "open": "1", "high": "1", "low": "1", "close": "1", "volume": "1"},
				{"datetime": "2024-01-02", "open": "187.15", "high": "188.44", "low": "183.89", "close": "185.64", "volume": "82488700"},
				{"datetime": "bogus", "open": "1", "high": "1", "low": "1", "close": "1"},
				{"datetime": "2023-12-29", "open": "193.90", "high": "194.40", "low": "191.73", "close": "192.53", "volume": "42628800"},
			},
		})
	})
	defer server.Close()

	points, err := provider.FetchRange(context.Background(), "AAPL", day("2024-01-02"), day("2024-01-04"))
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, day("2024-01-02"), points[0].Date)
	assert.Equal(t, day("2024-01-03"), points[1].Date)
	assert.Equal(t, day("2024-01-04"), points[2].Date)
	assert.Equal(t, "184.25", points[1].Close.String())
	assert.Equal(t, int64(58414500), points[1].Volume)
	require.True(t, points[1].AdjustedClose.Valid)
	assert.True(t, points[1].AdjustedClose.Decimal.Equal(points[1].Close))

	q := query.Load().(url.Values)
	assert.Equal(t, []string{"AAPL"}, q["symbol"])
	assert.Equal(t, []string{"1day"}, q["interval"])
	assert.Equal(t, []string{"2024-01-02"}, q["start_date"])
	assert.Equal(t, []string{"2024-01-04"}, q["end_date"])
	assert.Equal(t, []string{"5000"}, q["outputsize"])
	assert.Equal(t, []string{"test-key"}, q["apikey"])
}

func TestProviderFetchRangeWithoutAdjustment(t *testing.T) {
	server, provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{
			"status": "ok",
			"values": []map[string]string{
				{"datetime": "2024-01-02", "open": "1", "high": "2", "low": "0.5", "close": "1.5"},
			},
		})
	}, WithAssumeAdjusted(false))
	defer server.Close()

	points, err := provider.FetchRange(context.Background(), "AAPL", day("2024-01-01"), day("2024-01-05"))
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.False(t, points[0].AdjustedClose.Valid)
	assert.Zero(t, points[0].Volume)
}

func TestProviderFetchRangeErrors(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		wantKind    market.ErrorKind
		errContains string
	}{
		{
			name: "http 429",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			wantKind: market.KindRateLimited,
		},
		{
			name: "http 404",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			wantKind: market.KindNotFound,
		},
		{
			name: "http 503",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			wantKind: market.KindTransient,
		},
		{
			name: "credits envelope",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, http.StatusOK, map[string]any{
					"status":  "error",
					"code":    429,
					"message": "You have run out of API credits for the current minute.",
				})
			},
			wantKind:    market.KindRateLimited,
			errContains: "API credits",
		},
		{
			name: "unknown symbol envelope",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, http.StatusOK, map[string]any{
					"status":  "error",
					"code":    400,
					"message": "**symbol** not found: ZZZZ. Please specify it correctly",
				})
			},
			wantKind: market.KindNotFound,
		},
		{
			name: "bad request envelope",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, http.StatusOK, map[string]any{
					"status":  "error",
					"code":    400,
					"message": "**end_date** is invalid",
				})
			},
			wantKind: market.KindInvalid,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>oops</html>"))
			},
			wantKind: market.KindInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, provider := newTestProvider(t, tt.handler)
			defer server.Close()

			_, err := provider.FetchRange(context.Background(), "ZZZZ", day("2024-01-01"), day("2024-01-05"))
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, market.KindOf(err), "err=%v", err)
			assert.Contains(t, err.Error(), "twelvedata")
			if tt.errContains != "" {
				assert.Contains(t, err.Error(), tt.errContains)
			}
		})
	}
}

func TestProviderFetchRangeNoDataIsEmpty(t *testing.T) {
	server, provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{
			"status":  "error",
			"code":    400,
			"message": "No data is available on the specified dates. Try setting different start/end dates.",
		})
	})
	defer server.Close()

	points, err := provider.FetchRange(context.Background(), "AAPL", day("1980-01-01"), day("1994-12-31"))
	require.NoError(t, err)
	assert.NotNil(t, points)
	assert.Empty(t, points)
}

func TestProviderMissingKeySkipsNetworkAndBudget(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	limiter := ratelimit.New(8, time.Minute)
	provider := NewProvider(WithClientOptions(WithBaseURL(server.URL), WithLimiter(limiter)))

	_, err := provider.FetchRange(context.Background(), "AAPL", day("2024-01-01"), day("2024-01-05"))
	require.Error(t, err)
	assert.True(t, market.IsKind(err, market.KindConfigMissing))
	assert.Zero(t, calls.Load())
	assert.Zero(t, limiter.Snapshot().RequestsInWindow)
}

func TestProviderEarliestAvailable(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		want     time.Time
		wantKind *market.ErrorKind
	}{
		{
			name: "lookup succeeds",
			handler: func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/earliest_timestamp", r.URL.Path)
				writeJSON(t, w, http.StatusOK, map[string]any{"datetime": "1999-05-03", "unix_time": 925689600})
			},
			want: day("1999-05-03"),
		},
		{
			name: "intraday datetime is truncated",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, http.StatusOK, map[string]any{"datetime": "1980-12-12 09:30:00"})
			},
			want: day("1980-12-12"),
		},
		{
			name: "server error falls back",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			want: market.FallbackEarliest,
		},
		{
			name: "rate limit is surfaced",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			wantKind: kindPtr(market.KindRateLimited),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, provider := newTestProvider(t, tt.handler)
			defer server.Close()

			got, err := provider.EarliestAvailable(context.Background(), "QQQ")
			if tt.wantKind != nil {
				require.Error(t, err)
				assert.Equal(t, *tt.wantKind, market.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProviderHealthCheck(t *testing.T) {
	server, provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, market.HealthSymbol, r.URL.Query().Get("symbol"))
		writeJSON(t, w, http.StatusOK, map[string]any{"status": "ok", "values": []any{}})
	})
	defer server.Close()
	assert.True(t, provider.HealthCheck(context.Background()))

	down, downProvider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	defer down.Close()
	assert.False(t, downProvider.HealthCheck(context.Background()))
}

func TestProviderRegisteredWithMarket(t *testing.T) {
	enabled := false
	cfg := &market.Config{Providers: map[string]*market.ProviderConfig{
		"primary": {Type: "twelvedata", Priority: 1, APIKey: "k"},
		"off":     {Type: "twelvedata", Priority: 2, Enabled: &enabled},
	}}
	require.NoError(t, cfg.Validate())
	chain, err := cfg.BuildChain()
	require.NoError(t, err)
	require.Len(t, chain, 1)
	assert.Equal(t, "primary", chain[0].Name())
}

func kindPtr(k market.ErrorKind) *market.ErrorKind { return &k }
