package market

import (
	"context"
	"time"
)

//go:generate mockgen -destination=mocks/provider_mock.go -package=mocks . Provider

// Provider translates one external market data API into PricePoints.
type Provider interface {
	// FetchRange returns ascending, date-unique points for [from, to] inclusive.
	// Failures are reported as *Error with a classified Kind.
	FetchRange(ctx context.Context, symbol string, from, to time.Time) ([]PricePoint, error)
	// EarliestAvailable reports the first trading day the provider can serve,
	// falling back to FallbackEarliest when no lookup exists.
	EarliestAvailable(ctx context.Context, symbol string) (time.Time, error)
	// HealthCheck tests the provider cheaply and never returns an error.
	HealthCheck(ctx context.Context) bool
	// Name identifies the provider in logs and summaries.
	Name() string
}

// HealthSymbol is queried by provider health checks.
const HealthSymbol = "SPY"

// HealthWindow returns the 5-day range used by health checks ending at now.
func HealthWindow(now time.Time) (time.Time, time.Time) {
	to := Day(now)
	return to.AddDate(0, 0, -5), to
}
