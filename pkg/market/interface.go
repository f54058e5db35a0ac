package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used on every provider wire and in storage.
const DateLayout = "2006-01-02"

// FallbackEarliest is returned when a provider cannot tell how far back its history goes.
var FallbackEarliest = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// IsFallbackEarliest reports whether t is the FallbackEarliest day, i.e. an
// unknown listing date rather than a real one.
func IsFallbackEarliest(t time.Time) bool {
	return Day(t).Equal(FallbackEarliest)
}

// PricePoint is a single daily OHLCV record in provider-neutral form.
type PricePoint struct {
	Date          time.Time           // UTC midnight of the trading day
	Open          decimal.Decimal     // Session open
	High          decimal.Decimal     // Session high
	Low           decimal.Decimal     // Session low
	Close         decimal.Decimal     // Session close, required
	AdjustedClose decimal.NullDecimal // Split/dividend adjusted close when the provider supplies one
	Volume        int64               // Shares traded, zero when unknown
}

// SymbolMetadata mirrors the per-symbol row maintained next to the price history.
type SymbolMetadata struct {
	Symbol       string
	Name         string
	AssetType    AssetType
	EarliestDate *time.Time // Earliest stored trading day
	LastSyncDate *time.Time // End date of the last successful sync
	IsActive     bool
}

// AssetType classifies an instrument for reporting.
type AssetType string

const (
	AssetStock AssetType = "STOCK"
	AssetETF   AssetType = "ETF"
	AssetIndex AssetType = "INDEX"
)

// Day truncates t to a UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string into a UTC date.
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// FormatDay renders a date using DateLayout.
func FormatDay(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
