package cache

import (
	"fmt"
	"strings"
	"time"

	"pricesync/internal/config"
)

// Namespace is the Redis key prefix for pricesync.
const Namespace = "pricesync"

// TTLClass represents a config-driven TTL bucket.
type TTLClass string

const (
	TTLShort  TTLClass = "short"
	TTLMedium TTLClass = "medium"
	TTLLong   TTLClass = "long"
)

// TTLSet normalises cache TTLs from config into time.Duration values.
type TTLSet struct {
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
	Lock   time.Duration
}

// NewTTLSet converts config TTLs (in seconds) into durations.
func NewTTLSet(cfg config.CacheTTL) TTLSet {
	return TTLSet{
		Short:  durationOrDefault(cfg.Short, 10*time.Second),
		Medium: durationOrDefault(cfg.Medium, time.Minute),
		Long:   durationOrDefault(cfg.Long, 5*time.Minute),
		Lock:   durationOrDefault(cfg.LockSeconds, 6*time.Hour),
	}
}

func durationOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds < 0 {
		return 0
	}
	if seconds == 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// Duration returns the configured duration for the given TTL class.
func (t TTLSet) Duration(class TTLClass) time.Duration {
	switch class {
	case TTLShort:
		return t.Short
	case TTLMedium:
		return t.Medium
	case TTLLong:
		return t.Long
	default:
		return 0
	}
}

// Scaled applies a multiplier to a TTL class.
func (t TTLSet) Scaled(class TTLClass, factor float64) time.Duration {
	base := t.Duration(class)
	if base <= 0 || factor <= 0 {
		return base
	}
	return time.Duration(float64(base) * factor)
}

func formatKey(parts ...string) string {
	values := make([]string, 0, len(parts)+1)
	values = append(values, Namespace)
	for _, part := range parts {
		clean := strings.TrimSpace(part)
		if clean == "" {
			continue
		}
		values = append(values, clean)
	}
	return strings.Join(values, ":")
}

// --- Sync Keys --------------------------------------------------------------

// SyncSymbolKey holds the last SyncResult for a symbol.
func SyncSymbolKey(symbol string) string {
	return formatKey("sync", "symbol", strings.ToUpper(symbol))
}

// SyncRunLastKey holds the most recent SyncSummary.
func SyncRunLastKey() string {
	return formatKey("sync", "run", "last")
}

// SyncLockKey guards against overlapping sync runs.
func SyncLockKey() string {
	return formatKey("lock", "sync")
}

// ProviderHealthKey caches the last health check of a provider.
func ProviderHealthKey(provider string) string {
	return formatKey("health", provider)
}

// --- TTL Helpers ------------------------------------------------------------

// SyncSymbolTTL returns the TTL for per-symbol results.
func SyncSymbolTTL(ttl TTLSet) time.Duration {
	return ttl.Scaled(TTLMedium, 24) // target ~24m when medium=60s
}

// SyncRunTTL returns the TTL for the last run summary.
func SyncRunTTL(ttl TTLSet) time.Duration {
	return ttl.Scaled(TTLLong, 12) // target ~1h when long=300s
}

// ProviderHealthTTL returns the TTL for health checks.
func ProviderHealthTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLShort)
}

// SyncLockSeconds returns the run lock expiry in whole seconds.
func SyncLockSeconds(ttl TTLSet) int {
	secs := int(ttl.Lock / time.Second)
	if secs <= 0 {
		return 1
	}
	return secs
}

// FormatCacheKey is exported for dynamic key construction when patterns
// are not covered by helpers.
func FormatCacheKey(parts ...string) string {
	return formatKey(parts...)
}

// BuildKeyWithSuffix appends an arbitrary suffix to an existing key.
func BuildKeyWithSuffix(baseKey, suffix string) string {
	if strings.TrimSpace(suffix) == "" {
		return baseKey
	}
	return fmt.Sprintf("%s:%s", baseKey, strings.TrimSpace(suffix))
}
