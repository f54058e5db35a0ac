package cache

import (
	"context"
	"errors"
	"time"

	zcache "github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/redis"
	"github.com/zeromicro/go-zero/core/syncx"

	"pricesync/pkg/syncjob"
)

// ErrNotFound is returned when a key is absent.
var ErrNotFound = errors.New("cache: not found")

// Store is the subset of go-zero cache.Cache the recorder needs.
type Store interface {
	SetWithExpireCtx(ctx context.Context, key string, val any, expire time.Duration) error
	GetCtx(ctx context.Context, key string, val any) error
	IsNotFound(err error) bool
}

// NewNode wraps a single Redis node in a go-zero cache.
func NewNode(rds *redis.Redis) zcache.Cache {
	return zcache.NewNode(rds, syncx.NewSingleFlight(), zcache.NewStat(Namespace), ErrNotFound)
}

// SyncRecorder keeps the latest per-symbol results and run summary in Redis.
// It implements syncjob.Recorder.
type SyncRecorder struct {
	store Store
	ttl   TTLSet
}

var _ syncjob.Recorder = (*SyncRecorder)(nil)

// NewSyncRecorder builds a recorder over store.
func NewSyncRecorder(store Store, ttl TTLSet) *SyncRecorder {
	return &SyncRecorder{store: store, ttl: ttl}
}

// RecordResult stores r under its symbol key.
func (r *SyncRecorder) RecordResult(ctx context.Context, result syncjob.SyncResult) error {
	return r.store.SetWithExpireCtx(ctx, SyncSymbolKey(result.Symbol), result, SyncSymbolTTL(r.ttl))
}

// RecordSummary stores the run summary as the latest run.
func (r *SyncRecorder) RecordSummary(ctx context.Context, summary *syncjob.SyncSummary) error {
	if summary == nil {
		return nil
	}
	return r.store.SetWithExpireCtx(ctx, SyncRunLastKey(), summary, SyncRunTTL(r.ttl))
}

// LastSummary returns the latest recorded summary or ErrNotFound.
func (r *SyncRecorder) LastSummary(ctx context.Context) (*syncjob.SyncSummary, error) {
	var summary syncjob.SyncSummary
	if err := r.get(ctx, SyncRunLastKey(), &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// LastResult returns the latest result for symbol or ErrNotFound.
func (r *SyncRecorder) LastResult(ctx context.Context, symbol string) (*syncjob.SyncResult, error) {
	var result syncjob.SyncResult
	if err := r.get(ctx, SyncSymbolKey(symbol), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *SyncRecorder) get(ctx context.Context, key string, out any) error {
	err := r.store.GetCtx(ctx, key, out)
	if err != nil && r.store.IsNotFound(err) {
		return ErrNotFound
	}
	return err
}
