package cache

import (
	"context"
	"sync"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/redis"

	"pricesync/pkg/syncjob"
)

// RunLock is a Redis backed syncjob.RunGuard shared by every process
// pointing at the same Redis.
type RunLock struct {
	rds     *redis.Redis
	key     string
	seconds int
}

var _ syncjob.RunGuard = (*RunLock)(nil)

// NewRunLock returns a guard on SyncLockKey expiring after the lock TTL.
func NewRunLock(rds *redis.Redis, ttl TTLSet) *RunLock {
	return &RunLock{rds: rds, key: SyncLockKey(), seconds: SyncLockSeconds(ttl)}
}

// Acquire implements syncjob.RunGuard.
func (l *RunLock) Acquire(ctx context.Context) (func(), bool, error) {
	lock := redis.NewRedisLock(l.rds, l.key)
	lock.SetExpire(l.seconds)
	ok, err := lock.AcquireCtx(ctx)
	if err != nil || !ok {
		return nil, false, err
	}
	release := func() {
		if _, err := lock.ReleaseCtx(context.Background()); err != nil {
			logx.Errorf("cache: release run lock key=%s err=%v", l.key, err)
		}
	}
	return release, true, nil
}

// LocalLock guards runs within one process when Redis is not configured.
type LocalLock struct {
	mu sync.Mutex
}

var _ syncjob.RunGuard = (*LocalLock)(nil)

// Acquire implements syncjob.RunGuard without blocking.
func (l *LocalLock) Acquire(context.Context) (func(), bool, error) {
	if !l.mu.TryLock() {
		return nil, false, nil
	}
	return l.mu.Unlock, true, nil
}
