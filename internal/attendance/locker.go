package attendance

import (
	"context"
	"sync"
	"time"
)

// localLocker serializes scans within one process when no shared Locker is
// configured. Held keys expire after their ttl like the Redis lock.
type localLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

func newLocalLocker(now func() time.Time) *localLocker {
	return &localLocker{held: make(map[string]time.Time), now: now}
}

func (l *localLocker) Lock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if until, ok := l.held[key]; ok && now.Before(until) {
		return false, nil
	}
	l.held[key] = now.Add(ttl)
	return true, nil
}

func (l *localLocker) Unlock(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}
