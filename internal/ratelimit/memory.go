package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is a per-process sliding window, used when no Redis is
// configured.
type MemoryLimiter struct {
	mu        sync.Mutex
	hits      map[string][]time.Time
	maxMemory int
	now       func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		hits:      make(map[string][]time.Time),
		maxMemory: 5000,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, policy Policy, key string) (Decision, error) {
	k := policy.Name + ":" + key
	now := l.now()
	threshold := now.Add(-policy.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	filtered := prune(l.hits[k], threshold)

	if len(filtered) >= policy.Max {
		retryAfter := filtered[0].Add(policy.Window).Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		l.hits[k] = filtered
		return Decision{Allowed: false, RetryAfter: retryAfter}, nil
	}

	l.hits[k] = append(filtered, now)

	if len(l.hits) > l.maxMemory {
		for key, value := range l.hits {
			if len(value) == 0 || value[len(value)-1].Before(threshold) {
				delete(l.hits, key)
			}
		}
	}

	return Decision{Allowed: true}, nil
}

func (l *MemoryLimiter) Release(_ context.Context, policy Policy, key string) error {
	k := policy.Name + ":" + key

	l.mu.Lock()
	defer l.mu.Unlock()

	if hits := l.hits[k]; len(hits) > 0 {
		l.hits[k] = hits[:len(hits)-1]
	}
	return nil
}

func prune(hits []time.Time, threshold time.Time) []time.Time {
	filtered := make([]time.Time, 0, len(hits)+1)
	for _, hit := range hits {
		if hit.After(threshold) {
			filtered = append(filtered, hit)
		}
	}
	return filtered
}
