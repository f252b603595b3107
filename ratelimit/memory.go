package ratelimit

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"whisperfeed/domain"
)

const shardCount = 32

type shard struct {
	mu           sync.Mutex
	lastAdmitted map[domain.Identity]time.Time
}

// MemoryLimiter keeps last-admitted timestamps in process memory, sharded
// so that unrelated identities never share a lock. State is ephemeral:
// losing it on restart only resets cooldowns, which is acceptable.
type MemoryLimiter struct {
	cooldown time.Duration
	shards   [shardCount]*shard
}

func NewMemoryLimiter(cooldown time.Duration) *MemoryLimiter {
	l := &MemoryLimiter{cooldown: cooldown}
	for i := range l.shards {
		l.shards[i] = &shard{lastAdmitted: make(map[domain.Identity]time.Time)}
	}
	return l
}

func (l *MemoryLimiter) TryAdmit(_ context.Context, identity domain.Identity, now time.Time) (bool, time.Duration, error) {
	s := l.shardFor(identity)
	s.mu.Lock()
	defer s.mu.Unlock()

	last, seen := s.lastAdmitted[identity]
	if seen {
		elapsed := now.Sub(last)
		if elapsed < l.cooldown {
			return false, l.cooldown - elapsed, nil
		}
	}
	// Winner: record the admission inside the lock so a concurrent call
	// for the same identity cannot also win the window.
	s.lastAdmitted[identity] = now
	return true, 0, nil
}

func (l *MemoryLimiter) shardFor(identity domain.Identity) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(identity))
	return l.shards[h.Sum32()%shardCount]
}
