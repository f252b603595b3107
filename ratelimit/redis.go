package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"whisperfeed/domain"
)

// tryAdmitLua atomically claims the cooldown window: SET NX with a TTL wins
// the window, otherwise the remaining TTL in milliseconds is returned.
// Doing both in one script avoids a race between the claim and the TTL read.
const tryAdmitLua = `
if redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2], "NX") then
    return -1
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
    return 0
end
return ttl
`

// RedisLimiter backs the cooldown gate with Redis so that several feed
// instances share one rate-limit view. Keys expire on their own; there is
// no cleanup to run.
type RedisLimiter struct {
	client   *redis.Client
	cooldown time.Duration
	script   *redis.Script
}

func NewRedisLimiter(client *redis.Client, cooldown time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client:   client,
		cooldown: cooldown,
		script:   redis.NewScript(tryAdmitLua),
	}
}

func (l *RedisLimiter) TryAdmit(ctx context.Context, identity domain.Identity, now time.Time) (bool, time.Duration, error) {
	key := "cooldown:" + string(identity)
	res, err := l.script.Run(ctx, l.client,
		[]string{key},
		now.UnixMilli(),
		l.cooldown.Milliseconds(),
	).Int64()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit check failed: %w", err)
	}
	if res < 0 {
		return true, 0, nil
	}
	return false, time.Duration(res) * time.Millisecond, nil
}
