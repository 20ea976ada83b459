package distribution

import (
	"context"
	"time"

	"setledger/pkg/rediskey"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SettleLocker serializes settlement per day. Without it two overlapping
// manual triggers could both pass the not-yet-settled check and double-credit
// every user.
type SettleLocker interface {
	Acquire(ctx context.Context, day string) (bool, error)
	Release(ctx context.Context, day string)
}

type redisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocker builds a SET NX based per-day lock. The TTL bounds how long
// a crashed run can hold the day hostage.
func NewRedisLocker(client *redis.Client, ttl time.Duration) SettleLocker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &redisLocker{client: client, ttl: ttl}
}

func (l *redisLocker) Acquire(ctx context.Context, day string) (bool, error) {
	ok, err := l.client.SetNX(ctx, rediskey.BuildSettleDayKey(day), "1", l.ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (l *redisLocker) Release(ctx context.Context, day string) {
	if err := l.client.Del(ctx, rediskey.BuildSettleDayKey(day)).Err(); err != nil {
		zap.L().Warn("failed to release settlement lock",
			zap.String("day", day), zap.Error(err))
	}
}
