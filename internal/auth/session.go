package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyFmt = "session:%d"

// SessionTTL is the inactivity timeout; the middleware refreshes it on
// every authenticated request.
const SessionTTL = 30 * time.Minute

func SetSession(ctx context.Context, rdb *redis.Client, clinicianID uint, token string, duration time.Duration) error {
	key := fmt.Sprintf(sessionKeyFmt, clinicianID)
	return rdb.Set(ctx, key, token, duration).Err()
}

func GetSession(ctx context.Context, rdb *redis.Client, clinicianID uint) (string, error) {
	key := fmt.Sprintf(sessionKeyFmt, clinicianID)
	return rdb.Get(ctx, key).Result()
}

func DeleteSession(ctx context.Context, rdb *redis.Client, clinicianID uint) error {
	key := fmt.Sprintf(sessionKeyFmt, clinicianID)
	return rdb.Del(ctx, key).Err()
}
