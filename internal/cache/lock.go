package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock 短时互斥锁句柄
type Lock struct {
	key   string
	token string
}

// TryLock 尝试获取锁；未启用 Redis 时直接视为成功并返回空句柄
func TryLock(ctx context.Context, key string, ttl time.Duration) (*Lock, bool, error) {
	if !Enabled() {
		return nil, true, nil
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	token := uuid.NewString()
	fullKey := buildKey("lock:" + key)
	ok, err := redisClient.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return &Lock{key: fullKey, token: token}, true, nil
}

// Release 释放锁，仅删除自己持有的 token
func (l *Lock) Release(ctx context.Context) error {
	if l == nil || !Enabled() {
		return nil
	}
	return unlockScript.Run(ctx, redisClient, []string{l.key}, l.token).Err()
}
