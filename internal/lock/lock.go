// Package lock keeps sync runs from overlapping, across replicas when redis
// is configured and within the process otherwise.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"outlet-sync/internal/apperrors"
)

// Locker hands out the single run slot. TryLock fails with
// apperrors.ErrAlreadyRunning when the slot is taken.
type Locker interface {
	TryLock(ctx context.Context) (unlock func(), err error)
}

type LocalLocker struct {
	mu sync.Mutex
}

func (l *LocalLocker) TryLock(context.Context) (func(), error) {
	if !l.mu.TryLock() {
		return nil, apperrors.ErrAlreadyRunning
	}
	var once sync.Once
	return func() { once.Do(l.mu.Unlock) }, nil
}

// releaseScript deletes the key only if it still holds our token.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// refreshScript extends the key's TTL only while it still holds our token.
const refreshScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end`

type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// RedisLocker holds the slot as a key with a TTL so a crashed holder
// releases it eventually. While held, the TTL is renewed every third of it.
type RedisLocker struct {
	client redisClient
	key    string
	ttl    time.Duration

	refreshEvery time.Duration // zero means ttl/3
}

func NewRedisLocker(client *redis.Client, key string, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, key: key, ttl: ttl}
}

func (l *RedisLocker) TryLock(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, apperrors.ErrAlreadyRunning
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = l.client.Eval(ctx, releaseScript, []string{l.key}, token).Err()
		})
	}, nil
}

// keepAlive renews the key until stop is closed or the key is no longer ours.
func (l *RedisLocker) keepAlive(token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	every := l.refreshEvery
	if every <= 0 {
		every = l.ttl / 3
	}
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-stop:
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			n, err := l.client.Eval(ctx, refreshScript, []string{l.key}, token, l.ttl.Milliseconds()).Int64()
			cancel()
			switch {
			case err != nil:
				log.Warn().Err(err).Str("key", l.key).Msg("refresh run lock")
			case n == 0:
				log.Error().Str("key", l.key).Msg("run lock lost")
				return
			}
		}
	}
}
