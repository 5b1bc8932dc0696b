package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrLockHeld is returned by TryLock when another holder owns the key.
var ErrLockHeld = errors.New("lock is held by another request")

// Locker is a non-blocking, token-owned mutual exclusion keyed by string.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// NewLocker uses redis when a client is configured and an in-process locker otherwise.
func NewLocker(cli *redis.Client) Locker {
	if cli == nil {
		return NewLocalLocker()
	}
	return NewRedisLocker(cli)
}

type RedisLocker struct {
	cli *redis.Client
}

func NewRedisLocker(cli *redis.Client) *RedisLocker {
	return &RedisLocker{cli: cli}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.cli.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return "", ErrLockHeld
	}
	return token, nil
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	if err := luaUnlock.Run(ctx, l.cli, []string{key}, token).Err(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return nil
}

// LocalLocker serializes holders within one process. Expired entries are taken over.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]localLock
	now  func() time.Time
}

type localLock struct {
	token     string
	expiresAt time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: map[string]localLock{}, now: time.Now}
}

func (l *LocalLocker) TryLock(_ context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if cur, ok := l.held[key]; ok && now.Before(cur.expiresAt) {
		return "", ErrLockHeld
	}
	token := uuid.NewString()
	l.held[key] = localLock{token: token, expiresAt: now.Add(ttl)}
	return token, nil
}

func (l *LocalLocker) Unlock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.held[key]; ok && cur.token == token {
		delete(l.held, key)
	}
	return nil
}

// UserLockKey is the lock key guarding membership mutations of one user.
func UserLockKey(userID string) string {
	return "membership:lock:user:" + userID
}
