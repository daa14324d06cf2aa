// Package lock keeps digest runs single-flight, in process and across replicas.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"newsletter-digest/internal/logging"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned when another run owns the lock
var ErrHeld = errors.New("lock is held by another run")

// Locker acquires a named lock and returns the function that releases it
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// Local is an in-process Locker. A holder that never releases loses the key once its ttl
// has passed, matching the expiry of the Redis lock.
type Local struct {
	mu   sync.Mutex
	held map[string]localHold
	seq  uint64
	now  func() time.Time
}

type localHold struct {
	token   uint64
	expires time.Time
}

func NewLocal() *Local {
	return &Local{held: map[string]localHold{}, now: time.Now}
}

// Acquire takes key for ttl. A ttl of zero or less never expires.
func (l *Local) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if h, ok := l.held[key]; ok && (h.expires.IsZero() || now.Before(h.expires)) {
		return nil, ErrHeld
	}

	l.seq++
	hold := localHold{token: l.seq}
	if ttl > 0 {
		hold.expires = now.Add(ttl)
	}
	l.held[key] = hold

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			// an expired hold may have been taken over
			if h, ok := l.held[key]; ok && h.token == hold.token {
				delete(l.held, key)
			}
			l.mu.Unlock()
		})
	}, nil
}

// releaseScript deletes the key only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker backed by SET NX PX. Unlike a dedup check it fails closed:
// when Redis is unreachable the run does not start.
type Redis struct {
	rdb *redis.Client
}

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.New().String()

	ok, err := r.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrHeld
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, r.rdb, []string{key}, token).Err(); err != nil {
				logging.Log.WithError(err).WithField("key", key).Warn("Failed to release lock, it will expire")
			}
		})
	}, nil
}

// Chain acquires every locker in order and releases them in reverse
type Chain []Locker

func (c Chain) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	releases := make([]func(), 0, len(c))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}

	for _, l := range c {
		release, err := l.Acquire(ctx, key, ttl)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}
