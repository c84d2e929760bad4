package turnlock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dasida/tutor/internal/logger"
)

// releaseScript deletes the key only if this holder still owns it.
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisOptions configures a Redis locker.
type RedisOptions struct {
	// Prefix namespaces lock keys.
	Prefix string
	// TTL bounds how long a crashed holder blocks the conversation.
	TTL time.Duration
	// Wait is how long Acquire retries before returning ErrBusy.
	Wait time.Duration
	// Poll is the retry interval while waiting.
	Poll time.Duration
}

// DefaultRedisOptions returns defaults sized for one generation call.
func DefaultRedisOptions() RedisOptions {
	return RedisOptions{
		Prefix: "dasida:turn:",
		TTL:    90 * time.Second,
		Wait:   DefaultWait,
		Poll:   100 * time.Millisecond,
	}
}

// Redis is a Locker shared by every server instance using the same Redis.
type Redis struct {
	rdb  *goredis.Client
	opts RedisOptions
	log  *logger.Logger
}

// Dial connects and pings Redis.
func Dial(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// NewRedis wraps a connected client.
func NewRedis(rdb *goredis.Client, opts RedisOptions, log *logger.Logger) *Redis {
	def := DefaultRedisOptions()
	if opts.Prefix == "" {
		opts.Prefix = def.Prefix
	}
	if opts.TTL <= 0 {
		opts.TTL = def.TTL
	}
	if opts.Poll <= 0 {
		opts.Poll = def.Poll
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Redis{rdb: rdb, opts: opts, log: log.With("service", "turnlock")}
}

// Acquire takes the lock with SET NX PX, retrying until Wait elapses.
func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	k := r.opts.Prefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(r.opts.Wait)

	for {
		ok, err := r.rdb.SetNX(ctx, k, token, r.opts.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire turn lock %s: %w", key, err)
		}
		if ok {
			break
		}
		if !time.Now().Before(deadline) {
			return nil, ErrBusy
		}
		t := time.NewTimer(r.opts.Poll)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The request context may already be cancelled.
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, r.rdb, []string{k}, token).Err(); err != nil {
				r.log.Warn("release turn lock failed", "key", key, "error", err)
			}
		})
	}, nil
}
