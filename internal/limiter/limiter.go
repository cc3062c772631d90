// ABOUTME: Per-client rate limiting for tool calls and resource reads.
// ABOUTME: Local token buckets, plus an optional Redis sliding window shared across replicas.

package limiter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// ErrRateLimited indicates the client exceeded its limit.
var ErrRateLimited = errors.New("rate limit exceeded")

const (
	defaultMaxClients = 100_000
	defaultIdleTTL    = 10 * time.Minute
)

// Limiter enforces per-client limits using local token buckets and an
// optional Redis sliding window.
type Limiter struct {
	enabled bool

	rps         float64
	burst       int
	window      time.Duration
	windowLimit int // requests per window in Redis; 0 skips the shared check
	prefix      string
	idleTTL     time.Duration

	// buckets holds one *rate.Limiter per client. Idle clients expire and
	// the table is capped, so remote-address keys cannot grow it unbounded.
	bucketsMu sync.Mutex
	buckets   *ristretto.Cache

	redis redis.UniversalClient
}

// Config contains parameters for limiter construction.
type Config struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
	Window            time.Duration
	KeyPrefix         string // Redis key prefix, defaults to "widget-gateway:rate:"
	MaxClients        int64  // local buckets kept at once, defaults to 100000
	IdleTTL           time.Duration
	Redis             redis.UniversalClient
}

// New creates a Limiter from the supplied configuration.
func New(cfg Config) (*Limiter, error) {
	if !cfg.Enabled {
		return &Limiter{enabled: false}, nil
	}

	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.RequestsPerSecond * 2)
		if cfg.Burst < 1 {
			cfg.Burst = 1
		}
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "widget-gateway:rate:"
	}
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = defaultMaxClients
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaultIdleTTL
	}

	// Every bucket costs 1, so MaxCost is a client count.
	buckets, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        cfg.MaxClients * 10,
		MaxCost:            cfg.MaxClients,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating bucket cache: %w", err)
	}

	return &Limiter{
		enabled:     true,
		rps:         cfg.RequestsPerSecond,
		burst:       cfg.Burst,
		window:      cfg.Window,
		windowLimit: windowLimit(cfg.RequestsPerSecond, cfg.Burst, cfg.Window),
		prefix:      cfg.KeyPrefix,
		idleTTL:     cfg.IdleTTL,
		buckets:     buckets,
		redis:       cfg.Redis,
	}, nil
}

// windowLimit is the most a local bucket admits over one window: a full
// burst plus the refill. The shared window enforces the same budget.
func windowLimit(rps float64, burst int, window time.Duration) int {
	if rps <= 0 {
		return 0
	}
	return burst + int(math.Ceil(rps*window.Seconds()))
}

// Enabled reports whether limits are enforced.
func (l *Limiter) Enabled() bool {
	return l.enabled
}

// Allow reports whether client may make another request. It returns
// ErrRateLimited when over the limit and any other error when Redis could
// not be consulted.
func (l *Limiter) Allow(ctx context.Context, client string) error {
	if !l.enabled || client == "" {
		return nil
	}

	if !l.bucket(client).Allow() {
		return ErrRateLimited
	}

	if l.redis != nil && l.windowLimit > 0 {
		allowed, err := l.allowRedis(ctx, client)
		if err != nil {
			return err
		}
		if !allowed {
			return ErrRateLimited
		}
	}

	return nil
}

// Close stops the bucket cache's background goroutines.
func (l *Limiter) Close() {
	if l.buckets != nil {
		l.buckets.Close()
	}
}

func (l *Limiter) bucket(client string) *rate.Limiter {
	l.bucketsMu.Lock()
	defer l.bucketsMu.Unlock()

	if v, ok := l.buckets.Get(client); ok {
		if ttl, ok := l.buckets.GetTTL(client); ok && ttl < l.idleTTL/2 {
			l.buckets.SetWithTTL(client, v, 1, l.idleTTL)
		}
		return v.(*rate.Limiter)
	}

	limit := rate.Inf
	if l.rps > 0 {
		limit = rate.Limit(l.rps)
	}
	b := rate.NewLimiter(limit, l.burst)
	// Sets are buffered; wait so the next request for client sees this bucket.
	l.buckets.SetWithTTL(client, b, 1, l.idleTTL)
	l.buckets.Wait()
	return b
}

// The member is random so requests landing in the same millisecond each
// count once.
var redisScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
  return 0
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return 1
`)

func (l *Limiter) allowRedis(ctx context.Context, client string) (bool, error) {
	now := time.Now().UnixMilli()
	window := l.window.Milliseconds()

	res, err := redisScript.Run(ctx, l.redis, []string{l.prefix + client},
		now, window, l.windowLimit, uuid.NewString()).Int()
	if err != nil {
		return false, err
	}

	return res == 1, nil
}
