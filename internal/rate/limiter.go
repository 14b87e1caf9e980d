package rate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable reports a backend failure. Checks still allow the
// request when it is returned.
var ErrRedisUnavailable = errors.New("redis unavailable")

// Config holds rate limiter tuning parameters.
type Config struct {
	Enabled     bool
	MaxRequests int
	Window      time.Duration
}

// Result is the outcome of a single limit check.
type Result struct {
	Allowed bool
	// RetryAfter is the time until the current window ends. Set only on deny.
	RetryAfter time.Duration
}

// entry is the stored window state.
type entry struct {
	Count       int   `json:"count"`
	WindowStart int64 `json:"windowStart"`
}

// Limiter enforces per-(identifier, endpoint) sliding windows using Redis.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
	now    func() time.Time
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
		now:    time.Now,
	}
}

// WithClock overrides the limiter's clock. Test hook.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

func key(identifier, endpoint string) string {
	return "rate:" + identifier + ":" + endpoint
}

// Check applies the sliding window for one request. A non-nil error means
// the backend misbehaved; the result is then Allowed (fail-open) and the
// error exists only so callers can log it.
func (l *Limiter) Check(ctx context.Context, identifier, endpoint string) (Result, error) {
	if !l.config.Enabled {
		return Result{Allowed: true}, nil
	}

	k := key(identifier, endpoint)
	now := l.now().Unix()
	windowSeconds := int64(l.config.Window / time.Second)

	var e entry
	data, err := l.redis.Get(ctx, k).Bytes()
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(data, &e); jsonErr != nil {
			// Treat a corrupt entry as an expired window.
			e = entry{}
		}
	case errors.Is(err, redis.Nil):
		e = entry{}
	default:
		return Result{Allowed: true}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if e.Count > 0 && now < e.WindowStart+windowSeconds {
		if e.Count >= l.config.MaxRequests {
			remaining := time.Duration(e.WindowStart+windowSeconds-now) * time.Second
			return Result{Allowed: false, RetryAfter: remaining}, nil
		}
		e.Count++
	} else {
		e = entry{Count: 1, WindowStart: now}
	}

	encoded, err := json.Marshal(&e)
	if err != nil {
		return Result{Allowed: true}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if err := l.redis.Set(ctx, k, encoded, l.config.Window).Err(); err != nil {
		return Result{Allowed: true}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return Result{Allowed: true}, nil
}
