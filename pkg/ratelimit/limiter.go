package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	blocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pickup_rate_limit_blocks_total",
		Help: "Total number of commands rejected because the device exceeded its window",
	})

	throttlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pickup_rate_limit_warnings_total",
		Help: "Total number of commands accepted with less than the warning share of the window left",
	})
)

// Config holds limiter configuration.
type Config struct {
	// Limit is the number of commands allowed per device and window.
	Limit int

	// Window is the length of a counting window.
	Window time.Duration

	// Namespace prefixes the Redis keys.
	Namespace string
}

// DefaultConfig returns 120 commands per minute.
func DefaultConfig() Config {
	return Config{
		Limit:     120,
		Window:    time.Minute,
		Namespace: "pickup",
	}
}

// Limiter counts commands per device in fixed windows.
type Limiter struct {
	redis  *redis.Client
	config Config
	logger zerolog.Logger
	now    func() time.Time
}

// NewLimiter creates a new limiter.
func NewLimiter(client *redis.Client, cfg Config) (*Limiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if cfg.Limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", cfg.Limit)
	}
	if cfg.Window <= 0 {
		return nil, fmt.Errorf("window must be positive, got %s", cfg.Window)
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "pickup"
	}
	return &Limiter{
		redis:  client,
		config: cfg,
		logger: log.With().Str("component", "ratelimit").Logger(),
		now:    time.Now,
	}, nil
}

// window returns the Redis key and end of the window containing now.
func (l *Limiter) window(deviceID string, now time.Time) (string, time.Time) {
	start := now.Truncate(l.config.Window)
	key := l.config.Namespace + ":ratelimit:" + deviceID + ":" + strconv.FormatInt(start.Unix(), 10)
	return key, start.Add(l.config.Window)
}

// GetState returns the device's state in the current window without counting.
func (l *Limiter) GetState(ctx context.Context, deviceID string) (*WindowState, error) {
	now := l.now()
	key, resetAt := l.window(deviceID, now)

	used, err := l.redis.Get(ctx, key).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get window count: %w", err)
	}

	state := &WindowState{Limit: l.config.Limit, Used: used, ResetAt: resetAt}
	state.UpdateHealth()
	return state, nil
}

// Allow counts one command for the device and reports whether it may run.
func (l *Limiter) Allow(ctx context.Context, deviceID string) (*WindowState, bool, error) {
	now := l.now()
	key, resetAt := l.window(deviceID, now)

	pipe := l.redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, resetAt.Sub(now)+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, false, fmt.Errorf("count command: %w", err)
	}

	state := &WindowState{Limit: l.config.Limit, Used: int(incr.Val()), ResetAt: resetAt}
	state.UpdateHealth()

	if state.NeedsCriticalBlock() {
		l.logger.Warn().
			Str("device_id", deviceID).
			Int("used", state.Used).
			Dur("wait_duration", state.TimeUntilReset(now)).
			Msg("Command limit exceeded - rejecting command")
		blocksTotal.Inc()
		return state, false, nil
	}

	if state.NeedsThrottling() {
		l.logger.Debug().
			Str("device_id", deviceID).
			Int("remaining", state.Remaining()).
			Msg("Command limit nearly spent")
		throttlesTotal.Inc()
	}

	return state, true, nil
}
