package httpapi

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/pickup-client/pkg/cart"
	"github.com/Sternrassler/pickup-client/pkg/logging"
	"github.com/Sternrassler/pickup-client/pkg/metrics"
	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	deviceHeader = "X-Device-ID"
	deviceCookie = "pickup_device"
	staffHeader  = "X-Staff-Token"

	// noticeTTL is how long an engine event stays visible as a notice.
	noticeTTL = 5 * time.Second

	// sessionUserTTL bounds how long a device stays signed in without
	// signing in again.
	sessionUserTTL = 30 * 24 * time.Hour

	DefaultMaxSessions        = 1024
	DefaultSessionIdleTimeout = 30 * time.Minute
)

var sessionEvictions = promauto.With(metrics.Registry).NewCounter(prometheus.CounterOpts{
	Name: "pickup_http_session_evictions_total",
	Help: "Cart sessions dropped by the session limit or the idle timeout",
})

// deviceID identifies the calling device by header, then cookie.
func deviceID(c *gin.Context, fallback string) string {
	if id := c.GetHeader(deviceHeader); id != "" {
		return id
	}
	if id, err := c.Cookie(deviceCookie); err == nil && id != "" {
		return id
	}
	return fallback
}

// Notice is the last user-visible engine event.
type Notice struct {
	Kind    cart.EventKind `json:"kind"`
	Op      string         `json:"op,omitempty"`
	OrderID string         `json:"order_id,omitempty"`
	Message string         `json:"message"`
	Expires time.Time      `json:"expires_at"`
}

type noticeBoard struct {
	mu     sync.Mutex
	notice *Notice
	now    func() time.Time
}

func (b *noticeBoard) post(ev cart.Event) {
	if !ev.Transient() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notice = &Notice{
		Kind:    ev.Kind,
		Op:      ev.Op,
		OrderID: ev.OrderID,
		Message: ev.Message,
		Expires: b.now().Add(noticeTTL),
	}
}

// current returns the notice unless it has expired.
func (b *noticeBoard) current() *Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.notice == nil || !b.now().Before(b.notice.Expires) {
		b.notice = nil
		return nil
	}
	n := *b.notice
	return &n
}

type session struct {
	device   string
	engine   *cart.Engine
	notice   *noticeBoard
	lastSeen time.Time
}

// sessions holds one cart engine per device. At most limit engines are kept;
// the least recently used one is dropped first, and an engine idle for longer
// than idle is rebuilt on its next use. Drafts, outbox and the signed-in
// user live in Redis, so a dropped engine is rebuilt without loss.
type sessions struct {
	mu     sync.Mutex
	byID   *lru.Cache[string, *session]
	idle   time.Duration
	redis  *redis.Client
	ns     string
	remote cart.Remote
	retry  cart.RetryConfig
	now    func() time.Time
	logger zerolog.Logger
}

func newSessions(client *redis.Client, ns string, r cart.Remote, retry cart.RetryConfig, limit int, idle time.Duration) (*sessions, error) {
	cache, err := lru.NewWithEvict(limit, func(device string, _ *session) {
		sessionEvictions.Inc()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}
	return &sessions{
		byID:   cache,
		idle:   idle,
		redis:  client,
		ns:     ns,
		remote: r,
		retry:  retry,
		now:    time.Now,
		logger: logging.NewLogger("sessions"),
	}, nil
}

func (s *sessions) userKey(device string) string {
	return fmt.Sprintf("%s:session:%s", s.ns, device)
}

// get returns the device's session, creating the engine on first use.
func (s *sessions) get(ctx context.Context, device string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if sess, ok := s.byID.Get(device); ok {
		if s.idle <= 0 || now.Sub(sess.lastSeen) < s.idle {
			sess.lastSeen = now
			return sess, nil
		}
		s.byID.Remove(device)
	}

	board := &noticeBoard{now: s.now}
	engine, err := cart.NewEngine(ctx, cart.Config{
		Drafts:  cart.NewDraftStore(s.redis, s.ns, device),
		Outbox:  cart.NewOutbox(s.redis, s.ns, device),
		Remote:  s.remote,
		Retry:   s.retry,
		OnEvent: board.post,
	})
	if err != nil {
		return nil, err
	}

	userID, err := s.redis.Get(ctx, s.userKey(device)).Result()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		s.logger.Warn().Err(err).Str("device", device).Msg("Failed to restore signed-in user")
	default:
		// SetUser keeps the user even when the reload fails.
		if err := engine.SetUser(ctx, userID); err != nil {
			s.logger.Warn().Err(err).Str("device", device).Msg("Failed to reload cart for restored user")
		}
	}

	sess := &session{device: device, engine: engine, notice: board, lastSeen: now}
	s.byID.Add(device, sess)
	return sess, nil
}

// bind records the device's signed-in user. An empty userID signs out.
func (s *sessions) bind(ctx context.Context, device, userID string) error {
	if userID == "" {
		return s.redis.Del(ctx, s.userKey(device)).Err()
	}
	return s.redis.Set(ctx, s.userKey(device), userID, sessionUserTTL).Err()
}

func (s *sessions) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byID.Len()
}
