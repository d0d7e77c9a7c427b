// Package httpapi is the HTTP surface of the order proxy: the cart command
// API, order history, the staff API, the realtime change stream, and the
// cache controller for everything else.
package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/Sternrassler/pickup-client/pkg/cart"
	"github.com/Sternrassler/pickup-client/pkg/controller"
	"github.com/Sternrassler/pickup-client/pkg/logging"
	"github.com/Sternrassler/pickup-client/pkg/metrics"
	"github.com/Sternrassler/pickup-client/pkg/notify"
	"github.com/Sternrassler/pickup-client/pkg/ratelimit"
	"github.com/Sternrassler/pickup-client/pkg/remote"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Config wires the server to its collaborators.
type Config struct {
	Remote     *remote.Store          // REQUIRED
	Redis      *redis.Client          // REQUIRED
	Namespace  string                 // Redis key namespace for drafts and outboxes
	Bridge     notify.Bridge          // optional, enables /api/events
	Controller *controller.Controller // optional, serves every unmatched path
	Limiter    *ratelimit.Limiter     // optional, limits commands per device

	// DefaultDevice is used when a request names no device.
	DefaultDevice string

	// StaffToken guards /api/admin. Empty disables the staff API.
	StaffToken string

	// MaxSessions caps the cart engines held in memory.
	MaxSessions int
	// SessionIdleTimeout rebuilds engines unused for this long. Negative disables it.
	SessionIdleTimeout time.Duration

	Retry cart.RetryConfig
}

// Server is the order proxy's HTTP API.
type Server struct {
	cfg      Config
	sessions *sessions
	commands *cart.Commands
	logger   zerolog.Logger
}

type route struct {
	Method  string
	Path    string
	Handler gin.HandlerFunc
}

// New creates a server.
func New(cfg Config) (*Server, error) {
	if cfg.Remote == nil {
		return nil, errors.New("remote store is required")
	}
	if cfg.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "pickup"
	}
	if cfg.DefaultDevice == "" {
		cfg.DefaultDevice = "default"
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if cfg.SessionIdleTimeout == 0 {
		cfg.SessionIdleTimeout = DefaultSessionIdleTimeout
	}

	sess, err := newSessions(cfg.Redis, cfg.Namespace, cfg.Remote, cfg.Retry, cfg.MaxSessions, cfg.SessionIdleTimeout)
	if err != nil {
		return nil, err
	}

	return &Server{
		cfg:      cfg,
		sessions: sess,
		commands: cart.NewCommands(cfg.Remote),
		logger:   logging.NewLogger("httpapi"),
	}, nil
}

// Router builds the gin engine serving every route.
func (s *Server) Router() *gin.Engine {
	engine := gin.New()
	engine.Use(recovery(s.logger))
	engine.Use(requestLogger(s.logger))

	engine.GET("/health", s.health)
	engine.GET("/ready", s.ready)
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := engine.Group("/api")
	addRoutes(api, []route{
		{Method: http.MethodPost, Path: "/session", Handler: s.signIn},
		{Method: http.MethodDelete, Path: "/session", Handler: s.signOut},
		{Method: http.MethodGet, Path: "/cart", Handler: s.getCart},
		{Method: http.MethodGet, Path: "/orders", Handler: s.listOrders},
		{Method: http.MethodGet, Path: "/catalog", Handler: s.listCatalog},
		{Method: http.MethodGet, Path: "/notice", Handler: s.getNotice},
		{Method: http.MethodGet, Path: "/events", Handler: s.streamEvents},
	})

	commands := api.Group("/commands")
	if s.cfg.Limiter != nil {
		commands.Use(limitCommands(s.cfg.Limiter, s.cfg.DefaultDevice, s.logger))
	}
	commands.POST("/:name", s.runCommand)

	admin := api.Group("/admin")
	admin.Use(requireStaff(s.cfg.StaffToken))
	addRoutes(admin, []route{
		{Method: http.MethodGet, Path: "/orders", Handler: s.adminListOrders},
		{Method: http.MethodPatch, Path: "/orders/:id", Handler: s.adminTransitionOrder},
		{Method: http.MethodPatch, Path: "/items/:id", Handler: s.adminSetAvailability},
	})

	if s.cfg.Controller != nil {
		engine.NoRoute(gin.WrapH(s.cfg.Controller.Handler()))
	}

	return engine
}

func addRoutes(group *gin.RouterGroup, routes []route) {
	for _, r := range routes {
		group.Handle(r.Method, r.Path, r.Handler)
	}
}
