package api

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cache"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/golang-jwt/jwt/v4"

	"github.com/marketlens/marketlens/internal/analysis"
	"github.com/marketlens/marketlens/internal/auth"
	"github.com/marketlens/marketlens/internal/config"
	"github.com/marketlens/marketlens/internal/gate"
	"github.com/marketlens/marketlens/internal/models"
	"github.com/marketlens/marketlens/internal/quota"
	"github.com/marketlens/marketlens/internal/session"
	"github.com/marketlens/marketlens/internal/telemetry"
	"github.com/marketlens/marketlens/pkg/database"
)

type Server struct {
	app      *fiber.App
	cfg      *config.Config
	db       *database.Clients
	auth     *auth.Context
	ledger   *quota.Ledger
	gate     *gate.Gate
	analysis *analysis.Client
	logger   *slog.Logger

	monitor       *session.Monitor
	cancelMonitor context.CancelFunc
}

func NewServer(cfg *config.Config, db *database.Clients, authCtx *auth.Context, events telemetry.Publisher, log *slog.Logger) (*Server, error) {
	ledger := quota.NewLedger(authCtx, cfg.Quota.FounderEmails, log)

	app := fiber.New()

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${ip} ${method} ${path} ${status}\n",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.Server.MaxRequests,
		Expiration: cfg.Server.RequestTimeout,
	}))
	app.Use(cache.New(cache.Config{
		Expiration:   cfg.Server.CacheExpiration,
		CacheControl: true,
		Next: func(c *fiber.Ctx) bool {
			// Only idempotent reads are cacheable.
			return c.Method() != fiber.MethodGet
		},
	}))

	server := &Server{
		app:      app,
		cfg:      cfg,
		db:       db,
		auth:     authCtx,
		ledger:   ledger,
		gate:     gate.New(authCtx, ledger, events, log),
		analysis: analysis.NewClient(cfg.Analysis.BaseURL, cfg.Analysis.Timeout, log),
		logger:   log,
	}

	// Routes
	server.setupRoutes()

	return server, nil
}

func (s *Server) setupRoutes() {
	api := s.app.Group("/api")

	// Public routes
	api.Post("/auth/signup", s.handleSignup)
	api.Post("/auth/login", s.handleLogin)
	api.Post("/auth/reset-password", s.handleResetPassword)

	// Protected routes
	protected := api.Use(jwtware.New(jwtware.Config{
		SigningKey: []byte(s.cfg.JWT.Secret),
	}))
	protected.Use(s.requireSession)
	protected.Use(s.trackActivity)
	protected.Post("/auth/logout", s.handleLogout)
	protected.Get("/profile", s.handleGetProfile)
	protected.Patch("/profile", s.handleUpdateProfile)
	protected.Get("/usage/:type", s.handleUsageStatus)
	protected.Post("/analyze", s.handleAnalyze)
}

func (s *Server) Start() error {
	return s.app.Listen(s.cfg.Server.Port)
}

// requireSession binds the bearer token to the active server-side session.
// A structurally valid token whose subject is not the signed-in user is
// rejected, so stale tokens stop working the moment the session changes.
func (s *Server) requireSession(c *fiber.Ctx) error {
	current := s.auth.Current()
	if current == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "no active session",
		})
	}

	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "missing token",
		})
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "malformed claims",
		})
	}
	if sub, _ := claims["sub"].(string); sub != current.ID {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "token does not match active session",
		})
	}

	return c.Next()
}

// trackActivity records user activity for the idle-timeout monitor.
func (s *Server) trackActivity(c *fiber.Ctx) error {
	if s.monitor != nil {
		s.monitor.Touch(c.Context())
	}
	return c.Next()
}

// startSession (re)starts the activity monitor for a fresh login.
func (s *Server) startSession(profile *models.UserProfile) {
	s.beginSession(profile, false)
}

// ResumeSession restarts monitoring for a session restored at startup. Idle
// time persisted before the restart still counts toward the timeout.
func (s *Server) ResumeSession(profile *models.UserProfile) {
	s.beginSession(profile, true)
}

func (s *Server) beginSession(profile *models.UserProfile, resume bool) {
	s.stopSession()

	store := session.NewRedisStore(s.db.Redis, profile.ID, 2*s.cfg.Session.Timeout)
	monitor := session.NewMonitor(store, session.Config{
		Timeout:       s.cfg.Session.Timeout,
		CheckInterval: s.cfg.Session.CheckInterval,
		Throttle:      s.cfg.Session.ActivityThrottle,
	}, s.expireSession, s.logger)

	ctx, cancel := context.WithCancel(context.Background())
	s.monitor = monitor
	s.cancelMonitor = cancel

	if resume {
		monitor.Resume(ctx)
	} else {
		monitor.Reset(ctx)
	}
	go monitor.Run(ctx)
}

func (s *Server) stopSession() {
	if s.cancelMonitor != nil {
		s.cancelMonitor()
		s.cancelMonitor = nil
	}
	s.monitor = nil
}

// expireSession is the monitor's timeout callback.
func (s *Server) expireSession() {
	s.logger.Info("idle timeout reached, signing out")
	if err := s.auth.Logout(context.Background()); err != nil {
		s.logger.Error("logout after idle timeout failed", "error", err)
	}
}
