// Package server contains the HTTP and WebSocket handlers for the chat API.
package server

import (
	"context"
	"errors"
	"time"

	_ "chatroom/docs" // swagger docs
	"chatroom/internal/cache"
	"chatroom/internal/config"
	"chatroom/internal/events"
	"chatroom/internal/identity"
	"chatroom/internal/middleware"
	"chatroom/internal/moderation"
	"chatroom/internal/notifications"
	"chatroom/internal/repository"
	"chatroom/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the already-initialized dependencies of a Server.
type Deps struct {
	DB    *gorm.DB
	Redis *redis.Client
	// Verifier checks caller tokens.
	Verifier identity.Verifier
	// Accounts revokes sessions and deletes accounts. May be nil, in which
	// case those actions report the provider as unavailable.
	Accounts identity.AccountManager
	// Publisher carries message-created events to enforcement. When nil,
	// enforcement runs inline in this process.
	Publisher events.Publisher
	Now       func() time.Time
}

// Server holds all dependencies and provides handlers.
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	promMiddleware *fiberprometheus.FiberPrometheus
	verifier       identity.Verifier

	notifier *notifications.Notifier
	hub      *notifications.Hub
	audit    *moderation.AuditLog
	executor *moderation.Executor
	enforcer *moderation.Enforcer

	publisher      events.Publisher
	chatService    *service.ChatService
	profileService *service.ProfileService
	reportService  *service.ReportService

	wiringCancel context.CancelFunc
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
func NewServerWithDeps(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.DB == nil {
		return nil, errors.New("server requires a database")
	}
	if deps.Verifier == nil {
		return nil, errors.New("server requires an identity verifier")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	store := cache.NewStore(deps.Redis)
	profileRepo := repository.NewProfileRepository(deps.DB, store,
		time.Duration(cfg.ProfileCacheTTLSeconds)*time.Second)
	messageRepo := repository.NewMessageRepository(deps.DB)
	reportRepo := repository.NewReportRepository(deps.DB)
	auditRepo := repository.NewAuditRepository(deps.DB)

	s := &Server{
		config:         cfg,
		db:             deps.DB,
		redis:          deps.Redis,
		promMiddleware: middleware.InitMetrics("chatroom-api"),
		verifier:       deps.Verifier,
		hub:            notifications.NewHub(),
	}
	s.notifier = notifications.NewNotifier(deps.Redis, s.hub)
	s.audit = moderation.NewAuditLog(auditRepo, deps.Now)
	s.executor = moderation.NewExecutor(moderation.ExecutorConfig{
		Profiles:    profileRepo,
		Messages:    messageRepo,
		Accounts:    deps.Accounts,
		Audit:       s.audit,
		Broadcaster: s.notifier,
		BatchSize:   cfg.BulkDeleteBatchSize,
		Now:         deps.Now,
	})
	s.enforcer = moderation.NewEnforcer(profileRepo, messageRepo, s.audit, s.notifier, deps.Now)

	s.publisher = deps.Publisher
	if s.publisher == nil {
		s.publisher = events.NewInlineBus(events.EnforcementHandler(s.enforcer))
	}

	s.chatService = service.NewChatService(service.ChatServiceDeps{
		Profiles:    profileRepo,
		Messages:    messageRepo,
		Reports:     reportRepo,
		Audit:       s.audit,
		Publisher:   s.publisher,
		Broadcaster: s.notifier,
		Now:         deps.Now,
	})
	s.profileService = service.NewProfileService(profileRepo, s.audit)
	s.reportService = service.NewReportService(reportRepo, auditRepo, profileRepo, s.audit)

	return s, nil
}

// Enforcer returns the enforcement trigger so out-of-process event
// consumers can be attached to it.
func (s *Server) Enforcer() *moderation.Enforcer {
	return s.enforcer
}

// Start subscribes the websocket hub to cross-process notifications.
func (s *Server) Start(ctx context.Context) error {
	ctx, s.wiringCancel = context.WithCancel(ctx)
	return s.hub.StartWiring(ctx, s.notifier)
}

// Shutdown closes websocket connections and the event publisher.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.wiringCancel != nil {
		s.wiringCancel()
	}
	return errors.Join(s.hub.Shutdown(ctx), s.publisher.Close())
}

// NewApp builds a fiber app with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "Chatroom API",
		BodyLimit: 64 * 1024,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware configures middleware for the Fiber app.
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())
	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}
	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))
}

// SetupRoutes configures all routes for the application.
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/swagger/*", swagger.HandlerDefault)

	// Auth is attached per prefix so /api/ws and /api/swagger stay outside it.
	auth := s.AuthRequired()

	profile := api.Group("/profile", auth)
	profile.Get("/me", s.GetMyProfile)
	profile.Put("/me", s.UpdateMyProfile)
	api.Get("/profiles/:id", auth, s.GetProfile)

	messages := api.Group("/messages", auth)
	messages.Get("/", s.ListMessages)
	messages.Post("/", middleware.RateLimit(s.redis, 20, time.Minute, "send_message"), s.SendMessage)
	messages.Post("/:id/report", middleware.RateLimit(s.redis, 10, 10*time.Minute, "report"), s.ReportMessage)
	messages.Delete("/:id", s.DeleteMessage)

	admin := api.Group("/admin", auth)
	users := admin.Group("/users")
	users.Post("/:id/ban", s.ToggleBan)
	users.Post("/:id/temp-ban", s.TempBan)
	users.Post("/:id/shadow-ban", s.ShadowBan)
	users.Post("/:id/mute", s.Mute)
	users.Post("/:id/force-rename", s.ForceRename)
	users.Post("/:id/revoke-tokens", s.RevokeTokens)
	users.Post("/:id/delete-messages", s.BulkDeleteMessages)
	users.Delete("/:id", s.DeleteAccount)

	admin.Get("/reports", s.ListReports)
	admin.Post("/reports/:id/resolve", s.ResolveReport)
	admin.Get("/moderation-logs", s.ListModerationLogs)

	api.Get("/ws", s.WebSocketAuthRequired(), s.WebSocketUpgrade(), s.WebSocketHandler())
}

// AuthRequired verifies the bearer token and makes sure the caller has a
// profile.
func (s *Server) AuthRequired() fiber.Handler {
	return middleware.AuthRequired(s.verifier, false, s.ensureProfile)
}

// WebSocketAuthRequired is AuthRequired that also accepts ?token=, since
// browsers cannot set headers on upgrade requests.
func (s *Server) WebSocketAuthRequired() fiber.Handler {
	return middleware.AuthRequired(s.verifier, true, s.ensureProfile)
}

func (s *Server) ensureProfile(ctx context.Context, id *identity.Identity) error {
	_, err := s.profileService.EnsureProfile(ctx, id)
	return err
}

// LivenessCheck handles liveness probe requests.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now().UTC(),
	})
}

// ReadinessCheck handles readiness probe requests.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	// Only the database gates readiness.
	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now().UTC(),
	})
}
