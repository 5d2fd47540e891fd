// Package bootstrap wires the process-level dependencies shared by the
// server, the enforcement worker and the admin tools.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"chatroom/internal/cache"
	"chatroom/internal/config"
	"chatroom/internal/database"
	"chatroom/internal/events"
	"chatroom/internal/identity"
	"chatroom/internal/middleware"
	"chatroom/internal/models"
	"chatroom/internal/moderation"
	"chatroom/internal/notifications"
	"chatroom/internal/repository"
	"chatroom/internal/service"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ErrRedisRequired is returned when a component that needs Redis starts
// without it.
var ErrRedisRequired = errors.New("redis is required for this configuration")

// Runtime holds the shared connections of a process.
type Runtime struct {
	Config   *config.Config
	DB       *gorm.DB
	Redis    *redis.Client
	Identity *identity.Provider
}

// InitRuntime connects to the database and Redis and prepares the identity
// provider. Redis is optional; a nil client means every Redis-backed feature
// falls back to its in-process form.
func InitRuntime(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	rdb := cache.InitRedis(cfg.RedisURL)

	var store identity.SessionStore
	if rdb != nil {
		store = identity.NewRedisSessionStore(rdb)
	} else {
		store = identity.NewMemorySessionStore()
	}

	rt := &Runtime{
		Config:   cfg,
		DB:       db,
		Redis:    rdb,
		Identity: identity.NewProvider(cfg.IdentitySecret, cfg.IdentityIssuer, cfg.IdentityAudience, store),
	}

	if err := ensureDevRoot(ctx, cfg, db); err != nil {
		return nil, fmt.Errorf("failed to bootstrap development root: %w", err)
	}
	return rt, nil
}

// NewEnforcer builds an enforcement trigger for a process without an HTTP
// server. Its broadcasts reach clients through Redis pub/sub.
func (rt *Runtime) NewEnforcer() *moderation.Enforcer {
	profiles := repository.NewProfileRepository(rt.DB, cache.NewStore(rt.Redis),
		time.Duration(rt.Config.ProfileCacheTTLSeconds)*time.Second)
	audit := moderation.NewAuditLog(repository.NewAuditRepository(rt.DB), nil)
	return moderation.NewEnforcer(profiles, repository.NewMessageRepository(rt.DB), audit,
		notifications.NewNotifier(rt.Redis, nil), time.Now)
}

// Close releases the runtime's connections.
func (rt *Runtime) Close() error {
	var errs []error
	if rt.Redis != nil {
		errs = append(errs, rt.Redis.Close())
	}
	if sqlDB, err := rt.DB.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	}
	return errors.Join(errs...)
}

// ensureDevRoot grants GrandWizard to the configured root user in
// development so a fresh database has someone who can moderate.
func ensureDevRoot(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if cfg.Env != "development" || !cfg.DevBootstrapRoot {
		return nil
	}

	id := strings.TrimSpace(cfg.DevRootID)
	if id == "" {
		return errors.New("DEV_ROOT_ID must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}

	profiles := repository.NewProfileRepository(db, nil, 0)
	audit := moderation.NewAuditLog(repository.NewAuditRepository(db), nil)
	svc := service.NewProfileService(profiles, audit)

	existing, err := profiles.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing != nil && existing.Role == models.RoleGrandWizard {
		return nil
	}

	p, err := svc.SetRole(ctx, id, models.RoleGrandWizard)
	if err != nil {
		return err
	}
	if name := strings.TrimSpace(cfg.DevRootName); name != "" && p.DisplayName != name {
		if err := profiles.UpdateFields(ctx, id, map[string]any{"display_name": name}); err != nil {
			return err
		}
	}

	middleware.Logger.Info("development root ready", slog.String("user_id", id))
	return nil
}

// NewEventBus builds the message-created transport named by
// cfg.EventBackend. The returned Consumer is nil for the inline backend,
// which runs handler inside Publish.
func NewEventBus(cfg *config.Config, rdb *redis.Client, handler events.Handler) (events.Publisher, events.Consumer, error) {
	switch cfg.EventBackend {
	case "", "inline":
		if handler == nil {
			return nil, nil, errors.New("inline event bus needs a handler")
		}
		return events.NewInlineBus(handler), nil, nil

	case "redis":
		if rdb == nil {
			return nil, nil, ErrRedisRequired
		}
		bus, err := events.NewRedisStreamBus(rdb, events.StreamConfig{
			Stream:   cfg.EventStream,
			Group:    cfg.EventGroup,
			Consumer: consumerName(),
		})
		if err != nil {
			return nil, nil, err
		}
		return bus, bus, nil

	case "kafka":
		bus, err := events.NewKafkaBus(events.KafkaConfig{
			Brokers: cfg.KafkaBrokerList(),
			Topic:   cfg.KafkaTopic,
			GroupID: cfg.EventGroup,
		})
		if err != nil {
			return nil, nil, err
		}
		return bus, bus, nil

	default:
		return nil, nil, fmt.Errorf("unknown event backend %q", cfg.EventBackend)
	}
}

func consumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "enforcer"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
