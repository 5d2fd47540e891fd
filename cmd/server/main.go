// Command server runs the chat API and, unless disabled, the enforcement
// consumer for out-of-process event backends.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatroom/internal/bootstrap"
	"chatroom/internal/config"
	"chatroom/internal/events"
	"chatroom/internal/middleware"
	"chatroom/internal/observability"
	"chatroom/internal/server"

	"github.com/spf13/pflag"
)

// @title Chatroom API
// @version 1.0
// @description Single-room chat with role-based moderation and automatic enforcement
// @termsOfService http://swagger.io/terms/

// @contact.name API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8375
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.

func main() {
	consume := pflag.Bool("consume", true, "run the enforcement consumer in this process (redis and kafka backends)")
	pflag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	middleware.ConfigureLogger(cfg.Env, cfg.LogLevel)

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "chatroom-api",
		ServiceVersion: "1.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.TracingSampleRatio,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.InitRuntime(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	deps := server.Deps{
		DB:       rt.DB,
		Redis:    rt.Redis,
		Verifier: rt.Identity,
		Accounts: rt.Identity,
	}

	var consumer events.Consumer
	if cfg.EventBackend != "inline" {
		deps.Publisher, consumer, err = bootstrap.NewEventBus(cfg, rt.Redis, nil)
		if err != nil {
			log.Fatalf("Failed to create event bus: %v", err)
		}
	}

	srv, err := server.NewServerWithDeps(cfg, deps)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}
	if err := srv.Start(ctx); err != nil {
		log.Fatalf("Failed to start notification wiring: %v", err)
	}

	if consumer != nil && *consume {
		go func() {
			if err := consumer.Run(ctx, events.EnforcementHandler(srv.Enforcer())); err != nil {
				log.Printf("Enforcement consumer stopped: %v", err)
			}
		}()
	}

	app := srv.NewApp()

	go func() {
		<-ctx.Done()
		log.Println("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server resource shutdown error: %v", err)
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Printf("Tracing shutdown error: %v", err)
		}
		if err := rt.Close(); err != nil {
			log.Printf("Runtime close error: %v", err)
		}
	}()

	log.Printf("Server starting on port %s...", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Printf("Server stopped: %v", err)
		os.Exit(1)
	}
}
