// Command enforcer consumes message-created events from Redis streams or
// Kafka and applies ban and shadow-ban enforcement.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"chatroom/internal/bootstrap"
	"chatroom/internal/config"
	"chatroom/internal/events"
	"chatroom/internal/middleware"
	"chatroom/internal/observability"

	"github.com/spf13/pflag"
)

func main() {
	backend := pflag.String("backend", "", "override EVENT_BACKEND (redis or kafka)")
	pflag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	middleware.ConfigureLogger(cfg.Env, cfg.LogLevel)
	if *backend != "" {
		cfg.EventBackend = *backend
	}
	if cfg.EventBackend == "inline" {
		log.Fatal("EVENT_BACKEND is inline; enforcement runs inside the API process")
	}

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:  "chatroom-enforcer",
		Environment:  cfg.Env,
		Enabled:      cfg.TracingEnabled,
		Exporter:     cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplerRatio: cfg.TracingSampleRatio,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.InitRuntime(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer func() { _ = rt.Close() }()

	_, consumer, err := bootstrap.NewEventBus(cfg, rt.Redis, nil)
	if err != nil {
		log.Fatalf("Failed to create event bus: %v", err)
	}
	defer func() { _ = consumer.Close() }()

	log.Printf("Enforcer consuming from %s backend", cfg.EventBackend)
	if err := consumer.Run(ctx, events.EnforcementHandler(rt.NewEnforcer())); err != nil {
		log.Printf("Enforcer stopped: %v", err)
	}
}
