// Command seed fills a development database with fake profiles and messages,
// or with a YAML fixture.
package main

import (
	"context"
	"log"
	"time"

	"chatroom/internal/config"
	"chatroom/internal/database"
	"chatroom/internal/seed"

	"github.com/spf13/pflag"
)

func main() {
	users := pflag.Int("users", 20, "number of fake profiles")
	messages := pflag.Int("messages", 10, "messages per fake profile")
	moderators := pflag.Int("moderators", 2, "how many fake profiles are moderators")
	clean := pflag.Bool("clean", false, "remove existing chat data first")
	fixture := pflag.String("fixture", "", "apply a YAML fixture instead of fake data")
	randSeed := pflag.Int64("seed", 0, "random seed for reproducible data")
	pflag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	ctx := context.Background()

	if *fixture != "" {
		fx, err := seed.LoadFixtureFile(*fixture)
		if err != nil {
			log.Fatalf("Failed to load fixture: %v", err)
		}
		if *clean {
			if err := seed.Clean(ctx, db); err != nil {
				log.Fatalf("Failed to clean database: %v", err)
			}
		}
		summary, err := fx.Apply(ctx, db, time.Now())
		if err != nil {
			log.Fatalf("Failed to apply fixture: %v", err)
		}
		log.Printf("Applied %s: %d profiles, %d messages", *fixture, summary.Profiles, summary.Messages)
		return
	}

	summary, err := seed.Run(ctx, db, seed.Options{
		NumUsers:        *users,
		MessagesPerUser: *messages,
		Moderators:      *moderators,
		ShouldClean:     *clean,
		Seed:            *randSeed,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Printf("Seeded %d profiles and %d messages", summary.Profiles, summary.Messages)
}
