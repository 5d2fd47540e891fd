// Command admin provides operator utilities: assigning roles, inspecting
// profiles and minting development tokens.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"chatroom/internal/bootstrap"
	"chatroom/internal/config"
	"chatroom/internal/models"
	"chatroom/internal/moderation"
	"chatroom/internal/repository"
	"chatroom/internal/service"

	"github.com/spf13/pflag"
)

func usage(flags *pflag.FlagSet) {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  admin set-role <user_id> <user|moderator|admin|GrandWizard>")
	fmt.Fprintln(os.Stderr, "  admin show <user_id>")
	fmt.Fprintln(os.Stderr, "  admin mint <user_id> [--name NAME] [--ttl DURATION]")
	fmt.Fprintln(os.Stderr, "  admin logs [--target USER_ID] [--limit N]")
	fmt.Fprintln(os.Stderr)
	flags.PrintDefaults()
}

func main() {
	flags := pflag.NewFlagSet("admin", pflag.ContinueOnError)
	name := flags.String("name", "", "display name embedded in a minted token")
	ttl := flags.Duration("ttl", 24*time.Hour, "lifetime of a minted token")
	target := flags.String("target", "", "filter moderation logs by target user")
	limit := flags.Int("limit", 20, "number of moderation log entries to show")

	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			usage(flags)
			return
		}
		log.Fatal(err)
	}
	args := flags.Args()
	if len(args) < 1 {
		usage(flags)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer func() { _ = rt.Close() }()

	profiles := repository.NewProfileRepository(rt.DB, nil, 0)
	audits := repository.NewAuditRepository(rt.DB)
	profileSvc := service.NewProfileService(profiles, moderation.NewAuditLog(audits, nil))

	switch args[0] {
	case "set-role":
		if len(args) != 3 {
			usage(flags)
			os.Exit(1)
		}
		role, err := models.ParseRole(args[2])
		if err != nil {
			log.Fatalf("Invalid role: %v", err)
		}
		p, err := profileSvc.SetRole(ctx, args[1], role)
		if err != nil {
			log.Fatalf("Failed to set role: %v", err)
		}
		fmt.Printf("%s (%s) is now %s\n", p.DisplayName, p.ID, p.Role)

	case "show":
		if len(args) != 2 {
			usage(flags)
			os.Exit(1)
		}
		p, err := profileSvc.Get(ctx, args[1])
		if err != nil {
			log.Fatalf("Failed to load profile: %v", err)
		}
		printJSON(p)

	case "mint":
		if len(args) != 2 {
			usage(flags)
			os.Exit(1)
		}
		token, err := rt.Identity.Mint(args[1], *name, *ttl)
		if err != nil {
			log.Fatalf("Failed to mint token: %v", err)
		}
		fmt.Println(token)

	case "logs":
		entries, err := audits.List(ctx, repository.AuditQuery{TargetID: *target, Limit: *limit})
		if err != nil {
			log.Fatalf("Failed to read moderation log: %v", err)
		}
		printJSON(entries)

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
		usage(flags)
		os.Exit(1)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("Failed to encode output: %v", err)
	}
}
