// Package seed provides helpers to create demo data for development and
// testing. They are not used by the serving path.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chatroom/internal/middleware"
	"chatroom/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Options configure a seeding run.
type Options struct {
	NumUsers        int
	MessagesPerUser int
	// Moderators is how many of the generated users get the moderator role.
	Moderators int
	// ShouldClean wipes profiles, messages, reports and the moderation log
	// first.
	ShouldClean bool
	// Seed makes the generated data reproducible. Zero uses the clock.
	Seed int64
}

// Summary reports what a run created.
type Summary struct {
	Profiles int
	Messages int
}

// Factory builds profiles and messages with fake content.
type Factory struct {
	faker *gofakeit.Faker
	now   func() time.Time
}

// NewFactory creates a Factory. seed 0 picks a random seed.
func NewFactory(seed int64) *Factory {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{faker: gofakeit.New(seed), now: time.Now}
}

// BuildProfile returns an unsaved profile with a fake name and avatar.
func (f *Factory) BuildProfile(overrides ...func(*models.UserProfile)) *models.UserProfile {
	id := f.faker.UUID()
	p := models.NewUserProfile(id, f.faker.Username(),
		fmt.Sprintf("https://picsum.photos/seed/%s/128/128", id[:8]))
	p.Bio = f.faker.Sentence(8)
	for _, override := range overrides {
		override(p)
	}
	return p
}

// BuildMessages returns n unsaved messages by p, spread over the last day
// in chronological order.
func (f *Factory) BuildMessages(p *models.UserProfile, n int) []models.Message {
	msgs := make([]models.Message, n)
	start := f.now().UTC().Add(-24 * time.Hour)
	step := 24 * time.Hour / time.Duration(n+1)
	for i := range msgs {
		msgs[i] = models.Message{
			ID:          f.faker.UUID(),
			AuthorID:    p.ID,
			DisplayName: p.DisplayName,
			AvatarURL:   p.AvatarURL,
			Text:        f.faker.Sentence(f.faker.Number(3, 14)),
			CreatedAt:   start.Add(step * time.Duration(i+1)),
		}
	}
	return msgs
}

// Run seeds db according to opts.
func Run(ctx context.Context, db *gorm.DB, opts Options) (*Summary, error) {
	if opts.NumUsers < 0 || opts.MessagesPerUser < 0 {
		return nil, fmt.Errorf("seed counts must not be negative")
	}
	if opts.ShouldClean {
		if err := Clean(ctx, db); err != nil {
			return nil, err
		}
	}

	f := NewFactory(opts.Seed)
	summary := &Summary{}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := 0; i < opts.NumUsers; i++ {
			p := f.BuildProfile()
			if i < opts.Moderators {
				p.Role = models.RoleModerator
			}
			if err := tx.Create(p).Error; err != nil {
				return fmt.Errorf("create profile: %w", err)
			}
			summary.Profiles++

			if opts.MessagesPerUser == 0 {
				continue
			}
			msgs := f.BuildMessages(p, opts.MessagesPerUser)
			if err := tx.CreateInBatches(msgs, 100).Error; err != nil {
				return fmt.Errorf("create messages: %w", err)
			}
			summary.Messages += len(msgs)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	middleware.Logger.InfoContext(ctx, "seed complete",
		slog.Int("profiles", summary.Profiles),
		slog.Int("messages", summary.Messages))
	return summary, nil
}

// Clean removes all chat data. Tables are emptied in dependency order.
func Clean(ctx context.Context, db *gorm.DB) error {
	tx := db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range []any{
		&models.Report{},
		&models.ModerationLogEntry{},
		&models.Message{},
		&models.UserProfile{},
	} {
		if err := tx.Delete(model).Error; err != nil {
			return fmt.Errorf("clean %T: %w", model, err)
		}
	}
	return nil
}
