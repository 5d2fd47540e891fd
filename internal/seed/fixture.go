package seed

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"chatroom/internal/models"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Fixture is a hand-written data set, typically used to reproduce a
// moderation scenario locally.
type Fixture struct {
	Profiles []FixtureProfile `yaml:"profiles"`
	Messages []FixtureMessage `yaml:"messages"`
}

// FixtureProfile describes one profile. Durations are relative to the time
// the fixture is applied.
type FixtureProfile struct {
	ID           string        `yaml:"id"`
	DisplayName  string        `yaml:"display_name"`
	Role         string        `yaml:"role"`
	Banned       bool          `yaml:"banned"`
	BannedFor    time.Duration `yaml:"banned_for"`
	ShadowBanned bool          `yaml:"shadow_banned"`
	MutedFor     time.Duration `yaml:"muted_for"`
	ForceRename  bool          `yaml:"force_rename"`
}

// FixtureMessage is one message. Age places it in the past.
type FixtureMessage struct {
	Author string        `yaml:"author"`
	Text   string        `yaml:"text"`
	Age    time.Duration `yaml:"age"`
	Hidden bool          `yaml:"hidden"`
}

// LoadFixtureFile reads a YAML fixture from path.
func LoadFixtureFile(path string) (*Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadFixture(f)
}

// LoadFixture decodes and validates a YAML fixture.
func LoadFixture(r io.Reader) (*Fixture, error) {
	var fx Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}

	ids := make(map[string]bool, len(fx.Profiles))
	for i, p := range fx.Profiles {
		if p.ID == "" {
			return nil, fmt.Errorf("profile %d: id is required", i)
		}
		if ids[p.ID] {
			return nil, fmt.Errorf("profile %q: duplicate id", p.ID)
		}
		if p.Role != "" {
			if _, err := models.ParseRole(p.Role); err != nil {
				return nil, fmt.Errorf("profile %q: %w", p.ID, err)
			}
		}
		ids[p.ID] = true
	}
	for i, m := range fx.Messages {
		if !ids[m.Author] {
			return nil, fmt.Errorf("message %d: unknown author %q", i, m.Author)
		}
		if m.Text == "" {
			return nil, fmt.Errorf("message %d: text is required", i)
		}
	}
	return &fx, nil
}

// Apply writes the fixture to db. Existing profiles with the same ID are
// replaced.
func (fx *Fixture) Apply(ctx context.Context, db *gorm.DB, now time.Time) (*Summary, error) {
	now = now.UTC()
	byID := make(map[string]*models.UserProfile, len(fx.Profiles))
	summary := &Summary{}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, fp := range fx.Profiles {
			p := fp.build(now)
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Select("*").Create(p).Error; err != nil {
				return fmt.Errorf("upsert profile %q: %w", fp.ID, err)
			}
			byID[p.ID] = p
			summary.Profiles++
		}

		for _, fm := range fx.Messages {
			author := byID[fm.Author]
			m := &models.Message{
				ID:          uuid.NewString(),
				AuthorID:    author.ID,
				DisplayName: author.DisplayName,
				AvatarURL:   author.AvatarURL,
				Text:        fm.Text,
				CreatedAt:   now.Add(-fm.Age),
				Hidden:      fm.Hidden,
			}
			if err := tx.Create(m).Error; err != nil {
				return fmt.Errorf("create message: %w", err)
			}
			summary.Messages++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func (fp FixtureProfile) build(now time.Time) *models.UserProfile {
	name := fp.DisplayName
	if name == "" {
		name = fp.ID
	}
	p := models.NewUserProfile(fp.ID, name, "")
	if fp.Role != "" {
		p.Role, _ = models.ParseRole(fp.Role)
	}
	switch {
	case fp.BannedFor > 0:
		until := now.Add(fp.BannedFor)
		p.Banned = true
		p.BannedUntil = &until
		p.BanType = models.BanTypeTemp
	case fp.Banned:
		p.Banned = true
		p.BanType = models.BanTypePermanent
	}
	p.ShadowBanned = fp.ShadowBanned
	if fp.MutedFor > 0 {
		until := now.Add(fp.MutedFor)
		p.MutedUntil = &until
	}
	p.ForceRename = fp.ForceRename
	return p
}
