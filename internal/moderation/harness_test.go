package moderation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"chatroom/internal/identity"
	"chatroom/internal/models"
	"chatroom/internal/repository"
	"chatroom/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingBroadcaster struct {
	mu        sync.Mutex
	published []models.Message
	removed   []string
	purged    []string
}

func (b *recordingBroadcaster) MessagePublished(_ context.Context, m *models.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, *m)
}

func (b *recordingBroadcaster) MessageRemoved(_ context.Context, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removed = append(b.removed, id)
}

func (b *recordingBroadcaster) AuthorPurged(_ context.Context, authorID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.purged = append(b.purged, authorID)
}

type failingAuditSink struct{}

func (failingAuditSink) Append(context.Context, *models.ModerationLogEntry) error {
	return errors.New("audit store offline")
}

type failingProfiles struct{}

func (failingProfiles) Get(context.Context, string) (*models.UserProfile, error) {
	return nil, errors.New("connection refused")
}

type harness struct {
	t         *testing.T
	ctx       context.Context
	db        *gorm.DB
	profiles  repository.ProfileRepository
	messages  repository.MessageRepository
	audits    repository.AuditRepository
	provider  *identity.Provider
	broadcast *recordingBroadcaster
	exec      *Executor
	enforcer  *Enforcer
}

type harnessOption func(*ExecutorConfig)

func withAuditSink(s AuditSink) harnessOption {
	return func(c *ExecutorConfig) { c.Audit = NewAuditLog(s, func() time.Time { return testNow }) }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	db := testutil.OpenTestDB(t)
	h := &harness{
		t:         t,
		ctx:       context.Background(),
		db:        db,
		profiles:  repository.NewProfileRepository(db, nil, 0),
		messages:  repository.NewMessageRepository(db),
		audits:    repository.NewAuditRepository(db),
		broadcast: &recordingBroadcaster{},
	}
	clock := func() time.Time { return testNow }
	h.provider = identity.NewProvider("test-secret-test-secret-test-secret", "iss", "aud",
		identity.NewMemorySessionStore(), identity.WithClock(clock))

	cfg := ExecutorConfig{
		Profiles:    h.profiles,
		Messages:    h.messages,
		Accounts:    h.provider,
		Audit:       NewAuditLog(h.audits, clock),
		Broadcaster: h.broadcast,
		BatchSize:   3,
		Now:         clock,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	h.exec = NewExecutor(cfg)
	h.enforcer = NewEnforcer(h.profiles, h.messages, cfg.Audit, h.broadcast, clock)
	return h
}

func (h *harness) profile(id string, role models.Role, opts ...testutil.ProfileOption) {
	opts = append([]testutil.ProfileOption{testutil.WithRole(role)}, opts...)
	testutil.CreateProfile(h.t, h.db, id, opts...)
}

func (h *harness) logs(action models.ModerationAction) []models.ModerationLogEntry {
	h.t.Helper()
	entries, err := h.audits.List(h.ctx, repository.AuditQuery{Action: action})
	require.NoError(h.t, err)
	return entries
}

type failingProfileStore struct{ failingProfiles }

func (failingProfileStore) UpdateFields(context.Context, string, map[string]any) error {
	return errors.New("connection refused")
}

func (failingProfileStore) Delete(context.Context, string) error {
	return errors.New("connection refused")
}
