package identity

import (
	"context"
	"testing"
	"time"

	"chatroom/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-at-least-32-characters-long"

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newRedisStore(t *testing.T) *RedisSessionStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSessionStore(client)
}

func TestProvider_VerifyMintedToken(t *testing.T) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	p := NewProvider(testSecret, "iss", "aud", NewMemorySessionStore(), WithClock(clk.Now))

	token, err := p.Mint("alice", "Alice", time.Hour)
	require.NoError(t, err)

	id, err := p.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "alice", id.ID)
	assert.Equal(t, "Alice", id.DisplayName)
}

func TestProvider_RejectsBadTokens(t *testing.T) {
	p := NewProvider(testSecret, "iss", "aud", NewMemorySessionStore())
	other := NewProvider(testSecret, "iss", "other-aud", NewMemorySessionStore())
	wrongKey := NewProvider("another-secret-at-least-32-characters", "iss", "aud", NewMemorySessionStore())

	otherAud, err := other.Mint("alice", "", time.Hour)
	require.NoError(t, err)
	forged, err := wrongKey.Mint("alice", "", time.Hour)
	require.NoError(t, err)
	expired, err := p.Mint("alice", "", -time.Minute)
	require.NoError(t, err)
	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "alice"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":          "",
		"garbage":        "not-a-token",
		"wrong audience": otherAud,
		"wrong key":      forged,
		"expired":        expired,
		"alg none":       noneAlg,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := p.Verify(context.Background(), token)
			require.Error(t, err)
			assert.True(t, models.IsCode(err, models.CodeAuthenticationMissing))
		})
	}
}

func TestProvider_RevokeSessions(t *testing.T) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	p := NewProvider(testSecret, "iss", "aud", newRedisStore(t), WithClock(clk.Now))
	ctx := context.Background()

	before, err := p.Mint("bob", "", time.Hour)
	require.NoError(t, err)

	clk.now = clk.now.Add(10 * time.Second)
	require.NoError(t, p.RevokeSessions(ctx, "bob"))

	_, err = p.Verify(ctx, before)
	assert.True(t, models.IsCode(err, models.CodeAuthenticationMissing))

	clk.now = clk.now.Add(2 * time.Second)
	after, err := p.Mint("bob", "", time.Hour)
	require.NoError(t, err)
	_, err = p.Verify(ctx, after)
	assert.NoError(t, err)
}

func TestProvider_DeleteAccount(t *testing.T) {
	p := NewProvider(testSecret, "iss", "aud", newRedisStore(t))
	ctx := context.Background()

	token, err := p.Mint("carol", "", time.Hour)
	require.NoError(t, err)
	require.NoError(t, p.DeleteAccount(ctx, "carol"))

	_, err = p.Verify(ctx, token)
	assert.True(t, models.IsCode(err, models.CodeAuthenticationMissing))
}

func TestProvider_StoreOutageIsBackendUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	p := NewProvider(testSecret, "iss", "aud", NewRedisSessionStore(client))

	token, err := p.Mint("dave", "", time.Hour)
	require.NoError(t, err)

	mr.Close()
	_, err = p.Verify(context.Background(), token)
	assert.True(t, models.IsCode(err, models.CodeBackendUnavailable))
}
