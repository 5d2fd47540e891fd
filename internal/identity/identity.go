// Package identity verifies caller tokens and manages sessions with the
// external identity provider.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chatroom/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the verified caller.
type Identity struct {
	ID          string
	DisplayName string
	AvatarURL   string
	IssuedAt    time.Time
}

// Verifier turns a bearer token into an Identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// AccountManager performs session and account operations against the
// identity provider.
type AccountManager interface {
	RevokeSessions(ctx context.Context, id string) error
	DeleteAccount(ctx context.Context, id string) error
}

// Claims is the token payload minted and accepted by Provider.
type Claims struct {
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// Provider is an HMAC token provider with revocation and deletion backed by
// a SessionStore.
type Provider struct {
	secret   []byte
	issuer   string
	audience string
	store    SessionStore
	now      func() time.Time
}

// Option configures a Provider.
type Option func(*Provider)

// WithClock overrides the provider's time source.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// NewProvider creates a Provider.
func NewProvider(secret, issuer, audience string, store SessionStore, opts ...Option) *Provider {
	p := &Provider{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		store:    store,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Mint issues a token for id valid for ttl.
func (p *Provider) Mint(id, displayName string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", errors.New("identity id is required")
	}
	now := p.now()
	claims := Claims{
		Name: displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}

// Verify parses and validates token, then checks it against revocations and
// deleted accounts.
func (p *Provider) Verify(ctx context.Context, token string) (*Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, models.NewAuthenticationMissingError("Token required")
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.secret, nil
	},
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil || !parsed.Valid {
		return nil, models.NewAuthenticationMissingError("Invalid or expired token")
	}
	if claims.Subject == "" {
		return nil, models.NewAuthenticationMissingError("Invalid token structure - missing subject")
	}

	deleted, err := p.store.IsDeleted(ctx, claims.Subject)
	if err != nil {
		return nil, models.NewBackendUnavailableError(err)
	}
	if deleted {
		return nil, models.NewAuthenticationMissingError("Account no longer exists")
	}

	var issuedAt time.Time
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}
	cutoff, ok, err := p.store.RevokedBefore(ctx, claims.Subject)
	if err != nil {
		return nil, models.NewBackendUnavailableError(err)
	}
	// Token timestamps have second precision, so anything issued in the
	// revocation second is rejected too.
	if ok && !issuedAt.After(cutoff) {
		return nil, models.NewAuthenticationMissingError("Session has been revoked")
	}

	return &Identity{
		ID:          claims.Subject,
		DisplayName: claims.Name,
		AvatarURL:   claims.Picture,
		IssuedAt:    issuedAt,
	}, nil
}

// RevokeSessions invalidates every token issued to id up to now.
func (p *Provider) RevokeSessions(ctx context.Context, id string) error {
	if err := p.store.SetRevokedBefore(ctx, id, p.now().Truncate(time.Second)); err != nil {
		return models.NewBackendUnavailableError(err)
	}
	return nil
}

// DeleteAccount removes id from the provider. Its tokens stop verifying.
func (p *Provider) DeleteAccount(ctx context.Context, id string) error {
	if err := p.store.MarkDeleted(ctx, id); err != nil {
		return models.NewBackendUnavailableError(err)
	}
	return nil
}
