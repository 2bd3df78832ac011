// Package auth issues session tokens for identities that proved wallet control and
// serves the signup and login endpoints.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mrgn-points/points_api/internal/config"
	"github.com/mrgn-points/points_api/internal/identity"
)

var (
	// ErrInvalidToken means a token is malformed, expired, or signed with another key.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenRevoked means the identity logged out after the token was issued.
	ErrTokenRevoked = errors.New("token version invalidated")
)

// TokenStore is the identity storage the token service needs.
type TokenStore interface {
	FindByID(ctx context.Context, id string) (identity.Identity, error)
	UpdateTokenVersion(ctx context.Context, id string, version int) error
}

// Service issues and validates session tokens.
type Service struct {
	ids        TokenStore
	keys       signingKeys
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// TokenPair is returned after signup, login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
}

// NewService builds a token service keyed from cfg.SessionSecret.
func NewService(cfg config.Config, ids TokenStore) (*Service, error) {
	keys, err := deriveKeys(cfg.SessionSecret)
	if err != nil {
		return nil, err
	}
	return &Service{
		ids:        ids,
		keys:       keys,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		now:        time.Now,
	}, nil
}

// Issue signs an access and refresh token for ident.
func (s *Service) Issue(ident identity.Identity) (TokenPair, error) {
	access, err := s.sign(ident.ID, ident.Address, ident.TokenVersion, kindAccess, s.accessTTL, s.keys.access)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.sign(ident.ID, ident.Address, ident.TokenVersion, kindRefresh, s.refreshTTL, s.keys.refresh)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: int64(s.accessTTL.Seconds())}, nil
}

func (s *Service) sign(id, address string, version int, kind string, ttl time.Duration, key []byte) (string, error) {
	now := s.now()
	return signToken(Claims{
		Address: address,
		Version: version,
		Kind:    kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}, key)
}

// Refresh verifies a refresh token and returns a new access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := parseToken(refreshToken, kindRefresh, s.keys.refresh)
	if err != nil {
		return TokenPair{}, err
	}
	ident, err := s.current(ctx, claims)
	if err != nil {
		return TokenPair{}, err
	}
	access, err := s.sign(ident.ID, ident.Address, ident.TokenVersion, kindAccess, s.accessTTL, s.keys.access)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, ExpiresIn: int64(s.accessTTL.Seconds())}, nil
}

// Authenticate validates an access token and returns its identity.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (identity.Identity, error) {
	claims, err := parseToken(accessToken, kindAccess, s.keys.access)
	if err != nil {
		return identity.Identity{}, err
	}
	return s.current(ctx, claims)
}

// Logout increments the token version so every issued token stops working.
func (s *Service) Logout(ctx context.Context, identityID string) error {
	ident, err := s.ids.FindByID(ctx, identityID)
	if err != nil {
		return err
	}
	return s.ids.UpdateTokenVersion(ctx, ident.ID, ident.TokenVersion+1)
}

func (s *Service) current(ctx context.Context, claims *Claims) (identity.Identity, error) {
	ident, err := s.ids.FindByID(ctx, claims.Subject)
	if errors.Is(err, identity.ErrNotFound) {
		return identity.Identity{}, ErrInvalidToken
	}
	if err != nil {
		return identity.Identity{}, err
	}
	if ident.TokenVersion != claims.Version || ident.Address != claims.Address {
		return identity.Identity{}, ErrTokenRevoked
	}
	return ident, nil
}
