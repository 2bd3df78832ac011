package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

const (
	kindAccess  = "access"
	kindRefresh = "refresh"
	issuer      = "points-api"
)

var keySalt = []byte("points-api session keys")

// Claims are the session token claims. Version must match the identity's token
// version for the token to be accepted.
type Claims struct {
	Address string `json:"addr"`
	Version int    `json:"ver"`
	Kind    string `json:"kind"`
	jwt.RegisteredClaims
}

type signingKeys struct {
	access  []byte
	refresh []byte
}

// deriveKeys expands one secret into independent access and refresh keys.
func deriveKeys(secret string) (signingKeys, error) {
	if secret == "" {
		return signingKeys{}, errors.New("session secret is empty")
	}
	derive := func(info string) ([]byte, error) {
		key := make([]byte, 32)
		if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), keySalt, []byte(info)), key); err != nil {
			return nil, fmt.Errorf("derive %s key: %w", info, err)
		}
		return key, nil
	}
	access, err := derive(kindAccess)
	if err != nil {
		return signingKeys{}, err
	}
	refresh, err := derive(kindRefresh)
	if err != nil {
		return signingKeys{}, err
	}
	return signingKeys{access: access, refresh: refresh}, nil
}

func signToken(claims Claims, key []byte) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

func parseToken(raw, kind string, key []byte) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Kind != kind || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
