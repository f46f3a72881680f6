package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidCookie = errors.New("invalid session cookie")

type cookieClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// CookieCodec signs session ids into the session cookie value (HS256 JWT).
type CookieCodec struct {
	key []byte
}

func NewCookieCodec(secret []byte) (*CookieCodec, error) {
	key, err := DeriveKey(secret, "drawer session cookie", 32)
	if err != nil {
		return nil, err
	}
	return &CookieCodec{key: key}, nil
}

func (c *CookieCodec) Encode(id uuid.UUID, expiresAt time.Time) (string, error) {
	claims := cookieClaims{
		SessionID: id.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	value, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign session cookie: %w", err)
	}
	return value, nil
}

func (c *CookieCodec) Decode(value string) (uuid.UUID, error) {
	var claims cookieClaims
	_, err := jwt.ParseWithClaims(value, &claims, func(*jwt.Token) (any, error) {
		return c.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrInvalidCookie, err)
	}

	id, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrInvalidCookie, err)
	}
	return id, nil
}
