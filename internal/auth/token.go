package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/setlist/internal/shared"
	"github.com/golang-jwt/jwt/v5"
)

const DefaultTokenTTL = time.Hour

// Claims is the bearer token payload.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// TokenIssuer issues and verifies bearer tokens.
type TokenIssuer interface {
	Issue(userID string) (string, error)
	// Parse returns [shared.ErrUnauthorized] for any token that is malformed, forged or expired.
	Parse(token string) (*Claims, error)
}

// JWTIssuer implements [TokenIssuer] with HS256-signed JWTs.
type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTIssuer creates an issuer. An empty secret is rejected.
func NewJWTIssuer(secret string, ttl time.Duration) (*JWTIssuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: jwt secret is empty", shared.ErrInvalidConfig)
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &JWTIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (i *JWTIssuer) Issue(userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: user id is required", shared.ErrInvalidInput)
	}

	now := i.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (i *JWTIssuer) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())

	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("%w: token expired", shared.ErrUnauthorized)
	case err != nil:
		return nil, fmt.Errorf("%w: %v", shared.ErrUnauthorized, err)
	case !parsed.Valid || claims.UserID == "":
		return nil, fmt.Errorf("%w: token carries no user", shared.ErrUnauthorized)
	}

	return claims, nil
}
