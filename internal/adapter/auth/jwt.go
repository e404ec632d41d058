package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/urbanestate/listing-service/internal/listing/domain"
	"github.com/urbanestate/listing-service/internal/platform/logger"
)

// Claims are the identity claims accepted in a token. Tokens issued by the
// user service carry user_id; older session tokens carry only id.
type Claims struct {
	UserID   string `json:"user_id,omitempty"`
	LegacyID string `json:"id,omitempty"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// subjectID returns the first non-empty of user_id, id and sub.
func (c *Claims) subjectID() string {
	switch {
	case c.UserID != "":
		return c.UserID
	case c.LegacyID != "":
		return c.LegacyID
	default:
		return c.Subject
	}
}

// JWTAuthenticator verifies HMAC-signed tokens.
type JWTAuthenticator struct {
	secret []byte
	logger *logger.Logger
}

var _ domain.Authenticator = (*JWTAuthenticator)(nil)

func NewJWTAuthenticator(secret string, log *logger.Logger) *JWTAuthenticator {
	return &JWTAuthenticator{secret: []byte(secret), logger: log.Named("JWTAuthenticator")}
}

// Verify checks signature and expiry and returns the user id.
func (a *JWTAuthenticator) Verify(ctx context.Context, tokenString string) (string, error) {
	if tokenString == "" {
		return "", fmt.Errorf("%w: token is not provided", domain.ErrUnauthenticated)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		a.logger.Debug("token rejected", zap.Error(err))
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: token has expired", domain.ErrUnauthenticated)
		}
		return "", fmt.Errorf("%w: token is invalid", domain.ErrUnauthenticated)
	}
	if !token.Valid {
		return "", fmt.Errorf("%w: token is not valid", domain.ErrUnauthenticated)
	}

	id := claims.subjectID()
	if id == "" {
		return "", fmt.Errorf("%w: user id not found in token claims", domain.ErrUnauthenticated)
	}
	return id, nil
}

// Issue signs a token for userID that expires after ttl. It is used by the
// seed command and tests; production tokens come from the user service.
func (a *JWTAuthenticator) Issue(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}
