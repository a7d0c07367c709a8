// Package auth issues and validates the HS256 token pair the HTTP API uses:
// a short-lived access token and a rotated refresh token whose hash is
// persisted as a user session row.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/maildrift/maildrift/internal/common"
)

// Claims extends the registered claims with the authenticated user id and
// (for refresh tokens) the session the token belongs to.
type Claims struct {
	jwt.RegisteredClaims
	UserID    string `json:"uid"`
	SessionID string `json:"sid,omitempty"`
}

// GenerateAccessToken signs a short-lived access token for userID.
func GenerateAccessToken(userID string, secretKey []byte, validity time.Duration) (string, error) {
	return sign(Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validity)),
		},
		UserID: userID,
	}, secretKey)
}

// GenerateRefreshToken signs a refresh token bound to a session row.
func GenerateRefreshToken(userID, sessionID string, secretKey []byte, validity time.Duration) (string, error) {
	return sign(Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validity)),
		},
		UserID:    userID,
		SessionID: sessionID,
	}, secretKey)
}

func sign(claims Claims, secretKey []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secretKey)
}

// ParseToken validates tokenString and returns its claims. Expired tokens
// return common.ErrTokenExpired so callers can tell "refresh and retry"
// apart from "reject".
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, common.ErrInvalidToken
		}
		return secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.UserID == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

// HashToken returns the hex SHA-256 of a token value. Session rows store the
// hash only; the raw token never touches the database or the sync feed.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
