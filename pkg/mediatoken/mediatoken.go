// Package mediatoken issues short-lived signed tokens that grant read access
// to a single media record. Browsers load generated images and videos through
// plain <img>/<video> tags, which cannot attach an Authorization header, so
// the gallery embeds these tokens in media URLs instead.
package mediatoken

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	signingSecret = []byte("change-me-in-production")
	tokenTTL      = 15 * time.Minute
)

type Claims struct {
	MediaID uuid.UUID `json:"mediaID"`
	jwt.RegisteredClaims
}

func Configure(secret string, ttl time.Duration) {
	if secret != "" {
		signingSecret = []byte(secret)
	}
	if ttl > 0 {
		tokenTTL = ttl
	}
}

func Generate(mediaID uuid.UUID) (string, error) {
	now := time.Now()
	claims := Claims{
		MediaID: mediaID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   mediaID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(signingSecret)
}

// Validate returns the media id the token grants access to.
func Validate(tokenString string) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return signingSecret, nil
	})
	if err != nil {
		return uuid.Nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return uuid.Nil, fmt.Errorf("invalid token")
	}

	return claims.MediaID, nil
}
