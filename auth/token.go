package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload carried by API access tokens.
type Claims struct {
	jwt.RegisteredClaims
}

// Authenticator issues and validates the bearer tokens protecting the API.
// The signing secret comes from configuration; the zero value is unusable on
// purpose so a missing secret can never silently sign tokens.
type Authenticator struct {
	secret   []byte
	duration time.Duration
}

func NewAuthenticator(secret string, duration time.Duration) *Authenticator {
	return &Authenticator{secret: []byte(secret), duration: duration}
}

// GenerateToken creates a signed HS256 token for the API admin.
func (a *Authenticator) GenerateToken() (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin",
			ExpiresAt: jwt.NewNumericDate(now.Add(a.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "tg-bridge",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ValidateToken parses and validates the signature and expiration of a token.
func (a *Authenticator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}
