package httpapi

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenService emite los tokens de sesión anónima.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

// Claims lleva el uid opaco de la sesión anónima.
type Claims struct {
	UID string `json:"uid"`
	jwt.RegisteredClaims
}

var ErrTokenNotConfigured = errors.New("token service not configured")

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: "msgapp-authd",
	}
}

func (s *TokenService) Mint(uid string) (string, error) {
	if s == nil || len(s.secret) == 0 {
		return "", ErrTokenNotConfigured
	}
	now := time.Now().UTC()
	claims := Claims{
		UID: uid,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Parse valida firma y vigencia y devuelve los claims.
func (s *TokenService) Parse(tokenString string) (*Claims, error) {
	if s == nil || len(s.secret) == 0 {
		return nil, ErrTokenNotConfigured
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}
	return claims, nil
}
