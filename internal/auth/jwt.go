package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rl1809/demand-desk/internal/core/domain"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims carries the acting user. Subject holds the user id.
type Claims struct {
	Name        string `json:"name"`
	Designation string `json:"designation"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secret []byte
	expire time.Duration
	issuer string
}

func NewTokenManager(secret string, expire time.Duration, issuer string) *TokenManager {
	return &TokenManager{secret: []byte(secret), expire: expire, issuer: issuer}
}

// GenerateToken signs an HS256 token for the actor.
func (m *TokenManager) GenerateToken(actor domain.Actor) (string, error) {
	now := time.Now()
	claims := Claims{
		Name:        actor.Name,
		Designation: actor.Designation,
		Role:        string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expire)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseActor validates the token and resolves the actor it names.
func (m *TokenManager) ParseActor(tokenString string) (domain.Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer))
	if err != nil {
		return domain.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Name == "" {
		return domain.Actor{}, ErrInvalidToken
	}

	return domain.Actor{
		ID:          claims.Subject,
		Name:        claims.Name,
		Designation: claims.Designation,
		Role:        domain.ParseRole(claims.Role),
	}, nil
}
