// Package auth turns bearer tokens into the principal every lifecycle call acts as.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrInvalidRole  = errors.New("invalid role")
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) IsValid() bool { return r == RoleUser || r == RoleAdmin }

// Principal is the authenticated caller.
type Principal struct {
	ID   string
	Role Role
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService signs and validates HS256 access tokens.
type TokenService struct {
	secretKey     []byte
	tokenDuration time.Duration
}

func NewTokenService(secretKey string, tokenDuration time.Duration) *TokenService {
	return &TokenService{secretKey: []byte(secretKey), tokenDuration: tokenDuration}
}

func (s *TokenService) GenerateToken(p Principal) (string, error) {
	if !p.Role.IsValid() {
		return "", ErrInvalidRole
	}
	now := time.Now()
	claims := Claims{
		Role: string(p.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenDuration)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secretKey)
}

func (s *TokenService) ValidateToken(tokenString string) (Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Principal{}, ErrExpiredToken
		}
		return Principal{}, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return Principal{}, ErrInvalidToken
	}
	role := Role(claims.Role)
	if !role.IsValid() {
		return Principal{}, ErrInvalidRole
	}
	return Principal{ID: claims.Subject, Role: role}, nil
}
