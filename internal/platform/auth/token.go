package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	RoleDoctor  = "doctor"
	RolePatient = "patient"
)

// ValidRole reports whether role is one of the two account kinds.
func ValidRole(role string) bool {
	return role == RoleDoctor || role == RolePatient
}

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	jwt.RegisteredClaims
	ID   string `json:"id"`
	Role string `json:"role"`
}

// TokenManager issues and verifies HS256 bearer tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (m *TokenManager) Issue(userID uuid.UUID, role string) (string, error) {
	now := m.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		ID:   userID.String(),
		Role: role,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Verify parses tokenStr and returns the caller identity it carries.
func (m *TokenManager) Verify(tokenStr string) (Identity, error) {
	if tokenStr == "" {
		return Identity{}, ErrInvalidToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	id, err := uuid.Parse(claims.ID)
	if err != nil || !ValidRole(claims.Role) {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: id, Role: claims.Role}, nil
}
