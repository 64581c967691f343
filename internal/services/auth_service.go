package services

import (
	"context"
	"errors"

	"carelink/internal/repository"
	care_errors "carelink/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is what the external identity provider asserts about a request.
// Role is optional; a missing role falls back to a user-store lookup, done
// exactly once per request in ResolveRole.
type Claims struct {
	UserID uuid.UUID
	Role   string
}

type tokenClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// AuthService verifies bearer tokens and resolves effective roles.
type AuthService struct {
	secret []byte
	users  repository.UserRepository
}

func NewAuthService(secret string, users repository.UserRepository) *AuthService {
	return &AuthService{secret: []byte(secret), users: users}
}

// ParseAccessToken validates the token signature and extracts claims.
func (s *AuthService) ParseAccessToken(token string) (Claims, error) {
	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, care_errors.ErrUnauthorized
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Claims{}, care_errors.ErrUnauthorized
	}
	return Claims{UserID: userID, Role: claims.Role}, nil
}

// ResolveRole returns the effective role: the role claim when present,
// otherwise one lookup against the user store. Unknown users resolve to an
// unauthorized error rather than a default role.
func (s *AuthService) ResolveRole(ctx context.Context, claims Claims) (string, error) {
	if claims.Role != "" {
		return claims.Role, nil
	}
	u, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, care_errors.ErrNotFound) {
			return "", care_errors.ErrUnauthorized
		}
		return "", err
	}
	return u.Role, nil
}
