package services

import (
	"errors"
	"time"

	"reelhub/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// AuthService verifies bearer tokens minted by the identity provider and
// turns them into a domain.Identity. GenerateToken exists for local tooling
// and tests; production tokens are issued elsewhere with the shared secret.
type AuthService interface {
	GenerateToken(userID domain.UserID, role domain.UserRole, ttl time.Duration) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
	IdentityFromToken(tokenString string) (domain.Identity, error)
}

type Claims struct {
	UserID domain.UserID   `json:"user_id"`
	Role   domain.UserRole `json:"role"`
	jwt.RegisteredClaims
}

type authService struct {
	jwtSecret []byte
}

func NewAuthService(jwtSecret string) AuthService {
	return &authService{
		jwtSecret: []byte(jwtSecret),
	}
}

func (s *authService) GenerateToken(userID domain.UserID, role domain.UserRole, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(userID),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *authService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	switch claims.Role {
	case domain.RoleViewer, domain.RoleCurator, domain.RoleAdmin:
	default:
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *authService) IdentityFromToken(tokenString string) (domain.Identity, error) {
	if tokenString == "" {
		return domain.Identity{}, ErrInvalidToken
	}
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return domain.Identity{}, err
	}
	return domain.Identity{UserID: claims.UserID, Role: claims.Role}, nil
}
