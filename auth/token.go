package auth

import (
	"time"

	"care-chat/domain"
	"care-chat/errors"

	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims defines the data stored inside a session JWT.
type CustomClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies session tokens. The signing secret comes
// from configuration; it is never baked into the binary.
type TokenManager struct {
	secret        []byte
	tokenDuration time.Duration
}

func NewTokenManager(secret string, tokenDuration time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), tokenDuration: tokenDuration}
}

// Generate creates a signed JWT carrying the user's identity and role.
func (m *TokenManager) Generate(userID string, role domain.Role) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		UserID: userID,
		Role:   role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "care-chat",
		},
	}

	// HS256: HMAC with SHA256, same algorithm on issue and verify.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Validate parses a JWT string and checks its signature and expiration.
func (m *TokenManager) Validate(tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, errors.ErrInvalidToken
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, errors.ErrInvalidToken
	}
	if _, err := domain.ParseRole(claims.Role); err != nil {
		return nil, errors.ErrInvalidToken
	}
	return claims, nil
}
