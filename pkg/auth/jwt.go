package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingRole  = errors.New("token has no role claim")
)

// Claims are the token claims issued by the identity provider.
type Claims struct {
	UserID uuid.UUID
	Email  string
	Role   string
}

// Verifier validates bearer tokens issued by the identity provider and
// extracts the caller's identity and role.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	sub, _ := mapClaims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}

	claims := &Claims{UserID: userID}
	if email, ok := mapClaims["email"].(string); ok {
		claims.Email = email
	}

	// The identity provider puts the role in app_metadata; tokens minted by
	// older versions carry it at the top level.
	if role, ok := mapClaims["role"].(string); ok && role != "" {
		claims.Role = role
	} else if meta, ok := mapClaims["app_metadata"].(map[string]interface{}); ok {
		if role, ok := meta["role"].(string); ok {
			claims.Role = role
		}
	}
	if claims.Role == "" {
		return nil, ErrMissingRole
	}

	return claims, nil
}
