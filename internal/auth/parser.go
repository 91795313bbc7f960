package auth

import (
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"dispatch-service/internal/model"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	UserID   uuid.UUID
	Role     model.UserRole
	DriverID *uuid.UUID
}

type accessClaims struct {
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
	DriverID string `json:"driver_id,omitempty"`
	jwt.RegisteredClaims
}

// Parser validates HS256 access tokens issued by the auth service.
type Parser struct {
	secret []byte
}

func NewParser(secret string) *Parser {
	return &Parser{secret: []byte(secret)}
}

func (p *Parser) Parse(tokenStr string) (*Claims, error) {
	if len(p.secret) == 0 {
		return nil, errors.New("jwt secret is empty")
	}

	var c accessClaims
	tok, err := jwt.ParseWithClaims(strings.TrimSpace(tokenStr), &c, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return p.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}

	userID, err := uuid.Parse(c.UserID)
	if err != nil {
		return nil, ErrInvalidToken
	}
	role := model.UserRole(strings.ToLower(c.Role))
	if role == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{UserID: userID, Role: role}
	if c.DriverID != "" {
		driverID, err := uuid.Parse(c.DriverID)
		if err != nil {
			return nil, ErrInvalidToken
		}
		claims.DriverID = &driverID
	}
	return claims, nil
}

// Sign issues a token for the given principal. Used by the CLI and tests.
func Sign(secret string, userID uuid.UUID, role model.UserRole, driverID *uuid.UUID, ttl time.Duration) (string, error) {
	c := accessClaims{
		UserID: userID.String(),
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	if driverID != nil {
		c.DriverID = driverID.String()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
}
