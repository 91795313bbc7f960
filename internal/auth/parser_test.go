package auth

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"dispatch-service/internal/model"
)

func TestParser_RoundTrip(t *testing.T) {
	userID, driverID := uuid.New(), uuid.New()
	token, err := Sign("secret", userID, model.UserRoleDriver, &driverID, time.Hour)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	claims, err := NewParser("secret").Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.UserID != userID || claims.Role != model.UserRoleDriver {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.DriverID == nil || *claims.DriverID != driverID {
		t.Fatalf("driver id lost: %+v", claims.DriverID)
	}
}

func TestParser_Rejects(t *testing.T) {
	userID := uuid.New()
	good, _ := Sign("secret", userID, model.UserRoleDriver, nil, time.Hour)
	expired, _ := Sign("secret", userID, model.UserRoleDriver, nil, -time.Minute)
	noUser, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "driver"}).SignedString([]byte("secret"))
	wrongAlg, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{"user_id": userID.String(), "role": "driver"}).SignedString([]byte("secret"))

	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{"wrong secret", "other", good},
		{"expired", "secret", expired},
		{"missing user", "secret", noUser},
		{"wrong algorithm", "secret", wrongAlg},
		{"garbage", "secret", "not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewParser(tt.secret).Parse(tt.token); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
