package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/cabinetworks/contractor-backend/pkg/config"
	"github.com/cabinetworks/contractor-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "contractor",
		ExpirationMinutes: 30,
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now().UTC()
	groupID := int64(12)

	token, err := MintAccessToken(cfg, now, AccessTokenPayload{
		UserID:  7,
		Role:    enums.UserRoleContractor,
		GroupID: &groupID,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}

	if claims.UserID != 7 {
		t.Fatalf("expected user_id 7, got %d", claims.UserID)
	}
	if claims.Role != enums.UserRoleContractor {
		t.Fatalf("unexpected role %s", claims.Role)
	}
	if claims.GroupID == nil || *claims.GroupID != groupID {
		t.Fatalf("group id not preserved")
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("issuer mismatch %s", claims.Issuer)
	}
	if claims.ID == "" {
		t.Fatalf("expected generated jti")
	}
	if claims.ExpiresAt == nil || !claims.ExpiresAt.Time.After(now) {
		t.Fatalf("expected expiry in the future")
	}
}

func TestMintAccessTokenValidation(t *testing.T) {
	now := time.Now()
	cases := map[string]struct {
		cfg     config.JWTConfig
		payload AccessTokenPayload
	}{
		"missing secret": {config.JWTConfig{Issuer: "x", ExpirationMinutes: 1}, AccessTokenPayload{UserID: 1, Role: enums.UserRoleAdmin}},
		"missing issuer": {config.JWTConfig{Secret: "x", ExpirationMinutes: 1}, AccessTokenPayload{UserID: 1, Role: enums.UserRoleAdmin}},
		"zero ttl":       {config.JWTConfig{Secret: "x", Issuer: "x"}, AccessTokenPayload{UserID: 1, Role: enums.UserRoleAdmin}},
		"missing user":   {testJWTConfig(), AccessTokenPayload{Role: enums.UserRoleAdmin}},
		"invalid role":   {testJWTConfig(), AccessTokenPayload{UserID: 1, Role: "owner"}},
	}
	for name, tc := range cases {
		if _, err := MintAccessToken(tc.cfg, now, tc.payload); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestParseAccessTokenRejectsTampering(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: 1, Role: enums.UserRoleAdmin})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	other := cfg
	other.Secret = "different"
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatalf("expected signature error")
	}

	wrongIssuer := cfg
	wrongIssuer.Issuer = "someone-else"
	if _, err := ParseAccessToken(wrongIssuer, token); err == nil {
		t.Fatalf("expected issuer error")
	}

	if _, err := ParseAccessToken(cfg, token+"x"); err == nil {
		t.Fatalf("expected error for mangled token")
	}
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), AccessTokenPayload{UserID: 1, Role: enums.UserRoleAdmin})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); err == nil || !strings.Contains(err.Error(), "expired") {
		t.Fatalf("expected expired error, got %v", err)
	}
}

func TestParseAccessTokenRejectsOtherAlgorithms(t *testing.T) {
	cfg := testJWTConfig()
	claims := AccessTokenClaims{
		UserID: 1,
		Role:   enums.UserRoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); err == nil {
		t.Fatalf("expected HS512 token to be rejected")
	}
}
