package jwtutil

import (
	"testing"

	"github.com/flipsapp/flips-backend/pkg/config"
)

func TestGenerateAndValidateToken(t *testing.T) {
	util := NewJWTUtil(&config.JWTConfig{SigningKey: "test-key", ExpirationHours: 1})

	token, err := util.GenerateToken("mariah@flips.test", 42)
	if err != nil {
		t.Fatalf("generate error: %v", err)
	}

	claims, err := util.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate error: %v", err)
	}
	if claims.UserID != 42 || claims.Username != "mariah@flips.test" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestValidateTokenWrongKey(t *testing.T) {
	util := NewJWTUtil(&config.JWTConfig{SigningKey: "test-key", ExpirationHours: 1})
	other := NewJWTUtil(&config.JWTConfig{SigningKey: "other-key", ExpirationHours: 1})

	token, err := util.GenerateToken("mariah@flips.test", 42)
	if err != nil {
		t.Fatalf("generate error: %v", err)
	}
	if _, err := other.ValidateToken(token); err == nil {
		t.Fatalf("expected validation to fail with wrong key")
	}
}

func TestValidateGarbage(t *testing.T) {
	util := NewJWTUtil(&config.JWTConfig{SigningKey: "test-key", ExpirationHours: 1})
	if _, err := util.ValidateToken("not.a.token"); err == nil {
		t.Fatalf("expected validation to fail")
	}
}
