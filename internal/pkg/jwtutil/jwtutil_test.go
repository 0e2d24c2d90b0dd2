package jwtutil

import (
	"errors"
	"testing"
	"time"
)

func TestGenerateAndParseToken(t *testing.T) {
	token, err := GenerateToken("secret", time.Hour, "usr_1", "alice")
	if err != nil {
		t.Fatalf("GenerateToken() failed: %v", err)
	}
	claims, err := ParseToken("secret", token)
	if err != nil {
		t.Fatalf("ParseToken() failed: %v", err)
	}
	if claims.UserID != "usr_1" || claims.Username != "alice" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestParseToken_Rejects(t *testing.T) {
	token, _ := GenerateToken("secret", time.Hour, "usr_1", "alice")
	if _, err := ParseToken("other", token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("wrong secret: err = %v, want ErrInvalidToken", err)
	}

	expired, _ := GenerateToken("secret", -time.Minute, "usr_1", "alice")
	if _, err := ParseToken("secret", expired); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired: err = %v, want ErrInvalidToken", err)
	}

	if _, err := ParseToken("secret", "garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage: err = %v, want ErrInvalidToken", err)
	}
}
