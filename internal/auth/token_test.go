package auth

import (
	"errors"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)

	token, err := m.Issue(42)
	if err != nil {
		t.Fatal(err)
	}

	userID, err := m.ResolveIdentity(token)
	if err != nil {
		t.Fatal(err)
	}
	if userID != 42 {
		t.Fatalf("userID=%d want=42", userID)
	}
}

func TestTokenWrongSecret(t *testing.T) {
	token, err := NewTokenManager("secret-a", time.Hour).Issue(42)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := NewTokenManager("secret-b", time.Hour).ResolveIdentity(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken, got %v", err)
	}
}

func TestTokenExpired(t *testing.T) {
	m := NewTokenManager("test-secret", -time.Minute)

	token, err := m.Issue(42)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := m.ResolveIdentity(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken, got %v", err)
	}
}

func TestTokenGarbage(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)

	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := m.ResolveIdentity(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token=%q: want ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestBcryptCredential(t *testing.T) {
	c := NewBcryptCredential()

	hash, err := c.Hash("1234")
	if err != nil {
		t.Fatal(err)
	}
	if hash == "1234" {
		t.Fatal("哈希不得等于明文")
	}

	if !c.Verify("1234", hash) {
		t.Fatal("正确的 PIN 应通过校验")
	}
	if c.Verify("0000", hash) {
		t.Fatal("错误的 PIN 不应通过校验")
	}
}
