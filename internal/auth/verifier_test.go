package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDevToken(t *testing.T) {
	v := NewVerifier("dev", "", "", "")
	p, err := v.Verify("d_demo:Planner:u-7")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if p.District != "d_demo" || p.Role != "planner" || p.UserID != "u-7" {
		t.Fatalf("unexpected principal %#v", p)
	}
	if _, err := v.Verify("d_demo"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("want ErrMalformed, got %v", err)
	}
}

func TestHMACRoundTrip(t *testing.T) {
	secret := []byte("k")
	v := NewVerifier("hmac", "k", "", "")
	v.Now = func() time.Time { return time.Unix(1000, 0) }
	tok, err := SignHS256(secret, map[string]any{"district": "d1", "role": "ADMIN", "sub": "u1", "exp": 2000})
	if err != nil {
		t.Fatal(err)
	}
	p, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if p != (Principal{District: "d1", Role: "admin", UserID: "u1"}) {
		t.Fatalf("unexpected principal %#v", p)
	}
}

func TestHMACRejects(t *testing.T) {
	v := NewVerifier("hmac", "k", "", "")
	v.Now = func() time.Time { return time.Unix(5000, 0) }

	expired, _ := SignHS256([]byte("k"), map[string]any{"district": "d1", "exp": 4000})
	if _, err := v.Verify(expired); !errors.Is(err, ErrExpired) {
		t.Fatalf("want ErrExpired, got %v", err)
	}
	forged, _ := SignHS256([]byte("other"), map[string]any{"district": "d1"})
	if _, err := v.Verify(forged); !errors.Is(err, ErrSignature) {
		t.Fatalf("want ErrSignature, got %v", err)
	}
	noDistrict, _ := SignHS256([]byte("k"), map[string]any{"role": "admin"})
	if _, err := v.Verify(noDistrict); !errors.Is(err, ErrMalformed) {
		t.Fatalf("want ErrMalformed, got %v", err)
	}
	if _, err := v.Verify("a.b"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("want ErrMalformed, got %v", err)
	}
}

func TestHMACCustomClaimsDefaultRole(t *testing.T) {
	v := NewVerifier("hmac", "k", "org", "perm")
	tok, _ := SignHS256([]byte("k"), map[string]any{"org": "d9"})
	p, err := v.Verify(tok)
	if err != nil {
		t.Fatal(err)
	}
	if p.District != "d9" || p.Role != "viewer" {
		t.Fatalf("unexpected principal %#v", p)
	}
	if !strings.HasPrefix(tok, "eyJ") {
		t.Fatalf("token header not base64url JSON: %s", tok)
	}
}
