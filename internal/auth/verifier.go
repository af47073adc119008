// Package auth provides bearer token verification helpers.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Verifier validates bearer tokens and extracts district/role claims.
// Supports modes: dev (district:role[:user], no verify) and hmac (HS256 JWT).
type Verifier struct {
	Mode          string
	HMACSecret    []byte
	DistrictClaim string
	RoleClaim     string
	UserClaim     string
	Now           func() time.Time
}

type Principal struct {
	District string
	Role     string
	UserID   string
}

var (
	ErrMalformed = errors.New("malformed token")
	ErrSignature = errors.New("bad signature")
	ErrExpired   = errors.New("token expired")
)

// NewVerifier builds a Verifier; empty claim names fall back to district, role and sub.
func NewVerifier(mode, secret, districtClaim, roleClaim string) *Verifier {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = "dev"
	}
	return &Verifier{
		Mode:          mode,
		HMACSecret:    []byte(secret),
		DistrictClaim: or(districtClaim, "district"),
		RoleClaim:     or(roleClaim, "role"),
		UserClaim:     "sub",
		Now:           time.Now,
	}
}

func or(v, d string) string {
	if strings.TrimSpace(v) != "" {
		return v
	}
	return d
}

func (v *Verifier) Verify(token string) (Principal, error) {
	if v.Mode == "dev" {
		parts := strings.Split(token, ":")
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return Principal{}, fmt.Errorf("%w: expected district:role", ErrMalformed)
		}
		p := Principal{District: parts[0], Role: strings.ToLower(parts[1])}
		if len(parts) > 2 {
			p.UserID = parts[2]
		}
		return p, nil
	}
	if v.Mode != "hmac" {
		return Principal{}, fmt.Errorf("unsupported auth mode %q", v.Mode)
	}

	segs := strings.Split(token, ".")
	if len(segs) != 3 {
		return Principal{}, fmt.Errorf("%w: expected 3 segments", ErrMalformed)
	}
	headerJSON, err := b64urlDecode(segs[0])
	if err != nil {
		return Principal{}, fmt.Errorf("%w: header: %v", ErrMalformed, err)
	}
	payloadJSON, err := b64urlDecode(segs[1])
	if err != nil {
		return Principal{}, fmt.Errorf("%w: payload: %v", ErrMalformed, err)
	}
	sig, err := b64urlDecode(segs[2])
	if err != nil {
		return Principal{}, fmt.Errorf("%w: signature: %v", ErrMalformed, err)
	}
	var hdr struct {
		Alg string `json:"alg"`
	}
	if err := json.Unmarshal(headerJSON, &hdr); err != nil {
		return Principal{}, fmt.Errorf("%w: header: %v", ErrMalformed, err)
	}
	if hdr.Alg != "HS256" {
		return Principal{}, fmt.Errorf("unsupported alg %q for hmac", hdr.Alg)
	}
	mac := hmac.New(sha256.New, v.HMACSecret)
	mac.Write([]byte(segs[0] + "." + segs[1]))
	if !hmac.Equal(mac.Sum(nil), sig) {
		return Principal{}, ErrSignature
	}

	var claims map[string]any
	if err := json.Unmarshal(payloadJSON, &claims); err != nil {
		return Principal{}, fmt.Errorf("%w: claims: %v", ErrMalformed, err)
	}
	// exp is seconds since epoch
	if exp, ok := claims["exp"].(float64); ok && v.Now().Unix() >= int64(exp) {
		return Principal{}, ErrExpired
	}
	district, _ := claims[v.DistrictClaim].(string)
	role, _ := claims[v.RoleClaim].(string)
	user, _ := claims[v.UserClaim].(string)
	if district == "" {
		return Principal{}, fmt.Errorf("%w: missing %s claim", ErrMalformed, v.DistrictClaim)
	}
	if role == "" {
		role = "viewer"
	}
	return Principal{District: district, Role: strings.ToLower(role), UserID: user}, nil
}

// SignHS256 mints a token for claims. Used by the CLI and tests.
func SignHS256(secret []byte, claims map[string]any) (string, error) {
	hdr := b64urlEncode([]byte(`{"alg":"HS256","typ":"JWT"}`))
	body, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	input := hdr + "." + b64urlEncode(body)
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(input))
	return input + "." + b64urlEncode(mac.Sum(nil)), nil
}

func b64urlDecode(s string) ([]byte, error) { return base64.RawURLEncoding.DecodeString(s) }
func b64urlEncode(b []byte) string          { return base64.RawURLEncoding.EncodeToString(b) }
