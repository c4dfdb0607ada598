package testutil

import (
	"testing"
	"time"

	jose "gopkg.in/go-jose/go-jose.v2"
	"gopkg.in/go-jose/go-jose.v2/jwt"
)

// TokenOptions describes a test token. Zero values get sensible defaults.
type TokenOptions struct {
	UserID   int
	Username string
	Subject  string
	Secret   string
	Issuer   string
	Audience string
	Expiry   time.Time
}

// SignToken returns a compact HS256 JWT accepted by the test configuration
func SignToken(t *testing.T, opts TokenOptions) string {
	t.Helper()

	if opts.Secret == "" {
		opts.Secret = TestSecret
	}
	if opts.Issuer == "" {
		opts.Issuer = TestIssuer
	}
	if opts.Audience == "" {
		opts.Audience = TestAudience
	}
	if opts.Expiry.IsZero() {
		opts.Expiry = time.Now().Add(time.Hour)
	}

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: []byte(opts.Secret)},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		t.Fatalf("Failed to create signer: %v", err)
	}

	registered := jwt.Claims{
		Issuer:   opts.Issuer,
		Subject:  opts.Subject,
		Audience: jwt.Audience{opts.Audience},
		IssuedAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		Expiry:   jwt.NewNumericDate(opts.Expiry),
	}
	custom := map[string]interface{}{}
	if opts.UserID != 0 {
		custom["user_id"] = opts.UserID
	}
	if opts.Username != "" {
		custom["username"] = opts.Username
	}

	token, err := jwt.Signed(signer).Claims(registered).Claims(custom).CompactSerialize()
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return token
}

// BearerHeader formats a token for the Authorization header
func BearerHeader(token string) string {
	return "Bearer " + token
}
