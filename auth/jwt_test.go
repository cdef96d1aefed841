package auth

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("this-is-a-test-secret-key-32-bytes!")

func TestGenerateAccessToken(t *testing.T) {
	cfg := JWTConfig{Secret: testSecret, Issuer: DefaultIssuer}

	token, err := GenerateAccessToken(cfg, "ci-bot", "KAN")
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	claims, err := ValidateAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("ValidateAccessToken() error = %v", err)
	}
	if claims.Subject != "ci-bot" {
		t.Errorf("Subject = %q, want ci-bot", claims.Subject)
	}
	if claims.Project != "KAN" {
		t.Errorf("Project = %q, want KAN", claims.Project)
	}
	if claims.ID == "" {
		t.Error("ID should be set")
	}
	ttl := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	if ttl != DefaultAccessTokenTTL {
		t.Errorf("ttl = %v, want %v", ttl, DefaultAccessTokenTTL)
	}
}

func TestGenerateAccessToken_ShortSecret(t *testing.T) {
	_, err := GenerateAccessToken(JWTConfig{Secret: []byte("short")}, "x", "")
	if !errors.Is(err, ErrSecretTooShort) {
		t.Errorf("err = %v, want ErrSecretTooShort", err)
	}
}

func TestValidateAccessToken(t *testing.T) {
	cfg := JWTConfig{Secret: testSecret, Issuer: DefaultIssuer}
	valid, _ := GenerateAccessToken(cfg, "u", "")

	expired, _ := GenerateAccessToken(JWTConfig{Secret: testSecret, Issuer: DefaultIssuer, AccessTokenTTL: -time.Minute}, "u", "")
	otherIssuer, _ := GenerateAccessToken(JWTConfig{Secret: testSecret, Issuer: "someone-else"}, "u", "")
	otherSecret, _ := GenerateAccessToken(JWTConfig{Secret: []byte("a-completely-different-secret-of-32b")}, "u", "")

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "u"})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"valid", valid, nil},
		{"expired", expired, ErrTokenExpired},
		{"wrong issuer", otherIssuer, ErrInvalidToken},
		{"wrong secret", otherSecret, ErrInvalidToken},
		{"alg none", unsigned, ErrInvalidToken},
		{"garbage", "not.a.token", ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateAccessToken(cfg, tt.token)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestAuthenticator(t *testing.T) {
	key, _ := GenerateAPIKey(APIKeyConfig{})
	jwtCfg := &JWTConfig{Secret: testSecret}
	token, _ := GenerateAccessToken(*jwtCfg, "ci-bot", "KAN")
	a := Authenticator{APIKeyHash: key.Hash, JWT: jwtCfg}

	header := func(k, v string) http.Header {
		h := http.Header{}
		if k != "" {
			h.Set(k, v)
		}
		return h
	}

	tests := []struct {
		name       string
		h          http.Header
		wantMethod string
		wantErr    error
	}{
		{"api key", header(APIKeyHeader, key.Secret), "api_key", nil},
		{"bad api key", header(APIKeyHeader, "sf_nope"), "", ErrInvalidAPIKey},
		{"bearer", header("Authorization", "Bearer "+token), "jwt", nil},
		{"lowercase bearer", header("Authorization", "bearer "+token), "jwt", nil},
		{"bad bearer", header("Authorization", "Bearer x.y.z"), "", ErrInvalidToken},
		{"basic auth", header("Authorization", "Basic dTpw"), "", ErrNoCredentials},
		{"nothing", header("", ""), "", ErrNoCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := a.Authenticate(tt.h)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if p.Method != tt.wantMethod {
				t.Errorf("Method = %q, want %q", p.Method, tt.wantMethod)
			}
		})
	}

	p, _ := a.Authenticate(header("Authorization", "Bearer "+token))
	if p.Subject != "ci-bot" || p.Project != "KAN" {
		t.Errorf("Principal = %+v", p)
	}
}

func TestAuthenticator_Enabled(t *testing.T) {
	if (Authenticator{}).Enabled() {
		t.Error("empty authenticator should be disabled")
	}
	if !(Authenticator{APIKeyHash: "x"}).Enabled() {
		t.Error("api key hash should enable")
	}
	if !(Authenticator{JWT: &JWTConfig{Secret: testSecret}}).Enabled() {
		t.Error("jwt secret should enable")
	}
}
