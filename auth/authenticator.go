package auth

import (
	"net/http"
	"strings"
)

// APIKeyHeader carries a raw API key.
const APIKeyHeader = "X-API-Key"

// Principal is an authenticated caller.
type Principal struct {
	Subject string
	Method  string // "api_key" or "jwt"
	Project string
}

// Authenticator accepts an API key matching APIKeyHash or an HS256 bearer
// token signed with JWT.Secret. Either may be unset.
type Authenticator struct {
	APIKeyHash string
	JWT        *JWTConfig
}

// Enabled reports whether any credential is configured.
func (a Authenticator) Enabled() bool {
	return a.APIKeyHash != "" || (a.JWT != nil && len(a.JWT.Secret) > 0)
}

// Authenticate checks the request headers.
func (a Authenticator) Authenticate(h http.Header) (Principal, error) {
	if key := h.Get(APIKeyHeader); key != "" && a.APIKeyHash != "" {
		if !VerifyAPIKey(key, a.APIKeyHash) {
			return Principal{}, ErrInvalidAPIKey
		}
		return Principal{Subject: ExtractAPIKeyPrefix(key, APIKeyConfig{}), Method: "api_key"}, nil
	}

	if token, ok := bearer(h.Get("Authorization")); ok && a.JWT != nil {
		claims, err := ValidateAccessToken(*a.JWT, token)
		if err != nil {
			return Principal{}, err
		}
		return Principal{Subject: claims.Subject, Method: "jwt", Project: claims.Project}, nil
	}

	return Principal{}, ErrNoCredentials
}

func bearer(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}
