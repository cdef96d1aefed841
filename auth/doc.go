// Package auth protects the storyflow HTTP server.
//
// Callers authenticate with either an API key in the X-API-Key header or
// an HS256 JWT in "Authorization: Bearer". The server only stores the
// SHA-256 hash of its API key.
//
//	key, _ := auth.GenerateAPIKey(auth.APIKeyConfig{})
//	// configure server_api_key_hash = key.Hash, hand out key.Secret
//
//	a := auth.Authenticator{APIKeyHash: key.Hash, JWT: &auth.JWTConfig{Secret: secret}}
//	principal, err := a.Authenticate(r.Header)
package auth
