package auth

import (
	"crypto/subtle"
	"fmt"
	"strings"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Default API key configuration.
const (
	DefaultAPIKeyPrefix       = "sf_"
	DefaultAPIKeyLength       = 32
	DefaultAPIKeyPrefixLength = 10
)

const base62 = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// APIKeyConfig holds configuration for API key generation.
type APIKeyConfig struct {
	// Prefix is prepended to all keys. Defaults to "sf_".
	Prefix string

	// RandomLength is the length of the random part. Defaults to 32.
	RandomLength int

	// PrefixLength is how many characters the display prefix shows.
	PrefixLength int
}

func (c APIKeyConfig) prefix() string {
	if c.Prefix == "" {
		return DefaultAPIKeyPrefix
	}
	return c.Prefix
}

func (c APIKeyConfig) randomLength() int {
	if c.RandomLength == 0 {
		return DefaultAPIKeyLength
	}
	return c.RandomLength
}

func (c APIKeyConfig) prefixLength() int {
	if c.PrefixLength == 0 {
		return DefaultAPIKeyPrefixLength
	}
	return c.PrefixLength
}

// APIKey is a freshly generated key. Secret is shown once; only Hash is
// configured on the server (server_api_key_hash).
type APIKey struct {
	Secret string
	Prefix string
	Hash   string
}

// GenerateAPIKey creates a new API key.
func GenerateAPIKey(cfg APIKeyConfig) (*APIKey, error) {
	random, err := nanoid.Generate(base62, cfg.randomLength())
	if err != nil {
		return nil, fmt.Errorf("generate api key: %w", err)
	}

	secret := cfg.prefix() + random
	return &APIKey{
		Secret: secret,
		Prefix: ExtractAPIKeyPrefix(secret, cfg),
		Hash:   HashToken(secret),
	}, nil
}

// ValidateAPIKeyFormat checks if a string matches the expected API key format.
func ValidateAPIKeyFormat(key string, cfg APIKeyConfig) bool {
	prefix := cfg.prefix()
	return strings.HasPrefix(key, prefix) && len(key) == len(prefix)+cfg.randomLength()
}

// ExtractAPIKeyPrefix gets the display prefix from a full key.
func ExtractAPIKeyPrefix(key string, cfg APIKeyConfig) string {
	prefixLen := cfg.prefixLength()
	if len(key) <= prefixLen {
		return key
	}
	return key[:prefixLen] + "..."
}

// VerifyAPIKey reports whether key hashes to hash, in constant time.
func VerifyAPIKey(key, hash string) bool {
	if key == "" || hash == "" {
		return false
	}
	got := HashToken(key)
	return subtle.ConstantTimeCompare([]byte(got), []byte(strings.ToLower(hash))) == 1
}
