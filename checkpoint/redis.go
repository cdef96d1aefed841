package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix is the key prefix for checkpoints.
const DefaultPrefix = "storyflow:run:"

// claimedMarker replaces the data of a claimed checkpoint.
const claimedMarker = "\x00claimed"

// farFuture is the index score for checkpoints without a TTL (2100-01-01).
const farFuture = 4102444800

// Redis stores checkpoints as plain keys plus a sorted-set index scored by
// expiry, so List can prune expired runs lazily.
type Redis struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures a Redis store.
type Option func(*Redis)

// WithTTL sets the expiration for checkpoints.
func WithTTL(ttl time.Duration) Option {
	return func(s *Redis) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Redis) {
		s.prefix = prefix
	}
}

// NewRedis connects a store to the server at address.
func NewRedis(address, password string, db int, opts ...Option) *Redis {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewRedisFromClient(rdb, opts...)
}

// NewRedisFromClient creates a store on an existing client.
func NewRedisFromClient(client *backend.Client, opts ...Option) *Redis {
	s := &Redis{
		client: client,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Redis) key(runID string) string {
	return s.prefix + runID
}

func (s *Redis) indexKey() string {
	return s.prefix + "index"
}

// Ping checks the connection.
func (s *Redis) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Save implements Store.
func (s *Redis) Save(ctx context.Context, runID string, data []byte) error {
	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = farFuture
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(runID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: runID})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save checkpoint %s: %w", runID, err)
	}
	return nil
}

// Load implements Store.
func (s *Redis) Load(ctx context.Context, runID string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(runID)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load checkpoint %s: %w", runID, err)
	}
	if string(data) == claimedMarker {
		return nil, ErrClaimed
	}
	return data, nil
}

// Claim implements Store. SET XX GET swaps the data for a marker and keeps
// the TTL, so only the first caller gets the data back.
func (s *Redis) Claim(ctx context.Context, runID string) ([]byte, error) {
	pipe := s.client.TxPipeline()
	swap := pipe.SetArgs(ctx, s.key(runID), claimedMarker, backend.SetArgs{
		Mode:    "XX",
		KeepTTL: true,
		Get:     true,
	})
	pipe.ZRem(ctx, s.indexKey(), runID)

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, backend.Nil) {
		return nil, fmt.Errorf("claim checkpoint %s: %w", runID, err)
	}

	old, err := swap.Result()
	switch {
	case errors.Is(err, backend.Nil):
		return nil, ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("claim checkpoint %s: %w", runID, err)
	case old == claimedMarker:
		return nil, ErrClaimed
	}
	return []byte(old), nil
}

// Delete implements Store.
func (s *Redis) Delete(ctx context.Context, runID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(runID))
	pipe.ZRem(ctx, s.indexKey(), runID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete checkpoint %s: %w", runID, err)
	}
	return nil
}

// List implements Store. Index entries past their expiry are removed first.
func (s *Redis) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("prune expired checkpoints: %w", err)
	}

	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	return ids, nil
}

// Close closes the redis client.
func (s *Redis) Close() error {
	return s.client.Close()
}
