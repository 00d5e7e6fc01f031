// Package redis provides Redis-backed adapters: a content repository, a
// progress store with optional expiry, and a distributed session locker.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/arbor/pkg/clock"
	"github.com/aretw0/arbor/pkg/domain"
)

// DefaultPrefix namespaces every key written by this package.
const DefaultPrefix = "arbor:"

// noExpiry is the index score of sessions saved without a TTL (2100-01-01).
const noExpiry = 4102444800

// Store implements ports.ProgressStore using Redis.
// Sessions are JSON strings; a sorted set indexes them by expiry.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	clock  clock.Clock
}

// Option configures a Store or a Repository.
type Option func(*config)

type config struct {
	prefix string
	ttl    time.Duration
	clock  clock.Clock
}

// WithTTL sets the expiration for saved progress. Zero keeps it forever.
func WithTTL(ttl time.Duration) Option {
	return func(c *config) {
		c.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(c *config) {
		c.prefix = prefix
	}
}

// WithClock sets the clock used to score the expiry index.
func WithClock(clk clock.Clock) Option {
	return func(c *config) {
		c.clock = clk
	}
}

func newConfig(opts []Option) config {
	c := config{prefix: DefaultPrefix, clock: clock.Real()}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Dial creates a client for the given server.
func Dial(address, password string, db int) *backend.Client {
	return backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
}

// NewStore creates a progress store from an existing client.
func NewStore(client *backend.Client, opts ...Option) *Store {
	c := newConfig(opts)
	return &Store{client: client, prefix: c.prefix, ttl: c.ttl, clock: c.clock}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + "session:" + sessionID
}

func (s *Store) indexKey() string {
	return s.prefix + "session:index"
}

// Save persists the progress and refreshes its index entry.
func (s *Store) Save(ctx context.Context, sessionID string, progress *domain.Progress) error {
	data, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}

	score := float64(noExpiry)
	if s.ttl > 0 {
		score = float64(s.clock.Now().Add(s.ttl).Unix())
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(sessionID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: sessionID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves the progress of a session.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Progress, error) {
	val, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrProgressNotFound)
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var p domain.Progress
	if err := json.Unmarshal(val, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal progress: %w", err)
	}
	return &p, nil
}

// Delete removes the session.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(sessionID))
	pipe.ZRem(ctx, s.indexKey(), sessionID)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns live sessions, pruning expired index entries first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := strconv.FormatInt(s.clock.Now().Unix(), 10)
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", now).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired sessions: %w", err)
	}
	sessions, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
