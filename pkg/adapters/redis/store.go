package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aretw0/formtree/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

const defaultPrefix = "formtree:response:"

// farFuture is the index score used for responses stored without expiration (2100-01-01).
const farFuture = 4102444800

// Store implements ports.ResponseStore using Redis.
//
// Each response is a JSON string key. A sorted set keyed "<prefix>index" tracks the session
// ids scored by their expiry, so List can prune lapsed entries lazily.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the expiration applied on every Save. Zero keeps responses forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithClock overrides the clock used to score the expiry index.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New connects to the Redis server at address.
func New(address, password string, db int, opts ...Option) *Store {
	return NewFromClient(backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	}), opts...)
}

// NewFromClient wraps an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: defaultPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Client exposes the underlying client, so a Locker can share the connection pool.
func (s *Store) Client() *backend.Client {
	return s.client
}

func (s *Store) key(sessionID string) string {
	return s.prefix + sessionID
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

func (s *Store) expiry() float64 {
	if s.ttl <= 0 {
		return farFuture
	}
	return float64(s.now().Add(s.ttl).Unix())
}

// Save writes the response and refreshes its index entry in a single pipeline.
func (s *Store) Save(ctx context.Context, sessionID string, response *domain.QuestionnaireResponse) error {
	data, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(sessionID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: s.expiry(), Member: sessionID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save response %q: %w", sessionID, err)
	}
	return nil
}

// Load reads a response, returning domain.ErrResponseNotFound for missing or expired keys.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.QuestionnaireResponse, error) {
	data, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, fmt.Errorf("%w: %s", domain.ErrResponseNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load response %q: %w", sessionID, err)
	}

	var response domain.QuestionnaireResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response %q: %w", sessionID, err)
	}
	return &response, nil
}

// Delete removes the response and its index entry.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(sessionID))
	pipe.ZRem(ctx, s.indexKey(), sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete response %q: %w", sessionID, err)
	}
	return nil
}

// List prunes index entries whose expiry has passed and returns the remaining ids.
func (s *Store) List(ctx context.Context) ([]string, error) {
	cutoff := strconv.FormatInt(s.now().Unix(), 10)
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", "("+cutoff).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired responses: %w", err)
	}

	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}
	return ids, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
