package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrInFlight  = errors.New("request with this key is in progress")
	ErrKeyReused = errors.New("key was used for a different request")
)

const (
	statePending = "pending"
	stateDone    = "done"
)

// Response is a stored reply to a request that carried an idempotency key.
type Response struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

type entry struct {
	State       string    `json:"state"`
	Fingerprint string    `json:"fingerprint"`
	Response    *Response `json:"response,omitempty"`
}

// IdempotencyStore keeps replies keyed by owner and client key. A key is
// first reserved, then either completed with a response or released. Each
// entry records the fingerprint of the request that reserved it; the key
// only replays for a request with the same fingerprint.
type IdempotencyStore struct {
	client *redis.Client
	prefix string
}

func NewIdempotencyStore(client *redis.Client, prefix string) *IdempotencyStore {
	if prefix == "" {
		prefix = "idem"
	}
	return &IdempotencyStore{client: client, prefix: prefix}
}

func (s *IdempotencyStore) key(owner, key string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, owner, key)
}

// Begin reserves the key. It returns the stored response when the key has
// already completed, ErrInFlight when another request holds it and
// ErrKeyReused when the key belongs to a request with another fingerprint.
func (s *IdempotencyStore) Begin(ctx context.Context, owner, key, fingerprint string, ttl time.Duration) (*Response, error) {
	pending, err := json.Marshal(entry{State: statePending, Fingerprint: fingerprint})
	if err != nil {
		return nil, err
	}
	ok, err := s.client.SetNX(ctx, s.key(owner, key), pending, ttl).Result()
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, nil
	}

	data, err := s.client.Get(ctx, s.key(owner, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		// Expired between SetNX and Get.
		return s.Begin(ctx, owner, key, fingerprint, ttl)
	}
	if err != nil {
		return nil, err
	}
	var stored entry
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal idempotency entry: %w", err)
	}
	if stored.Fingerprint != fingerprint {
		return nil, ErrKeyReused
	}
	if stored.State != stateDone || stored.Response == nil {
		return nil, ErrInFlight
	}
	return stored.Response, nil
}

// Complete stores the response for later replays.
func (s *IdempotencyStore) Complete(ctx context.Context, owner, key, fingerprint string, resp Response, ttl time.Duration) error {
	data, err := json.Marshal(entry{State: stateDone, Fingerprint: fingerprint, Response: &resp})
	if err != nil {
		return fmt.Errorf("failed to marshal idempotency entry: %w", err)
	}
	return s.client.Set(ctx, s.key(owner, key), data, ttl).Err()
}

// Release drops a reservation so the client may retry with the same key.
func (s *IdempotencyStore) Release(ctx context.Context, owner, key string) error {
	return s.client.Del(ctx, s.key(owner, key)).Err()
}
