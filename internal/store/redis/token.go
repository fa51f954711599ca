package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/charge/internal/keystone"
)

// TokenStore keeps the Keystone token in Redis as JSON.
//
// Values are written without TTL: the token provider decides staleness from
// the token's own expiry.
type TokenStore struct {
	client redis.UniversalClient
}

// NewTokenStore creates a new Redis token store
func NewTokenStore(client redis.UniversalClient) *TokenStore {
	return &TokenStore{
		client: client,
	}
}

// Get returns the token stored under key. A missing key is not an error.
func (s *TokenStore) Get(ctx context.Context, key string) (*keystone.Token, bool, error) {
	data, err := s.client.Get(ctx, TokenKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil // Cache miss
		}
		return nil, false, fmt.Errorf("failed to get token: %w", err)
	}

	var token keystone.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal token: %w", err)
	}

	return &token, true, nil
}

// Set overwrites the token stored under key
func (s *TokenStore) Set(ctx context.Context, key string, token *keystone.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	if err := s.client.Set(ctx, TokenKey(key), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	return nil
}

// Ping checks that Redis answers
func (s *TokenStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
