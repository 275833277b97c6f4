package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/asksite/internal/domain"
	"github.com/redis/go-redis/v9"
)

// SaveHistory caches the last fetched chat history of a user.
func (s *Store) SaveHistory(ctx context.Context, userID string, convs []domain.Conversation) error {
	data, err := json.Marshal(convs)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	if err := s.client.Set(ctx, HistoryKey(userID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache history: %w", err)
	}
	return nil
}

// LoadHistory returns the cached history of a user. A cache miss is (nil, nil).
func (s *Store) LoadHistory(ctx context.Context, userID string) ([]domain.Conversation, error) {
	data, err := s.client.Get(ctx, HistoryKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get cached history: %w", err)
	}

	var convs []domain.Conversation
	if err := json.Unmarshal(data, &convs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history: %w", err)
	}
	return convs, nil
}

// InvalidateHistory removes a user's cached history.
func (s *Store) InvalidateHistory(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, HistoryKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate history: %w", err)
	}
	return nil
}
