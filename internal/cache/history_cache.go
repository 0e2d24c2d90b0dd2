package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"lobechat-go/internal/model"
)

const defaultTopicKey = "default"

// HistoryCache caches the message list of one session topic. A short-lived
// dirty marker is set on every write so readers fall through to the database
// until the async persist has landed.
type HistoryCache struct {
	client         *redisv9.Client
	historyTTL     time.Duration
	dirtyMarkerTTL time.Duration
}

func NewHistoryCache(client *redisv9.Client, historyTTL, dirtyMarkerTTL time.Duration) *HistoryCache {
	if historyTTL <= 0 {
		historyTTL = 60 * time.Second
	}
	if dirtyMarkerTTL <= 0 {
		dirtyMarkerTTL = 5 * time.Second
	}
	return &HistoryCache{
		client:         client,
		historyTTL:     historyTTL,
		dirtyMarkerTTL: dirtyMarkerTTL,
	}
}

func (c *HistoryCache) GetHistory(ctx context.Context, sessionID string, topicID *string) ([]model.Message, bool, error) {
	raw, err := c.client.Get(ctx, historyKey(sessionID, topicID)).Result()
	if errors.Is(err, redisv9.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get history failed: %w", err)
	}

	var messages []model.Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached history failed: %w", err)
	}
	return messages, true, nil
}

func (c *HistoryCache) SetHistory(ctx context.Context, sessionID string, topicID *string, messages []model.Message) error {
	payload, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal history cache failed: %w", err)
	}
	if err := c.client.Set(ctx, historyKey(sessionID, topicID), payload, c.historyTTL).Err(); err != nil {
		return fmt.Errorf("redis set history failed: %w", err)
	}
	return nil
}

// Invalidate marks the topic dirty and drops its cached history.
func (c *HistoryCache) Invalidate(ctx context.Context, sessionID string, topicID *string) error {
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, dirtyKey(sessionID, topicID), "1", c.dirtyMarkerTTL)
	pipe.Del(ctx, historyKey(sessionID, topicID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis invalidate history failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) IsDirty(ctx context.Context, sessionID string, topicID *string) (bool, error) {
	exists, err := c.client.Exists(ctx, dirtyKey(sessionID, topicID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis check dirty marker failed: %w", err)
	}
	return exists > 0, nil
}

// DeleteSession drops every cached topic of a session.
func (c *HistoryCache) DeleteSession(ctx context.Context, sessionID string) error {
	iter := c.client.Scan(ctx, 0, fmt.Sprintf("chat:history:%s:*", sessionID), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan history failed: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete history failed: %w", err)
	}
	return nil
}

func topicKey(topicID *string) string {
	if topicID == nil || *topicID == "" {
		return defaultTopicKey
	}
	return *topicID
}

func historyKey(sessionID string, topicID *string) string {
	return fmt.Sprintf("chat:history:%s:%s", sessionID, topicKey(topicID))
}

func dirtyKey(sessionID string, topicID *string) string {
	return fmt.Sprintf("chat:dirty:%s:%s", sessionID, topicKey(topicID))
}
