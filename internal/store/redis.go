package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/eldtechnologies/coderoom/internal/models"
)

const (
	chatTTL        = 24 * time.Hour
	chatCacheDepth = 200
)

// ChatCache keeps the recent chat tail per room in Redis. It backs the
// teacher dashboard's recent-messages panel; the engine's in-memory log
// remains authoritative for connected clients.
type ChatCache struct {
	client *redis.Client
}

// NewChatCache connects to Redis and verifies the connection.
func NewChatCache(ctx context.Context, redisURL string) (*ChatCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &ChatCache{client: client}, nil
}

// Close closes the Redis connection.
func (c *ChatCache) Close() error {
	return c.client.Close()
}

// Ping checks the Redis connection.
func (c *ChatCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func roomChatKey(roomID string) string {
	return fmt.Sprintf("room:%s:chat", roomID)
}

// Add appends a chat message to the room's cached tail. Assigns a ULID
// id and millisecond timestamp when the caller left them unset.
func (c *ChatCache) Add(ctx context.Context, roomID string, msg *models.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	key := roomChatKey(roomID)
	pipe := c.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(msg.Timestamp),
		Member: string(data),
	})
	// Keep only the newest entries.
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-chatCacheDepth-1))
	pipe.Expire(ctx, key, chatTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// GetRecent returns up to limit messages for a room, newest first.
func (c *ChatCache) GetRecent(ctx context.Context, roomID string, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 || limit > chatCacheDepth {
		limit = chatCacheDepth
	}

	results, err := c.client.ZRevRange(ctx, roomChatKey(roomID), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, err
	}

	messages := make([]models.ChatMessage, 0, len(results))
	for _, data := range results {
		var msg models.ChatMessage
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Drop removes a room's cached tail; called when the reaper deletes the room.
func (c *ChatCache) Drop(ctx context.Context, roomID string) error {
	return c.client.Del(ctx, roomChatKey(roomID)).Err()
}
