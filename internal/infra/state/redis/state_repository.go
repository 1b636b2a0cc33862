package redisstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/JojayD/codecanvas-sub000/internal/domain"
)

// RedisStateRepository is the redis implementation of StateRepository.
type RedisStateRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStateRepository creates the repository. keyPrefix namespaces
// every key and channel, defaulting to "cc:".
func NewRedisStateRepository(client *redis.Client, keyPrefix string) *RedisStateRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisStateRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "cc:"
	}
	return &RedisStateRepository{client: client, keyPrefix: keyPrefix}
}

// ChannelForRoom names the pub/sub channel carrying a room's change
// feed. Exported so the hub can subscribe to the same channel the
// repository publishes to.
func ChannelForRoom(keyPrefix, roomID string) string {
	return fmt.Sprintf("%sroom:%s:events", keyPrefix, roomID)
}

func (r *RedisStateRepository) hostHintKey(roomID string) string {
	return fmt.Sprintf("%sroom:%s:host", r.keyPrefix, roomID)
}

// PublishRoomEvent pushes an event onto the room's change-feed channel.
func (r *RedisStateRepository) PublishRoomEvent(ctx context.Context, roomID string, event domain.RoomEvent) error {
	channel := ChannelForRoom(r.keyPrefix, roomID)
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal room event (type %s, room %s): %w", event.Type, roomID, err)
	}
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		logrus.WithFields(logrus.Fields{
			"channel":      channel,
			"payload_size": len(payload),
			"event_type":   event.Type,
			"room_id":      roomID,
		}).WithError(err).Error("Redis Publish failed")
		return fmt.Errorf("redis: publish room event to channel %s: %w", channel, err)
	}
	return nil
}

// RememberHost stores the creator identity hint for a room.
func (r *RedisStateRepository) RememberHost(ctx context.Context, roomID, userID string, ttl time.Duration) error {
	key := r.hostHintKey(roomID)
	if err := r.client.Set(ctx, key, userID, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set host hint for room %s on key %s: %w", roomID, key, err)
	}
	return nil
}

// RememberedHost returns the stored hint, "" when none exists.
func (r *RedisStateRepository) RememberedHost(ctx context.Context, roomID string) (string, error) {
	key := r.hostHintKey(roomID)
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("redis: get host hint for room %s from %s: %w", roomID, key, err)
	}
	return val, nil
}

// ForgetHost drops the hint.
func (r *RedisStateRepository) ForgetHost(ctx context.Context, roomID string) error {
	key := r.hostHintKey(roomID)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis: delete host hint for room %s on key %s: %w", roomID, key, err)
	}
	return nil
}

// CheckRateLimit increments the counter behind key and reports whether
// the window budget is exhausted. INCR and EXPIRE ride one pipeline to
// cut the race window between counting and expiring.
func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	pipe := r.client.Pipeline()
	incrCmd := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis: pipeline failed for rate limit check on key %s: %w", key, err)
	}
	count, err := incrCmd.Result()
	if err != nil {
		return false, fmt.Errorf("redis: get incr result for rate limit on key %s: %w", key, err)
	}
	return count > int64(limit), nil
}
