package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"acytel/logger"

	"github.com/redis/go-redis/v9"
)

// audioSchemaVersion is baked into every key. Bumping it orphans entries
// written under the old layout, so readers can never see malformed data
// after an incompatible upgrade; InvalidateVersion reclaims the space.
const audioSchemaVersion = 2

// AudioCache is the local audio cache: track ID to the complete encoded
// bytes of a previously fetched track. Get returns (nil, nil) on a miss.
type AudioCache interface {
	Get(ctx context.Context, trackID string) ([]byte, error)
	Put(ctx context.Context, trackID string, data []byte) error
	Has(ctx context.Context, trackID string) (bool, error)
}

// RedisAudioCache stores audio in Redis. Values are written whole, so a
// reader either sees the full previous entry or the full new one, never a
// partial write.
type RedisAudioCache struct {
	client *redis.Client
	ttl    time.Duration // zero means no expiry; eviction is the store's policy
}

// NewRedisAudioCache creates a cache over the given client.
func NewRedisAudioCache(client *redis.Client, ttl time.Duration) *RedisAudioCache {
	return &RedisAudioCache{client: client, ttl: ttl}
}

func audioKey(trackID string) string {
	return fmt.Sprintf("audio:v%d:%s", audioSchemaVersion, trackID)
}

// Get returns the cached bytes for a track, or (nil, nil) when absent.
// A failing store degrades to a miss so playback can fall back to the
// network path.
func (c *RedisAudioCache) Get(ctx context.Context, trackID string) ([]byte, error) {
	data, err := c.client.Get(ctx, audioKey(trackID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			logger.Debug("audio cache miss", logger.String("trackId", trackID))
			return nil, nil
		}
		logger.Warn("audio cache unavailable, treating as miss",
			logger.String("trackId", trackID),
			logger.ErrorField(err))
		return nil, nil
	}

	logger.Debug("audio cache hit",
		logger.String("trackId", trackID),
		logger.Int("dataSize", len(data)))
	return data, nil
}

// Put stores the complete encoded bytes for a track, replacing any prior
// entry wholly.
func (c *RedisAudioCache) Put(ctx context.Context, trackID string, data []byte) error {
	if err := c.client.Set(ctx, audioKey(trackID), data, c.ttl).Err(); err != nil {
		logger.Warn("failed to store track in audio cache",
			logger.String("trackId", trackID),
			logger.Int("dataSize", len(data)),
			logger.ErrorField(err))
		return fmt.Errorf("failed to cache track %s: %w", trackID, err)
	}

	logger.Debug("track cached",
		logger.String("trackId", trackID),
		logger.Int("dataSize", len(data)))
	return nil
}

// Has reports whether a complete copy of the track is cached. Store errors
// degrade to false.
func (c *RedisAudioCache) Has(ctx context.Context, trackID string) (bool, error) {
	n, err := c.client.Exists(ctx, audioKey(trackID)).Result()
	if err != nil {
		logger.Warn("audio cache existence check failed",
			logger.String("trackId", trackID),
			logger.ErrorField(err))
		return false, nil
	}
	return n > 0, nil
}

// InvalidateVersion deletes every entry written under the given schema
// version. Used to reclaim space after a version bump.
func (c *RedisAudioCache) InvalidateVersion(ctx context.Context, version int) error {
	pattern := fmt.Sprintf("audio:v%d:*", version)
	keys, err := c.client.Keys(ctx, pattern).Result()
	if err != nil {
		return fmt.Errorf("failed to list cache keys for %s: %w", pattern, err)
	}
	if len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete %d cache keys: %w", len(keys), err)
	}

	logger.Info("invalidated audio cache entries",
		logger.String("pattern", pattern),
		logger.Int("deletedCount", len(keys)))
	return nil
}
