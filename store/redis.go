package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"signaged/proto"
)

const layoutKeyPrefix = "signage:layout:"

// putLayoutScript bumps the version counter and stores the new layout
// in one atomic step, which is the per-key increment-and-store the
// LayoutStore contract requires.
// ARGV: [1]=layout JSON, [2]=checksum, [3]=updated_at (unix seconds)
var putLayoutScript = goredis.NewScript(`
local version = redis.call('HINCRBY', KEYS[1], 'version', 1)
redis.call('HSET', KEYS[1], 'layout', ARGV[1], 'checksum', ARGV[2], 'updated_at', ARGV[3])
return version
`)

// RedisStore persists layouts in a Redis hash per screen.
type RedisStore struct {
	rdb *goredis.Client
}

// NewRedisStore connects to Redis and verifies the connection with a
// ping before returning.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing redis URL: %w", err)
	}

	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("error pinging redis: %w", err)
	}

	return &RedisStore{rdb: client}, nil
}

func layoutKey(screenID string) string {
	return layoutKeyPrefix + screenID
}

func (s *RedisStore) Get(ctx context.Context, screenID string) (Record, error) {
	fields, err := s.rdb.HGetAll(ctx, layoutKey(screenID)).Result()
	if err != nil {
		return Record{}, fmt.Errorf("failed to read layout for %s: %w", screenID, err)
	}
	if len(fields) == 0 {
		return Record{}, ErrNotFound
	}

	var rec Record
	if raw, ok := fields["layout"]; ok {
		if err := json.Unmarshal([]byte(raw), &rec.Layout); err != nil {
			return Record{}, fmt.Errorf("corrupt layout record for %s: %w", screenID, err)
		}
	}
	rec.Version, _ = strconv.ParseInt(fields["version"], 10, 64)
	rec.Checksum, _ = strconv.ParseUint(fields["checksum"], 10, 64)
	if ts, err := strconv.ParseInt(fields["updated_at"], 10, 64); err == nil {
		rec.UpdatedAt = time.Unix(ts, 0)
	}
	return rec, nil
}

func (s *RedisStore) Put(ctx context.Context, screenID string, layout proto.Layout) (int64, error) {
	data, err := json.Marshal(layout)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal layout for %s: %w", screenID, err)
	}

	version, err := putLayoutScript.Run(ctx, s.rdb, []string{layoutKey(screenID)},
		string(data),
		strconv.FormatUint(layout.Checksum(), 10),
		strconv.FormatInt(time.Now().Unix(), 10),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("put layout script failed for %s: %w", screenID, err)
	}
	return version, nil
}

func (s *RedisStore) Delete(ctx context.Context, screenID string) error {
	if err := s.rdb.Del(ctx, layoutKey(screenID)).Err(); err != nil {
		return fmt.Errorf("failed to delete layout for %s: %w", screenID, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
