// Package remote holds the synchronized stores behind the remote chat backend.
package remote

import (
	"code-mentor/contract"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

const (
	entryField    = "entry"
	changesSuffix = ":changes"
)

// RedisStore keeps each collection in a Redis stream named after its path.
// Stream IDs are the storage-assigned keys. Every push is announced on the
// "<path>:changes" pub/sub channel, which is what watchers listen to.
type RedisStore struct {
	rdb *redis.Client
	log *slog.Logger
}

func NewRedisStore(rdb *redis.Client, log *slog.Logger) *RedisStore {
	return &RedisStore{rdb: rdb, log: log}
}

// NewRedisStoreFromURL parses a redis:// URL and connects lazily.
func NewRedisStoreFromURL(url string, log *slog.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewRedisStore(redis.NewClient(opts), log), nil
}

func (s *RedisStore) Push(ctx context.Context, path string, value []byte) (string, error) {
	key, err := s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: path,
		Values: map[string]interface{}{entryField: string(value)},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to append to %s: %w", path, err)
	}
	if err := s.rdb.Publish(ctx, path+changesSuffix, key).Err(); err != nil {
		// The entry is stored, watchers will see it on their next re-read.
		s.log.Warn("Failed to announce change", "path", path, "key", key, "err", err)
	}
	return key, nil
}

func (s *RedisStore) Snapshot(ctx context.Context, path string) ([]contract.Entry, error) {
	messages, err := s.rdb.XRange(ctx, path, "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	entries := make([]contract.Entry, 0, len(messages))
	for _, msg := range messages {
		raw, ok := msg.Values[entryField].(string)
		if !ok {
			s.log.Warn("Skipping malformed entry", "path", path, "key", msg.ID)
			continue
		}
		entries = append(entries, contract.Entry{Key: msg.ID, Value: []byte(raw)})
	}
	return entries, nil
}

func (s *RedisStore) Watch(ctx context.Context, path string, onChange func()) (func(), error) {
	watchCtx, cancel := context.WithCancel(ctx)
	pubsub := s.rdb.Subscribe(watchCtx, path+changesSuffix)
	// Wait for the subscription confirmation so no push is missed afterwards.
	if _, err := pubsub.Receive(watchCtx); err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		ch := pubsub.Channel()
		for {
			select {
			case <-watchCtx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				onChange()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			_ = pubsub.Close()
			<-done
		})
	}, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
