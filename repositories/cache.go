package repositories

import (
	"code-mentor/domain/chat"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// CacheRepository is the durable local cache of the simulated channel.
// One key per room holds the whole history as a JSON array and every write
// overwrites the previous value.
type CacheRepository struct {
	db          *badger.DB
	log         *slog.Logger
	maxMessages int
}

// NewCacheRepository returns a cache keeping at most maxMessages per room.
// Zero keeps everything.
func NewCacheRepository(db *badger.DB, log *slog.Logger, maxMessages int) CacheRepository {
	return CacheRepository{db: db, log: log, maxMessages: maxMessages}
}

// Save writes the history under key, trimmed to the newest maxMessages.
func (c CacheRepository) Save(key string, messages []chat.Message) error {
	if c.maxMessages > 0 && len(messages) > c.maxMessages {
		c.log.Debug(fmt.Sprintf("Maximum of %d message reached", c.maxMessages), "key", key)
		messages = messages[len(messages)-c.maxMessages:]
	}
	if messages == nil {
		messages = []chat.Message{}
	}
	bytes, err := json.Marshal(messages)
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
}

// Load returns the cached history, nil when nothing was ever cached.
func (c CacheRepository) Load(key string) ([]chat.Message, error) {
	var messages []chat.Message
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &messages)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// CachedRoom summarizes one cached history.
type CachedRoom struct {
	Key      string
	Messages []chat.Message
	Size     int
}

// List scans every key starting with prefix.
func (c CacheRepository) List(prefix string) ([]CachedRoom, error) {
	var rooms []CachedRoom
	err := c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.KeyCopy(nil))
			err := item.Value(func(value []byte) error {
				var messages []chat.Message
				if err := json.Unmarshal(value, &messages); err != nil {
					c.log.Warn("Skipping unreadable cache entry", "key", key, "err", err)
					return nil
				}
				rooms = append(rooms, CachedRoom{Key: key, Messages: messages, Size: len(value)})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return rooms, err
}
