package channel

import (
	"code-mentor/contract"
	"code-mentor/domain/chat"
	"code-mentor/errors"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/samber/lo"
)

// RemoteChannel is the ordered-log backend: every room is an append-only
// collection of a RemoteStore, re-read in full on each change.
type RemoteChannel struct {
	store   contract.RemoteStore
	log     *slog.Logger
	healthy atomic.Bool
	closed  atomic.Bool
	mu      sync.Mutex
	subs    map[string]*subscription
}

func NewRemoteChannel(store contract.RemoteStore, log *slog.Logger) *RemoteChannel {
	c := &RemoteChannel{store: store, log: log, subs: make(map[string]*subscription)}
	c.healthy.Store(true)
	return c
}

// Subscribe watches the room collection until Unsubscribe, Close or the end of ctx.
func (c *RemoteChannel) Subscribe(ctx context.Context, room chat.RoomID, listener contract.Listener) (contract.Subscription, error) {
	if c.closed.Load() {
		return nil, errors.ErrChannelClosed
	}
	path := room.CollectionPath()
	sub := newSubscription(room, listener, func(ctx context.Context) ([]chat.Message, error) {
		return c.read(ctx, path)
	})

	stop, err := c.store.Watch(ctx, path, sub.Notify)
	if err != nil {
		c.SetHealthy(false)
		return nil, fmt.Errorf("%w: %v", errors.ErrRemoteUnavailable, err)
	}

	c.mu.Lock()
	c.subs[sub.id] = sub
	c.mu.Unlock()

	sub.start(ctx, func() {
		stop()
		c.mu.Lock()
		delete(c.subs, sub.id)
		c.mu.Unlock()
	})
	c.log.Debug("Subscribed to remote room", "room", room, "subscription", sub.id)
	return sub, nil
}

// Send appends a new entry and returns its storage key without waiting for the echo.
func (c *RemoteChannel) Send(ctx context.Context, cmd chat.SendCommand) (chat.Ack, error) {
	if c.closed.Load() {
		return chat.Ack{}, errors.ErrChannelClosed
	}
	if err := cmd.Validate(); err != nil {
		return chat.Ack{}, err
	}
	message := cmd.ToMessage("")
	payload, err := json.Marshal(message)
	if err != nil {
		return chat.Ack{}, err
	}
	key, err := c.store.Push(ctx, cmd.Room.CollectionPath(), payload)
	if err != nil {
		c.SetHealthy(false)
		c.log.Warn("Remote send failed", "room", cmd.Room, "err", err)
		return chat.Ack{}, fmt.Errorf("%w: %v", errors.ErrRemoteUnavailable, err)
	}
	c.SetHealthy(true)
	return chat.Ack{ID: key, SentAt: message.SentAt}, nil
}

func (c *RemoteChannel) Connected() bool {
	return !c.closed.Load() && c.healthy.Load()
}

// SetHealthy records the last observed reachability of the store.
func (c *RemoteChannel) SetHealthy(healthy bool) {
	c.healthy.Store(healthy)
}

// Close detaches every subscription.
func (c *RemoteChannel) Close() error {
	c.closed.Store(true)
	c.mu.Lock()
	subs := lo.Values(c.subs)
	c.mu.Unlock()
	for _, sub := range subs {
		sub.Unsubscribe()
	}
	return nil
}

func (c *RemoteChannel) read(ctx context.Context, path string) ([]chat.Message, error) {
	entries, err := c.store.Snapshot(ctx, path)
	if err != nil {
		c.SetHealthy(false)
		return nil, fmt.Errorf("%w: %v", errors.ErrRemoteUnavailable, err)
	}
	c.SetHealthy(true)

	messages := lo.FilterMap(entries, func(entry contract.Entry, _ int) (chat.Message, bool) {
		var message chat.Message
		if err := json.Unmarshal(entry.Value, &message); err != nil {
			c.log.Warn("Skipping malformed remote entry", "path", path, "key", entry.Key, "err", err)
			return chat.Message{}, false
		}
		message.ID = entry.Key
		return message, true
	})
	chat.SortBySentAt(messages)
	return messages, nil
}
