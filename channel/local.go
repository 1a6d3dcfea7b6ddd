package channel

import (
	"code-mentor/contract"
	"code-mentor/domain/chat"
	"code-mentor/errors"
	"code-mentor/runtime"
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const DefaultEchoDelay = 100 * time.Millisecond

// LocalChannel is the simulated backend.
// A sent message comes back to the room after a fixed delay, which is the
// only way a message is ever appended. Every change is written through to the
// local cache under the room key.
type LocalChannel struct {
	cache       contract.LocalCache
	log         *slog.Logger
	scheduler   *runtime.Scheduler
	registry    *runtime.Registry
	echoDelay   time.Duration
	maxMessages int
	newID       func() string
	connected   atomic.Bool
	closed      atomic.Bool

	mu    sync.Mutex
	rooms map[chat.RoomID][]chat.Message
	subs  map[string]*subscription
}

type LocalOption func(*LocalChannel)

func WithEchoDelay(d time.Duration) LocalOption {
	return func(c *LocalChannel) {
		c.echoDelay = d
	}
}

// WithMaxMessages keeps only the newest n messages per room. Zero means unbounded.
func WithMaxMessages(n int) LocalOption {
	return func(c *LocalChannel) {
		c.maxMessages = n
	}
}

func WithIDGenerator(fn func() string) LocalOption {
	return func(c *LocalChannel) {
		c.newID = fn
	}
}

func NewLocalChannel(ctx context.Context, cache contract.LocalCache, log *slog.Logger, opts ...LocalOption) *LocalChannel {
	c := &LocalChannel{
		cache:     cache,
		log:       log,
		scheduler: runtime.NewScheduler(ctx, log),
		registry:  runtime.NewRegistry(),
		echoDelay: DefaultEchoDelay,
		newID:     func() string { return uuid.Must(uuid.NewV7()).String() },
		rooms:     make(map[chat.RoomID][]chat.Message),
		subs:      make(map[string]*subscription),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.connected.Store(true)
	return c
}

// Subscribe loads the cached history synchronously, then delivers it as the
// initial update followed by one update per echoed message.
func (c *LocalChannel) Subscribe(ctx context.Context, room chat.RoomID, listener contract.Listener) (contract.Subscription, error) {
	if c.closed.Load() {
		return nil, errors.ErrChannelClosed
	}
	c.mu.Lock()
	_, err := c.loadLocked(room)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	sub := newSubscription(room, listener, func(context.Context) ([]chat.Message, error) {
		return c.snapshot(room)
	})
	c.registry.Subscribe(sub.id, room, sub)

	c.mu.Lock()
	c.subs[sub.id] = sub
	c.mu.Unlock()

	sub.start(ctx, func() {
		c.registry.Unsubscribe(sub.id, room)
		c.mu.Lock()
		delete(c.subs, sub.id)
		c.mu.Unlock()
	})
	return sub, nil
}

// Send fails fast when disconnected; otherwise the message is echoed back
// into the room after the echo delay.
func (c *LocalChannel) Send(_ context.Context, cmd chat.SendCommand) (chat.Ack, error) {
	if c.closed.Load() {
		return chat.Ack{}, errors.ErrChannelClosed
	}
	if !c.connected.Load() {
		return chat.Ack{}, errors.ErrDisconnected
	}
	if err := cmd.Validate(); err != nil {
		return chat.Ack{}, err
	}
	message := cmd.ToMessage(c.newID())
	scheduled := c.scheduler.After("echo", c.echoDelay, func(context.Context) {
		c.append(cmd.Room, message)
	})
	if !scheduled {
		return chat.Ack{}, errors.ErrChannelClosed
	}
	return chat.Ack{ID: message.ID, SentAt: message.SentAt}, nil
}

func (c *LocalChannel) Connected() bool {
	return !c.closed.Load() && c.connected.Load()
}

func (c *LocalChannel) Connect() {
	if !c.closed.Load() {
		c.connected.Store(true)
	}
}

func (c *LocalChannel) Disconnect() {
	c.connected.Store(false)
}

// Close drops pending echoes and detaches every subscription.
func (c *LocalChannel) Close() error {
	c.closed.Store(true)
	c.connected.Store(false)
	c.scheduler.Stop()
	c.mu.Lock()
	subs := lo.Values(c.subs)
	c.mu.Unlock()
	for _, sub := range subs {
		sub.Unsubscribe()
	}
	return nil
}

func (c *LocalChannel) append(room chat.RoomID, message chat.Message) {
	c.mu.Lock()
	messages, err := c.loadLocked(room)
	if err != nil {
		c.mu.Unlock()
		c.log.Error("Dropping echoed message, cache unreadable", "room", room, "err", err)
		return
	}
	messages = append(messages, message)
	chat.SortBySentAt(messages)
	if c.maxMessages > 0 && len(messages) > c.maxMessages {
		messages = slices.Clone(messages[len(messages)-c.maxMessages:])
	}
	c.rooms[room] = messages
	if err := c.cache.Save(room.CacheKey(), messages); err != nil {
		c.log.Error("Failed to write room cache", "room", room, "err", err)
	}
	c.mu.Unlock()

	c.registry.Broadcast(room)
}

func (c *LocalChannel) snapshot(room chat.RoomID) ([]chat.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	messages, err := c.loadLocked(room)
	if err != nil {
		return nil, err
	}
	return slices.Clone(messages), nil
}

func (c *LocalChannel) loadLocked(room chat.RoomID) ([]chat.Message, error) {
	if messages, ok := c.rooms[room]; ok {
		return messages, nil
	}
	messages, err := c.cache.Load(room.CacheKey())
	if err != nil {
		return nil, err
	}
	chat.SortBySentAt(messages)
	c.rooms[room] = messages
	return messages, nil
}
