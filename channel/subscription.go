package channel

import (
	"code-mentor/contract"
	"code-mentor/domain/chat"
	"context"
	"sync"

	"github.com/google/uuid"
)

type readFunc func(ctx context.Context) ([]chat.Message, error)

// subscription delivers room snapshots to one listener.
// Notify only sets a pending flag (buffered chan of one),
// so a burst of changes is coalesced into a single re-read.
type subscription struct {
	id       string
	room     chat.RoomID
	listener contract.Listener
	read     readFunc
	wake     chan struct{}
	cancel   context.CancelFunc
	done     chan struct{}
	detach   func()
	detached sync.Once
}

func newSubscription(room chat.RoomID, listener contract.Listener, read readFunc) *subscription {
	return &subscription{
		id:       uuid.NewString(),
		room:     room,
		listener: listener,
		read:     read,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

func (s *subscription) Room() chat.RoomID { return s.room }

func (s *subscription) Notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// start runs the delivery loop and queues the initial snapshot.
func (s *subscription) start(ctx context.Context, detach func()) {
	subCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.detach = detach
	s.Notify()
	go func() {
		defer close(s.done)
		_ = s.Run(subCtx)
		s.release()
	}()
}

func (s *subscription) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.wake:
			messages, err := s.read(ctx)
			if ctx.Err() != nil {
				return nil
			}
			if err != nil {
				s.listener(contract.Update{Room: s.room, Err: err})
				continue
			}
			s.listener(contract.Update{Room: s.room, Messages: messages})
		}
	}
}

// Unsubscribe detaches the listener and waits for the delivery loop.
// The end of the ctx given to start has the same effect.
func (s *subscription) Unsubscribe() {
	s.release()
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func (s *subscription) release() {
	s.detached.Do(func() {
		if s.detach != nil {
			s.detach()
		}
	})
}
