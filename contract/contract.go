//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"code-mentor/domain/chat"
	"context"
	"reflect"
)

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging when a worker starts, stops or panics.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Update is one change notification for a room.
// Messages is always a complete snapshot sorted by SentAt.
// Err is set when the backend could not produce a snapshot.
type Update struct {
	Room     chat.RoomID
	Messages []chat.Message
	Err      error
}

type Listener func(Update)

// Subscription is a live, restartable view on a room.
type Subscription interface {
	Room() chat.RoomID
	// Unsubscribe detaches the listener and waits for an in-flight call.
	// It must not be called from inside the listener.
	Unsubscribe()
}

// Channel is the backend-agnostic view over a room's message log.
type Channel interface {
	Subscribe(ctx context.Context, room chat.RoomID, listener Listener) (Subscription, error)
	Send(ctx context.Context, cmd chat.SendCommand) (chat.Ack, error)
	Connected() bool
	Close() error
}

// Notifier is poked whenever the log it watches changes.
type Notifier interface {
	Notify()
}

// Entry is one record of a remote collection, keyed by the store.
type Entry struct {
	Key   string
	Value []byte
}

// RemoteStore is an append-only, synchronized collection store.
type RemoteStore interface {
	Push(ctx context.Context, path string, value []byte) (string, error)
	Snapshot(ctx context.Context, path string) ([]Entry, error)
	// Watch calls onChange after every insert under path until stop is called.
	Watch(ctx context.Context, path string, onChange func()) (stop func(), err error)
	Ping(ctx context.Context) error
}

// LocalCache persists a room history under a single key.
type LocalCache interface {
	Load(key string) ([]chat.Message, error)
	Save(key string, messages []chat.Message) error
}
