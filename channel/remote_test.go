package channel

import (
	"code-mentor/contract"
	"code-mentor/domain/chat"
	"code-mentor/errors"
	"code-mentor/mocks"
	"code-mentor/remote"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func sendCommand(room chat.RoomID, content string) chat.SendCommand {
	return chat.SendCommand{Room: room, UserID: "alice", Sender: "student", Kind: chat.KindStudent, Content: content}
}

func TestRemoteChannel_Subscribe_DeliversSortedSnapshots(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	store := remote.NewMemoryStore()
	room := chat.RoomID("r1")
	at := chat.Now()

	// Given entries pushed out of timestamp order by other clients
	for i, offset := range []time.Duration{3 * time.Second, time.Second, 2 * time.Second} {
		payload, err := json.Marshal(chat.Message{Kind: chat.KindFacilitator, Content: fmt.Sprint(i), SentAt: at.Add(offset), Sender: "facilitator"})
		req.NoError(err)
		_, err = store.Push(ctx, room.CollectionPath(), payload)
		req.NoError(err)
	}

	channel := NewRemoteChannel(store, log)
	defer channel.Close()
	rec := &recorder{}

	// When subscribing
	sub, err := channel.Subscribe(ctx, room, rec.listen)
	req.NoError(err)
	defer sub.Unsubscribe()

	// Then the initial snapshot is sorted and carries storage keys as IDs
	update := rec.waitFor(t, 3)
	req.True(chat.IsSorted(update.Messages))
	req.Equal([]string{"1", "2", "0"}, []string{update.Messages[0].Content, update.Messages[1].Content, update.Messages[2].Content})
	for _, m := range update.Messages {
		req.NotEmpty(m.ID)
	}

	// When one more message is sent
	ack, err := channel.Send(ctx, sendCommand(room, "hello"))
	req.NoError(err)

	// Then it appears exactly once, every snapshot staying sorted
	update = rec.waitFor(t, 4)
	found := 0
	for _, m := range update.Messages {
		if m.ID == ack.ID {
			found++
			req.Equal("hello", m.Content)
		}
	}
	req.Equal(1, found)
	for _, u := range rec.all() {
		req.True(chat.IsSorted(u.Messages))
	}
}

func TestRemoteChannel_Unsubscribe_StopsNotifications(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := remote.NewMemoryStore()
	room := chat.RoomID("r1")
	channel := NewRemoteChannel(store, slog.Default())
	rec := &recorder{}

	sub, err := channel.Subscribe(ctx, room, rec.listen)
	req.NoError(err)
	rec.waitFor(t, 0)

	// When the subscriber leaves
	sub.Unsubscribe()
	before := rec.count()
	req.Zero(store.Watchers(room.CollectionPath()))

	// And a remote change happens afterwards
	_, err = channel.Send(ctx, sendCommand(room, "nobody listens"))
	req.NoError(err)
	time.Sleep(50 * time.Millisecond)

	// Then no callback fires
	req.Equal(before, rec.count())
}

func TestRemoteChannel_ContextEnd_DetachesWatch(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	store := remote.NewMemoryStore()
	room := chat.RoomID("r1")
	channel := NewRemoteChannel(store, slog.Default())
	defer channel.Close()
	rec := &recorder{}

	_, err := channel.Subscribe(ctx, room, rec.listen)
	req.NoError(err)
	rec.waitFor(t, 0)
	req.Equal(1, store.Watchers(room.CollectionPath()))

	// When the subscriber's context ends without Unsubscribe
	cancel()

	// Then the watch and the tracked subscription are released
	req.Eventually(func() bool {
		return store.Watchers(room.CollectionPath()) == 0
	}, time.Second, 5*time.Millisecond)
	req.Eventually(func() bool {
		channel.mu.Lock()
		defer channel.mu.Unlock()
		return len(channel.subs) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestRemoteChannel_Send_StoreUnreachable(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	store := mocks.NewMockRemoteStore(ctrl)
	channel := NewRemoteChannel(store, slog.Default())

	// Given the store refuses writes
	store.EXPECT().Push(gomock.Any(), "chats/r1/messages", gomock.Any()).Return("", fmt.Errorf("dial tcp: connection refused")).Times(1)

	// When sending
	_, err := channel.Send(context.Background(), sendCommand("r1", "hi"))

	// Then an explicit failure is returned and the channel reports it
	req.ErrorIs(err, errors.ErrRemoteUnavailable)
	req.False(channel.Connected())
}

func TestRemoteChannel_Send_EntryHasNoID(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	store := mocks.NewMockRemoteStore(ctrl)
	channel := NewRemoteChannel(store, slog.Default())

	store.EXPECT().Push(gomock.Any(), "chats/r1/messages", gomock.Any()).
		DoAndReturn(func(ctx context.Context, path string, value []byte) (string, error) {
			var raw map[string]any
			req.NoError(json.Unmarshal(value, &raw))
			req.NotContains(raw, "id")
			req.Equal("hi", raw["content"])
			req.Equal("student", raw["type"])
			return "-Nkey1", nil
		}).Times(1)

	ack, err := channel.Send(context.Background(), sendCommand("r1", "hi"))
	req.NoError(err)
	req.Equal("-Nkey1", ack.ID)
	req.True(channel.Connected())
}

func TestRemoteChannel_Snapshot_Failure_IsDelivered(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := remote.NewMemoryStore()
	channel := NewRemoteChannel(store, slog.Default())
	defer channel.Close()
	rec := &recorder{}

	sub, err := channel.Subscribe(ctx, "r1", rec.listen)
	req.NoError(err)
	defer sub.Unsubscribe()
	rec.waitFor(t, 0)

	// When the store goes away and a change is announced
	store.SetOffline(true)
	sub.(*subscription).Notify()

	// Then the subscriber receives an explicit failure
	req.Eventually(func() bool {
		return rec.last().Err != nil
	}, time.Second, 5*time.Millisecond)
	req.ErrorIs(rec.last().Err, errors.ErrRemoteUnavailable)
	req.False(channel.Connected())
}

func TestRemoteChannel_Subscribe_WatchFailure(t *testing.T) {
	req := require.New(t)
	store := remote.NewMemoryStore()
	store.SetOffline(true)
	channel := NewRemoteChannel(store, slog.Default())

	_, err := channel.Subscribe(context.Background(), "r1", func(contract.Update) {})
	req.ErrorIs(err, errors.ErrRemoteUnavailable)
}

func TestRemoteChannel_Closed(t *testing.T) {
	req := require.New(t)
	channel := NewRemoteChannel(remote.NewMemoryStore(), slog.Default())
	req.NoError(channel.Close())

	_, err := channel.Send(context.Background(), sendCommand("r1", "hi"))
	req.ErrorIs(err, errors.ErrChannelClosed)
	req.False(channel.Connected())
}
