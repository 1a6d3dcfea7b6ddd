package chat

import (
	"code-mentor/errors"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSendCommand_Validate(t *testing.T) {
	req := require.New(t)
	valid := SendCommand{Room: "r1", UserID: "u1", Sender: "student", Kind: KindStudent, Content: "hi"}

	req.NoError(valid.Validate())

	blank := valid
	blank.Content = "   \n\t"
	req.ErrorIs(blank.Validate(), errors.ErrEmptyContent)

	wrongKind := valid
	wrongKind.Kind = "teacher"
	req.Error(wrongKind.Validate())

	noRoom := valid
	noRoom.Room = ""
	req.Error(noRoom.Validate())
}

func TestSortBySentAt(t *testing.T) {
	req := require.New(t)
	at := Now()
	messages := []Message{
		{ID: "c", SentAt: at.Add(2 * time.Second)},
		{ID: "b", SentAt: at},
		{ID: "a", SentAt: at},
		{ID: "d", SentAt: at.Add(-time.Second)},
	}

	SortBySentAt(messages)

	req.True(IsSorted(messages))
	req.Equal([]string{"d", "a", "b", "c"}, []string{messages[0].ID, messages[1].ID, messages[2].ID, messages[3].ID})
}

func TestRoomID_Keys(t *testing.T) {
	req := require.New(t)
	room := RoomID("algebra-101")
	req.Equal("chats/algebra-101/messages", room.CollectionPath())
	req.Equal("chat_algebra-101", room.CacheKey())
}

func TestMessage_JSON_TimestampInMilliseconds(t *testing.T) {
	req := require.New(t)
	at := time.UnixMilli(1709283600123).UTC()
	message := Message{ID: "m1", Kind: KindStudent, Content: "hi", SentAt: at, Sender: "Student", UserID: "u1"}

	payload, err := json.Marshal(message)
	req.NoError(err)
	req.JSONEq(`{"id":"m1","type":"student","content":"hi","timestamp":1709283600123,"sender":"Student","userId":"u1"}`, string(payload))

	var decoded Message
	req.NoError(json.Unmarshal(payload, &decoded))
	req.Equal(message, decoded)

	t.Run("should read an RFC3339 timestamp", func(t *testing.T) {
		var legacy Message
		require.NoError(t, json.Unmarshal([]byte(`{"type":"system","content":"x","timestamp":"2024-03-01T10:00:00.123+01:00"}`), &legacy))
		require.True(t, at.Equal(legacy.SentAt))
		require.Equal(t, time.UTC, legacy.SentAt.Location())
	})

	t.Run("should reject a malformed timestamp", func(t *testing.T) {
		var bad Message
		require.Error(t, json.Unmarshal([]byte(`{"timestamp":true}`), &bad))
	})
}
