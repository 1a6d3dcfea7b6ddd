// Package chat contains core concepts of the classroom chat.
// Messages are immutable: created on send, appended to a room log,
// never edited and never deleted.
package chat

import (
	"encoding/json"
	"slices"
	"strings"
	"time"
)

// Kind tells who or what produced a message.
type Kind string

const (
	KindStudent     Kind = "student"
	KindFacilitator Kind = "facilitator"
	KindSystem      Kind = "system"
	KindHelpRequest Kind = "help-request"
)

// Message represents an immutable chat event.
// The JSON shape is shared by the local cache and the remote store,
// timestamp being epoch milliseconds.
type Message struct {
	ID      string
	Kind    Kind
	Content string
	SentAt  time.Time
	Sender  string
	UserID  string
}

type messageJSON struct {
	ID        string          `json:"id,omitempty"`
	Kind      Kind            `json:"type"`
	Content   string          `json:"content"`
	Timestamp json.RawMessage `json:"timestamp"`
	Sender    string          `json:"sender"`
	UserID    string          `json:"userId"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	ts, err := json.Marshal(m.SentAt.UnixMilli())
	if err != nil {
		return nil, err
	}
	return json.Marshal(messageJSON{
		ID:        m.ID,
		Kind:      m.Kind,
		Content:   m.Content,
		Timestamp: ts,
		Sender:    m.Sender,
		UserID:    m.UserID,
	})
}

// UnmarshalJSON also accepts an RFC3339 timestamp string.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw messageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	sentAt, err := parseTimestamp(raw.Timestamp)
	if err != nil {
		return err
	}
	*m = Message{
		ID:      raw.ID,
		Kind:    raw.Kind,
		Content: raw.Content,
		SentAt:  sentAt,
		Sender:  raw.Sender,
		UserID:  raw.UserID,
	}
	return nil
}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, nil
	}
	if raw[0] == '"' {
		var at time.Time
		if err := json.Unmarshal(raw, &at); err != nil {
			return time.Time{}, err
		}
		return at.UTC(), nil
	}
	var ms int64
	if err := json.Unmarshal(raw, &ms); err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

// Ack is returned by a channel once a message has been accepted.
type Ack struct {
	ID     string
	SentAt time.Time
}

// Now returns the timestamp used for new messages.
// UTC with millisecond precision so that every store round-trips it unchanged.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// SortBySentAt orders messages ascending by SentAt, ties broken by ID.
func SortBySentAt(messages []Message) {
	slices.SortStableFunc(messages, func(a, b Message) int {
		if c := a.SentAt.Compare(b.SentAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

// IsSorted reports whether messages are non-decreasing in SentAt.
func IsSorted(messages []Message) bool {
	return slices.IsSortedFunc(messages, func(a, b Message) int {
		return a.SentAt.Compare(b.SentAt)
	})
}
