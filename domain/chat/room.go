package chat

import "fmt"

// RoomID identifies a conversation scope holding one ordered message log.
type RoomID string

// CollectionPath is the remote store location of the room's messages.
func (r RoomID) CollectionPath() string {
	return fmt.Sprintf("chats/%s/messages", r)
}

// CacheKey is the local cache key holding the room's serialized history.
func (r RoomID) CacheKey() string {
	return fmt.Sprintf("chat_%s", r)
}
