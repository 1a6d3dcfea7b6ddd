package runtime

import (
	"code-mentor/contract"
	"code-mentor/domain/chat"
	"sync"
)

type Set map[string]struct{}

type Registry struct {
	mu          sync.RWMutex
	sessions    map[string]contract.Notifier // map subscription -> Notifier
	roomMembers map[chat.RoomID]Set          // map room to subscriptions
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:    make(map[string]contract.Notifier),
		roomMembers: make(map[chat.RoomID]Set),
	}
}

// GetSinksForRoom retrieves every notifier attached to a room.
// Subscription IDs are resolved through the sessions map so that a
// subscription removed from sessions is never notified again.
// Returns nil if the room doesn't exist or has no members.
func (r *Registry) GetSinksForRoom(roomID chat.RoomID) []contract.Notifier {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.roomMembers[roomID]
	if !ok {
		return nil
	}
	var activeSinks []contract.Notifier
	for subscriptionID := range members {
		if sink, exists := r.sessions[subscriptionID]; exists {
			activeSinks = append(activeSinks, sink)
		}
	}
	return activeSinks
}

// Subscribe registers a notifier and assigns it to a room.
// If the room does not yet exist in the registry, it is initialized on the fly.
func (r *Registry) Subscribe(subscriptionID string, roomID chat.RoomID, sink contract.Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[subscriptionID] = sink

	if _, ok := r.roomMembers[roomID]; !ok {
		r.roomMembers[roomID] = make(Set)
	}
	r.roomMembers[roomID][subscriptionID] = struct{}{}
}

// Unsubscribe removes a notifier from the registry and its room.
// Empty rooms are dropped so the map does not grow forever.
func (r *Registry) Unsubscribe(subscriptionID string, roomID chat.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, subscriptionID)

	if members, ok := r.roomMembers[roomID]; ok {
		delete(members, subscriptionID)

		if len(members) == 0 {
			delete(r.roomMembers, roomID)
		}
	}
}

// Broadcast notifies every member of a room.
func (r *Registry) Broadcast(roomID chat.RoomID) {
	for _, sink := range r.GetSinksForRoom(roomID) {
		sink.Notify()
	}
}
