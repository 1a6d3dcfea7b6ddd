package services

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type NotificationKind string

const (
	NotificationHelpRequest NotificationKind = "help-request"
	NotificationAlert       NotificationKind = "alert"
	NotificationInfo        NotificationKind = "info"
	NotificationSystem      NotificationKind = "system"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

type Notification struct {
	ID       string           `json:"id"`
	Kind     NotificationKind `json:"type"`
	Title    string           `json:"title"`
	Message  string           `json:"message"`
	Priority Priority         `json:"priority"`
	Student  string           `json:"studentName,omitempty"`
	At       time.Time        `json:"timestamp"`
	Read     bool             `json:"read"`
}

var simulatedStudents = []string{"John Doe", "Jane Smith", "Mike Wilson"}

// notificationChance is the probability a tick raises a notification.
const notificationChance = 0.3

// Simulate draws one fake classroom event.
// It returns false when the dice decide nothing happens on this tick.
func Simulate(random func() float64, now time.Time) (Notification, bool) {
	if random() <= 1-notificationChance {
		return Notification{}, false
	}
	n := Notification{
		ID:       uuid.NewString(),
		Kind:     lo.Ternary(random() > 0.5, NotificationHelpRequest, NotificationAlert),
		Title:    lo.Ternary(random() > 0.5, "New Help Request", "Error Detected"),
		Message:  lo.Ternary(random() > 0.5, "A student needs assistance with their code", "Multiple compilation errors detected"),
		Priority: lo.Ternary(random() > 0.7, PriorityHigh, PriorityMedium),
		At:       now,
	}
	index := int(random() * float64(len(simulatedStudents)))
	n.Student = simulatedStudents[min(index, len(simulatedStudents)-1)]
	return n, true
}

// SampleNotifications is the demo backlog a facilitator dashboard opens with,
// newest first.
func SampleNotifications(now time.Time) []Notification {
	return []Notification{
		{
			ID:       uuid.NewString(),
			Kind:     NotificationHelpRequest,
			Title:    "Help Request",
			Message:  "Alice Johnson is struggling with Python loops and needs assistance",
			Priority: PriorityHigh,
			Student:  "Alice Johnson",
			At:       now,
		},
		{
			ID:       uuid.NewString(),
			Kind:     NotificationAlert,
			Title:    "Multiple Errors Detected",
			Message:  "Bob Smith has encountered 8 compilation errors in the last 10 minutes",
			Priority: PriorityMedium,
			Student:  "Bob Smith",
			At:       now.Add(-5 * time.Minute),
		},
		{
			ID:       uuid.NewString(),
			Kind:     NotificationInfo,
			Title:    "Session Started",
			Message:  "Carol Wilson has started a new Java programming session",
			Priority: PriorityLow,
			Student:  "Carol Wilson",
			At:       now.Add(-10 * time.Minute),
			Read:     true,
		},
		{
			ID:       uuid.NewString(),
			Kind:     NotificationSystem,
			Title:    "System Update",
			Message:  "Code compilation servers have been updated with improved performance",
			Priority: PriorityLow,
			At:       now.Add(-20 * time.Minute),
		},
	}
}

// Feed keeps notifications newest first.
type Feed struct {
	mu    sync.Mutex
	items []Notification
}

// NewFeed starts a feed with items, given newest first.
func NewFeed(items []Notification) *Feed {
	return &Feed{items: slices.Clone(items)}
}

func (f *Feed) Push(n Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = slices.Insert(f.items, 0, n)
}

func (f *Feed) All() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.items)
}

func (f *Feed) Unread() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return lo.CountBy(f.items, func(n Notification) bool { return !n.Read })
}

// MarkRead returns false when id is unknown.
func (f *Feed) MarkRead(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := slices.IndexFunc(f.items, func(n Notification) bool { return n.ID == id })
	if i < 0 {
		return false
	}
	f.items[i].Read = true
	return true
}

// MarkAllRead returns how many notifications were unread.
func (f *Feed) MarkAllRead() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for i := range f.items {
		if !f.items[i].Read {
			f.items[i].Read = true
			count++
		}
	}
	return count
}

func (f *Feed) Delete(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	before := len(f.items)
	f.items = slices.DeleteFunc(f.items, func(n Notification) bool { return n.ID == id })
	return len(f.items) != before
}
