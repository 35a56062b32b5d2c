// Package notify is the session-scoped notification center. Every hook in
// the client uses a Store as its toast sink.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeSuccess Type = "success"
	TypeError   Type = "error"
	TypeWarning Type = "warning"
	TypeInfo    Type = "info"
)

// Link is an optional call to action.
type Link struct {
	Label string `json:"label"`
	Href  string `json:"href"`
}

type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message,omitempty"`
	Type      Type      `json:"type"`
	Read      bool      `json:"read"`
	Action    *Link     `json:"action,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// State is an immutable snapshot of the store.
type State struct {
	Notifications []Notification
}

// UnreadCount is derived from the snapshot on every call.
func (s State) UnreadCount() int {
	n := 0
	for _, item := range s.Notifications {
		if !item.Read {
			n++
		}
	}
	return n
}

// Action is a state transition applied by Dispatch.
type Action interface {
	apply(items []Notification) []Notification
}

// Add prepends a notification. Ids are not deduplicated.
type Add struct{ Notification Notification }

type MarkAsRead struct{ ID string }

type MarkAllAsRead struct{}

type Remove struct{ ID string }

type ClearAll struct{}

func (a Add) apply(items []Notification) []Notification {
	return append([]Notification{a.Notification}, items...)
}

func (a MarkAsRead) apply(items []Notification) []Notification {
	for i := range items {
		if items[i].ID == a.ID {
			items[i].Read = true
			break
		}
	}
	return items
}

func (MarkAllAsRead) apply(items []Notification) []Notification {
	for i := range items {
		items[i].Read = true
	}
	return items
}

func (a Remove) apply(items []Notification) []Notification {
	for i := range items {
		if items[i].ID == a.ID {
			return append(items[:i], items[i+1:]...)
		}
	}
	return items
}

func (ClearAll) apply([]Notification) []Notification {
	return []Notification{}
}

// Store is an injectable state container. Tests create their own instances.
type Store struct {
	mu     sync.Mutex
	items  []Notification
	subs   map[int]func(State)
	nextID int
	now    func() time.Time
}

func New() *Store {
	return &Store{items: []Notification{}, subs: make(map[int]func(State)), now: time.Now}
}

func (s *Store) Get() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Subscribe registers fn for every state change and returns its cancel func.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Dispatch applies a and notifies subscribers outside the lock.
func (s *Store) Dispatch(a Action) {
	s.mu.Lock()
	s.items = a.apply(s.items)
	state := s.snapshot()
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
}

// Add fills in a missing id and timestamp, prepends n and returns its id.
func (s *Store) Add(n Notification) string {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	if n.Type == "" {
		n.Type = TypeInfo
	}
	s.Dispatch(Add{Notification: n})
	return n.ID
}

func (s *Store) MarkAsRead(id string) { s.Dispatch(MarkAsRead{ID: id}) }

func (s *Store) MarkAllAsRead() { s.Dispatch(MarkAllAsRead{}) }

func (s *Store) Remove(id string) { s.Dispatch(Remove{ID: id}) }

func (s *Store) ClearAll() { s.Dispatch(ClearAll{}) }

func (s *Store) UnreadCount() int { return s.Get().UnreadCount() }

// Toast records a short unread notification.
func (s *Store) Toast(t Type, title, message string) string {
	return s.Add(Notification{Type: t, Title: title, Message: message})
}

func (s *Store) snapshot() State {
	out := make([]Notification, len(s.items))
	copy(out, s.items)
	return State{Notifications: out}
}
