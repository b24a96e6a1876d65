// Package notifyclient implements the console's notification feed client:
// an in-memory store reconciled from two sources, a REST catch-up surface
// and a live websocket push channel, plus a session-bound controller that
// keeps the channel open for exactly as long as the user is signed in.
package notifyclient

import (
	"sync"
	"time"
)

// Notification is the client's view of one alert, as delivered by the list
// endpoint and, one per frame, by the push channel.
type Notification struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	Message       string    `json:"message"`
	Type          string    `json:"type"`
	IsRead        bool      `json:"is_read"`
	RelatedLeadID *int64    `json:"related_lead_id,omitempty"`
	RelatedCallID *int64    `json:"related_call_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// PreferenceItem maps one notification type to its enabled flag. Preference
// updates always carry the complete set.
type PreferenceItem struct {
	NotificationType string `json:"notification_type"`
	Enabled          bool   `json:"enabled"`
}

// DefaultRetained bounds the held list; older entries stay reachable through
// the paginated list endpoint.
const DefaultRetained = 200

// Store is the single source of truth for the held notification list and
// the unread counter. Entries are newest-first by arrival, never reordered.
// It performs no I/O; the transport and controller feed it.
type Store struct {
	mu     sync.RWMutex
	items  []Notification
	unread int
	limit  int
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = DefaultRetained
	}
	return &Store{limit: limit}
}

// SetNotifications replaces the held list wholesale and recomputes the
// unread counter from the new list. Prior state never carries over.
func (s *Store) SetNotifications(list []Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make([]Notification, len(list))
	copy(s.items, list)
	s.unread = 0
	for _, n := range s.items {
		if !n.IsRead {
			s.unread++
		}
	}
	s.trimLocked()
}

// SetUnreadCount overwrites the counter with a server-authoritative value,
// independent of the held list. Later mutations adjust it incrementally
// from this base rather than recomputing from the held entries.
func (s *Store) SetUnreadCount(n int) {
	if n < 0 {
		n = 0
	}
	s.mu.Lock()
	s.unread = n
	s.mu.Unlock()
}

// Add prepends the entry. Arrival order is the source of truth, so no
// dedup by id happens here; duplicate delivery is the transport's concern.
func (s *Store) Add(n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = append([]Notification{n}, s.items...)
	if !n.IsRead {
		s.unread++
	}
	s.trimLocked()
}

// MarkRead flips the entry to read and decrements the counter, floored at
// zero. Absent ids and already-read entries are no-ops. The return value
// reports whether anything changed, which the transport uses for rollback.
func (s *Store) MarkRead(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID == id {
			if s.items[i].IsRead {
				return false
			}
			s.items[i].IsRead = true
			if s.unread > 0 {
				s.unread--
			}
			return true
		}
	}
	return false
}

// markUnread reverts an optimistic MarkRead after a failed server call.
func (s *Store) markUnread(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID == id {
			if !s.items[i].IsRead {
				return
			}
			s.items[i].IsRead = false
			s.unread++
			return
		}
	}
}

// Remove deletes the entry by id and recomputes the counter contribution.
func (s *Store) Remove(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID == id {
			if !s.items[i].IsRead && s.unread > 0 {
				s.unread--
			}
			s.items = append(s.items[:i], s.items[i+1:]...)
			return
		}
	}
}

// Clear empties the store; called on logout.
func (s *Store) Clear() {
	s.mu.Lock()
	s.items = nil
	s.unread = 0
	s.mu.Unlock()
}

// Snapshot returns a copy of the held list and the current unread count.
func (s *Store) Snapshot() ([]Notification, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]Notification, len(s.items))
	copy(items, s.items)
	return items, s.unread
}

func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// trimLocked drops entries beyond the retention cap, keeping the unread
// counter consistent with what remains held.
func (s *Store) trimLocked() {
	if len(s.items) <= s.limit {
		return
	}
	for _, n := range s.items[s.limit:] {
		if !n.IsRead && s.unread > 0 {
			s.unread--
		}
	}
	s.items = s.items[:s.limit]
}
