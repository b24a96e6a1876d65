package notifyclient

import (
	"fmt"
	"time"
)

// BellEntry is one row of the bell dropdown: the notification plus its
// display-ready relative timestamp.
type BellEntry struct {
	ID      int64
	Message string
	Type    string
	When    string
	Read    bool
}

// Bell projects the store into what the bell widget shows: a badge count
// and a bounded list of recent entries.
type Bell struct {
	store *Store
}

func NewBell(store *Store) *Bell {
	return &Bell{store: store}
}

// Badge returns the unread count shown on the bell icon.
func (b *Bell) Badge() int {
	return b.store.UnreadCount()
}

// Entries returns up to limit rows, newest first. limit <= 0 means all
// held entries.
func (b *Bell) Entries(limit int) []BellEntry {
	items, _ := b.store.Snapshot()
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	now := time.Now()
	entries := make([]BellEntry, 0, len(items))
	for _, n := range items {
		entries = append(entries, BellEntry{
			ID:      n.ID,
			Message: n.Message,
			Type:    n.Type,
			When:    RelativeTime(n.CreatedAt, now),
			Read:    n.IsRead,
		})
	}
	return entries
}

// RelativeTime renders t relative to now, falling back to an absolute date
// past a week.
func RelativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("Jan 2, 2006")
	}
}
