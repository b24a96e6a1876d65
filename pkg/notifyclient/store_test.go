package notifyclient

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func note(id int64, read bool) Notification {
	return Notification{
		ID:        id,
		UserID:    1,
		Message:   fmt.Sprintf("notification %d", id),
		Type:      "lead_assigned",
		IsRead:    read,
		CreatedAt: time.Now(),
	}
}

func TestStoreSetNotificationsRecomputesUnread(t *testing.T) {
	s := NewStore(0)
	s.SetUnreadCount(99)

	s.SetNotifications([]Notification{note(1, false), note(2, true), note(3, false)})

	items, unread := s.Snapshot()
	assert.Len(t, items, 3)
	assert.Equal(t, 2, unread)
}

func TestStoreSetNotificationsReplacesWholesale(t *testing.T) {
	s := NewStore(0)
	s.Add(note(1, false))
	s.Add(note(2, false))

	s.SetNotifications([]Notification{note(9, true)})

	items, unread := s.Snapshot()
	require.Len(t, items, 1)
	assert.Equal(t, int64(9), items[0].ID)
	assert.Equal(t, 0, unread)
}

func TestStoreAddPrependsWithoutDedup(t *testing.T) {
	s := NewStore(0)
	s.Add(note(1, false))
	s.Add(note(2, false))
	// Same id again: arrival order wins, no dedup here.
	s.Add(note(1, false))

	items, unread := s.Snapshot()
	require.Len(t, items, 3)
	assert.Equal(t, int64(1), items[0].ID)
	assert.Equal(t, int64(2), items[1].ID)
	assert.Equal(t, int64(1), items[2].ID)
	assert.Equal(t, 3, unread)
}

func TestStoreAddReadEntryKeepsServerCount(t *testing.T) {
	s := NewStore(0)
	s.SetUnreadCount(7)

	s.Add(note(1, true))

	assert.Equal(t, 7, s.UnreadCount())
	assert.Equal(t, 1, s.Len())
}

func TestStoreAddUnreadIncrementsServerBase(t *testing.T) {
	s := NewStore(0)
	s.SetUnreadCount(7)

	s.Add(note(1, false))

	assert.Equal(t, 8, s.UnreadCount())
}

func TestStoreMarkRead(t *testing.T) {
	s := NewStore(0)
	s.SetNotifications([]Notification{note(1, false), note(2, true)})

	assert.True(t, s.MarkRead(1))
	assert.Equal(t, 0, s.UnreadCount())

	// Already read and absent ids are no-ops.
	assert.False(t, s.MarkRead(1))
	assert.False(t, s.MarkRead(2))
	assert.False(t, s.MarkRead(404))
	assert.Equal(t, 0, s.UnreadCount())
}

func TestStoreMarkReadFloorsAtZero(t *testing.T) {
	s := NewStore(0)
	s.SetNotifications([]Notification{note(1, false)})
	s.SetUnreadCount(0)

	s.MarkRead(1)

	assert.Equal(t, 0, s.UnreadCount())
}

func TestStoreMarkUnreadRevertsOptimisticRead(t *testing.T) {
	s := NewStore(0)
	s.SetNotifications([]Notification{note(1, false)})

	require.True(t, s.MarkRead(1))
	s.markUnread(1)

	items, unread := s.Snapshot()
	assert.False(t, items[0].IsRead)
	assert.Equal(t, 1, unread)

	// Reverting an entry that was never read changes nothing.
	s.SetNotifications([]Notification{note(2, false)})
	s.markUnread(2)
	assert.Equal(t, 1, s.UnreadCount())
}

func TestStoreRemove(t *testing.T) {
	s := NewStore(0)
	s.SetNotifications([]Notification{note(1, false), note(2, true)})

	s.Remove(1)
	items, unread := s.Snapshot()
	require.Len(t, items, 1)
	assert.Equal(t, int64(2), items[0].ID)
	assert.Equal(t, 0, unread)

	// Removing a missing id is a no-op.
	s.Remove(404)
	assert.Equal(t, 1, s.Len())
}

func TestStoreRetentionCap(t *testing.T) {
	s := NewStore(3)
	for i := int64(1); i <= 5; i++ {
		s.Add(note(i, false))
	}

	items, unread := s.Snapshot()
	require.Len(t, items, 3)
	assert.Equal(t, int64(5), items[0].ID)
	assert.Equal(t, int64(3), items[2].ID)
	// Trimmed unread entries no longer count against the held list.
	assert.Equal(t, 3, unread)
}

func TestStoreClear(t *testing.T) {
	s := NewStore(0)
	s.SetNotifications([]Notification{note(1, false)})

	s.Clear()

	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, s.UnreadCount())
}

func TestStoreUnreadNeverNegative(t *testing.T) {
	s := NewStore(0)
	s.SetUnreadCount(-5)
	assert.Equal(t, 0, s.UnreadCount())
}
