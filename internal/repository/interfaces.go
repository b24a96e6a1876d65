package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sunpeak/console-api/internal/model"
)

// ErrNotFound is returned when a row scoped to the requesting user does not exist.
var ErrNotFound = errors.New("not found")

type NotificationRepository interface {
	// Create inserts the notification and, when publish is true, an outbox
	// push event in the same transaction. The envelope is built after the
	// insert so it carries the server-assigned id.
	Create(ctx context.Context, n *model.Notification, publish bool) error
	List(ctx context.Context, userID int64, filter model.NotificationFilter, page, pageSize int) ([]*model.Notification, int64, error)
	MarkRead(ctx context.Context, userID, id int64) error
	Delete(ctx context.Context, userID, id int64) error
	UnreadCount(ctx context.Context, userID int64) (int64, error)
	GetPreferences(ctx context.Context, userID int64) ([]*model.NotificationPreference, error)
	UpsertPreferences(ctx context.Context, userID int64, items []model.NotificationPreferenceItem) error
}

type UserRepository interface {
	Get(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
}

type OutboxRepository interface {
	GetPendingWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}
