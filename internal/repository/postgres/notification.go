package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sunpeak/console-api/internal/model"
	"github.com/sunpeak/console-api/internal/repository"
)

type notificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) repository.NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification, publish bool) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	n.CreatedAt = time.Now()

	query := `
		INSERT INTO notifications (
			user_id, message, type, is_read, related_lead_id, related_call_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	if err := tx.QueryRowxContext(ctx, query,
		n.UserID,
		n.Message,
		n.Type,
		n.IsRead,
		n.RelatedLeadID,
		n.RelatedCallID,
		n.CreatedAt,
	).Scan(&n.ID); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	if publish {
		payload, err := json.Marshal(model.PushEvent{UserID: n.UserID, Notification: n})
		if err != nil {
			return fmt.Errorf("failed to marshal push event: %w", err)
		}

		now := time.Now()
		outboxQuery := `
			INSERT INTO outbox_events (id, event_type, payload, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		if _, err := tx.ExecContext(ctx, outboxQuery,
			uuid.New(),
			model.PushChannel,
			payload,
			model.OutboxStatusPending,
			now,
			now,
		); err != nil {
			return fmt.Errorf("failed to create outbox event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *notificationRepository) List(ctx context.Context, userID int64, filter model.NotificationFilter, page, pageSize int) ([]*model.Notification, int64, error) {
	where := []string{"user_id = $1"}
	args := []interface{}{userID}

	if filter.IsRead != nil {
		args = append(args, *filter.IsRead)
		where = append(where, fmt.Sprintf("is_read = $%d", len(args)))
	}
	if filter.Type != nil {
		args = append(args, *filter.Type)
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		where = append(where, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	cond := strings.Join(where, " AND ")

	var total int64
	countQuery := "SELECT COUNT(*) FROM notifications WHERE " + cond
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	args = append(args, pageSize, (page-1)*pageSize)
	query := fmt.Sprintf(`
		SELECT id, user_id, message, type, is_read, related_lead_id, related_call_id, created_at
		FROM notifications
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, cond, len(args)-1, len(args))

	notifications := []*model.Notification{}
	if err := r.db.SelectContext(ctx, &notifications, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}

	return notifications, total, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, userID, id int64) error {
	// Matched-but-unchanged rows still count, so marking an already-read
	// notification succeeds without a second write of is_read.
	query := `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *notificationRepository) Delete(ctx context.Context, userID, id int64) error {
	query := `DELETE FROM notifications WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *notificationRepository) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

func (r *notificationRepository) GetPreferences(ctx context.Context, userID int64) ([]*model.NotificationPreference, error) {
	query := `
		SELECT id, user_id, notification_type, enabled, created_at
		FROM notification_preferences
		WHERE user_id = $1
	`
	prefs := []*model.NotificationPreference{}
	if err := r.db.SelectContext(ctx, &prefs, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return prefs, nil
		}
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}
	return prefs, nil
}

func (r *notificationRepository) UpsertPreferences(ctx context.Context, userID int64, items []model.NotificationPreferenceItem) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO notification_preferences (user_id, notification_type, enabled, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, notification_type) DO UPDATE SET enabled = EXCLUDED.enabled
	`
	now := time.Now()
	for _, item := range items {
		if _, err := tx.ExecContext(ctx, query, userID, item.NotificationType, item.Enabled, now); err != nil {
			return fmt.Errorf("failed to upsert preference %s: %w", item.NotificationType, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
