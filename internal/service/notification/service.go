package notification

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/sunpeak/console-api/internal/model"
	"github.com/sunpeak/console-api/internal/repository"
	"github.com/sunpeak/console-api/pkg/metrics"
)

type Service interface {
	// Create persists the notification unless the target user disabled the
	// type, in which case it returns (nil, nil).
	Create(ctx context.Context, req *model.CreateNotificationRequest) (*model.Notification, error)
	List(ctx context.Context, userID int64, filter model.NotificationFilter, page, pageSize int) (*model.NotificationListResponse, error)
	MarkRead(ctx context.Context, userID, id int64) error
	Delete(ctx context.Context, userID, id int64) error
	UnreadCount(ctx context.Context, userID int64) (int64, error)
	GetPreferences(ctx context.Context, userID int64) (*model.NotificationPreferencesResponse, error)
	UpdatePreferences(ctx context.Context, userID int64, items []model.NotificationPreferenceItem) (*model.NotificationPreferencesResponse, error)
}

type service struct {
	repo        repository.NotificationRepository
	unreadCache *gocache.Cache
	metrics     *metrics.Metrics
}

func NewService(repo repository.NotificationRepository, unreadCacheTTL time.Duration, m *metrics.Metrics) Service {
	return &service{
		repo:        repo,
		unreadCache: gocache.New(unreadCacheTTL, 2*unreadCacheTTL),
		metrics:     m,
	}
}

func (s *service) Create(ctx context.Context, req *model.CreateNotificationRequest) (*model.Notification, error) {
	if !req.Type.Valid() {
		return nil, fmt.Errorf("unknown notification type: %s", req.Type)
	}

	enabled, err := s.isEnabled(ctx, req.UserID, req.Type)
	if err != nil {
		return nil, err
	}
	if !enabled {
		s.metrics.NotificationsFiltered.Inc()
		return nil, nil
	}

	n := &model.Notification{
		UserID:        req.UserID,
		Message:       req.Message,
		Type:          req.Type,
		IsRead:        false,
		RelatedLeadID: req.RelatedLeadID,
		RelatedCallID: req.RelatedCallID,
	}

	// The push envelope rides the outbox so that delivery survives broker
	// outages: the event commits with the notification or not at all.
	if err := s.repo.Create(ctx, n, true); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	s.metrics.NotificationsCreated.WithLabelValues(string(n.Type)).Inc()
	s.invalidateUnread(req.UserID)
	return n, nil
}

func (s *service) List(ctx context.Context, userID int64, filter model.NotificationFilter, page, pageSize int) (*model.NotificationListResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	notifications, total, err := s.repo.List(ctx, userID, filter, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	return &model.NotificationListResponse{
		Notifications: notifications,
		Total:         total,
		Page:          page,
		PageSize:      pageSize,
	}, nil
}

func (s *service) MarkRead(ctx context.Context, userID, id int64) error {
	if err := s.repo.MarkRead(ctx, userID, id); err != nil {
		return err
	}
	s.invalidateUnread(userID)
	return nil
}

func (s *service) Delete(ctx context.Context, userID, id int64) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}
	s.invalidateUnread(userID)
	return nil
}

func (s *service) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	key := unreadKey(userID)
	if cached, ok := s.unreadCache.Get(key); ok {
		return cached.(int64), nil
	}

	count, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to get unread count: %w", err)
	}
	s.unreadCache.SetDefault(key, count)
	return count, nil
}

func (s *service) GetPreferences(ctx context.Context, userID int64) (*model.NotificationPreferencesResponse, error) {
	prefs, err := s.repo.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	existing := make(map[model.NotificationType]bool, len(prefs))
	for _, p := range prefs {
		existing[p.NotificationType] = p.Enabled
	}

	// Total mapping: every known type gets an entry, defaulting to enabled.
	items := make([]model.NotificationPreferenceItem, 0, len(model.AllNotificationTypes))
	for _, nt := range model.AllNotificationTypes {
		enabled, ok := existing[nt]
		if !ok {
			enabled = true
		}
		items = append(items, model.NotificationPreferenceItem{
			NotificationType: nt,
			Enabled:          enabled,
		})
	}
	return &model.NotificationPreferencesResponse{Items: items}, nil
}

func (s *service) UpdatePreferences(ctx context.Context, userID int64, items []model.NotificationPreferenceItem) (*model.NotificationPreferencesResponse, error) {
	for _, item := range items {
		if !item.NotificationType.Valid() {
			return nil, fmt.Errorf("unknown notification type: %s", item.NotificationType)
		}
	}
	if err := s.repo.UpsertPreferences(ctx, userID, items); err != nil {
		return nil, err
	}
	return s.GetPreferences(ctx, userID)
}

func (s *service) isEnabled(ctx context.Context, userID int64, nt model.NotificationType) (bool, error) {
	prefs, err := s.repo.GetPreferences(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to get preferences: %w", err)
	}
	for _, p := range prefs {
		if p.NotificationType == nt {
			return p.Enabled, nil
		}
	}
	return true, nil
}

func (s *service) invalidateUnread(userID int64) {
	s.unreadCache.Delete(unreadKey(userID))
}

func unreadKey(userID int64) string {
	return fmt.Sprintf("unread:%d", userID)
}
