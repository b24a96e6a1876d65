package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunpeak/console-api/internal/model"
	"github.com/sunpeak/console-api/internal/repository"
	"github.com/sunpeak/console-api/pkg/metrics"
)

type fakeRepo struct {
	created       []*model.Notification
	createPublish bool
	createErr     error

	listResult []*model.Notification
	listTotal  int64
	listPage   int
	listSize   int

	markReadErr error
	deleteErr   error

	unreadCount int64
	unreadCalls int

	prefs     []*model.NotificationPreference
	prefsErr  error
	upserted  []model.NotificationPreferenceItem
	upsertErr error
}

func (r *fakeRepo) Create(ctx context.Context, n *model.Notification, publish bool) error {
	if r.createErr != nil {
		return r.createErr
	}
	n.ID = int64(len(r.created) + 1)
	n.CreatedAt = time.Now()
	r.created = append(r.created, n)
	r.createPublish = publish
	return nil
}

func (r *fakeRepo) List(ctx context.Context, userID int64, filter model.NotificationFilter, page, pageSize int) ([]*model.Notification, int64, error) {
	r.listPage = page
	r.listSize = pageSize
	return r.listResult, r.listTotal, nil
}

func (r *fakeRepo) MarkRead(ctx context.Context, userID, id int64) error { return r.markReadErr }
func (r *fakeRepo) Delete(ctx context.Context, userID, id int64) error   { return r.deleteErr }

func (r *fakeRepo) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	r.unreadCalls++
	return r.unreadCount, nil
}

func (r *fakeRepo) GetPreferences(ctx context.Context, userID int64) ([]*model.NotificationPreference, error) {
	return r.prefs, r.prefsErr
}

func (r *fakeRepo) UpsertPreferences(ctx context.Context, userID int64, items []model.NotificationPreferenceItem) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.upserted = items
	return nil
}

var _ repository.NotificationRepository = (*fakeRepo)(nil)

// Shared across tests: metrics register globally, once per test binary.
var testMetrics = metrics.NewMetrics("notification_svc_test")

func newTestService(repo *fakeRepo) Service {
	return NewService(repo, 10*time.Second, testMetrics)
}

func TestCreatePersistsAndPublishes(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(repo)

	n, err := svc.Create(context.Background(), &model.CreateNotificationRequest{
		UserID:  1,
		Message: "lead assigned to you",
		Type:    model.NotificationTypeLeadAssigned,
	})

	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, int64(1), n.ID)
	assert.False(t, n.IsRead)
	assert.True(t, repo.createPublish)
}

func TestCreateRejectsUnknownType(t *testing.T) {
	svc := newTestService(&fakeRepo{})

	_, err := svc.Create(context.Background(), &model.CreateNotificationRequest{
		UserID: 1, Message: "x", Type: "carrier_pigeon",
	})
	assert.Error(t, err)
}

func TestCreateSuppressedByPreference(t *testing.T) {
	repo := &fakeRepo{
		prefs: []*model.NotificationPreference{
			{NotificationType: model.NotificationTypeLeadAssigned, Enabled: false},
		},
	}
	svc := newTestService(repo)

	n, err := svc.Create(context.Background(), &model.CreateNotificationRequest{
		UserID: 1, Message: "x", Type: model.NotificationTypeLeadAssigned,
	})

	require.NoError(t, err)
	assert.Nil(t, n)
	assert.Empty(t, repo.created)
}

func TestCreateDefaultsToEnabledWithoutPreferenceRow(t *testing.T) {
	repo := &fakeRepo{
		prefs: []*model.NotificationPreference{
			{NotificationType: model.NotificationTypeProductUpdated, Enabled: false},
		},
	}
	svc := newTestService(repo)

	n, err := svc.Create(context.Background(), &model.CreateNotificationRequest{
		UserID: 1, Message: "x", Type: model.NotificationTypeLeadAssigned,
	})

	require.NoError(t, err)
	require.NotNil(t, n)
}

func TestListClampsPagination(t *testing.T) {
	tests := []struct {
		name               string
		page, pageSize     int
		wantPage, wantSize int
	}{
		{"zero page", 0, 20, 1, 20},
		{"negative page", -3, 20, 1, 20},
		{"zero size", 1, 0, 1, 20},
		{"oversized", 1, 500, 1, 100},
		{"in range", 2, 50, 2, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRepo{listTotal: 0}
			svc := newTestService(repo)

			resp, err := svc.List(context.Background(), 1, model.NotificationFilter{}, tt.page, tt.pageSize)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPage, repo.listPage)
			assert.Equal(t, tt.wantSize, repo.listSize)
			assert.Equal(t, tt.wantPage, resp.Page)
			assert.Equal(t, tt.wantSize, resp.PageSize)
		})
	}
}

func TestMarkReadPropagatesNotFound(t *testing.T) {
	repo := &fakeRepo{markReadErr: repository.ErrNotFound}
	svc := newTestService(repo)

	err := svc.MarkRead(context.Background(), 1, 42)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUnreadCountCaches(t *testing.T) {
	repo := &fakeRepo{unreadCount: 9}
	svc := newTestService(repo)

	for i := 0; i < 3; i++ {
		count, err := svc.UnreadCount(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, int64(9), count)
	}
	assert.Equal(t, 1, repo.unreadCalls)
}

func TestUnreadCountCacheInvalidatedByMarkRead(t *testing.T) {
	repo := &fakeRepo{unreadCount: 9}
	svc := newTestService(repo)

	_, err := svc.UnreadCount(context.Background(), 1)
	require.NoError(t, err)

	repo.unreadCount = 8
	require.NoError(t, svc.MarkRead(context.Background(), 1, 42))

	count, err := svc.UnreadCount(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(8), count)
	assert.Equal(t, 2, repo.unreadCalls)
}

func TestGetPreferencesReturnsTotalMapping(t *testing.T) {
	repo := &fakeRepo{
		prefs: []*model.NotificationPreference{
			{NotificationType: model.NotificationTypeProductUpdated, Enabled: false},
		},
	}
	svc := newTestService(repo)

	resp, err := svc.GetPreferences(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, resp.Items, len(model.AllNotificationTypes))

	byType := make(map[model.NotificationType]bool)
	for _, item := range resp.Items {
		byType[item.NotificationType] = item.Enabled
	}
	assert.False(t, byType[model.NotificationTypeProductUpdated])
	// Everything without a stored row defaults to enabled.
	assert.True(t, byType[model.NotificationTypeLeadAssigned])
}

func TestUpdatePreferencesValidatesTypes(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(repo)

	_, err := svc.UpdatePreferences(context.Background(), 1, []model.NotificationPreferenceItem{
		{NotificationType: "bogus", Enabled: true},
	})
	assert.Error(t, err)
	assert.Empty(t, repo.upserted)
}

func TestUpdatePreferencesUpsertsAndReloads(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(repo)

	items := []model.NotificationPreferenceItem{
		{NotificationType: model.NotificationTypeLeadAssigned, Enabled: false},
	}
	resp, err := svc.UpdatePreferences(context.Background(), 1, items)
	require.NoError(t, err)
	assert.Equal(t, items, repo.upserted)
	assert.Len(t, resp.Items, len(model.AllNotificationTypes))
}

func TestCreateWrapsRepositoryError(t *testing.T) {
	repo := &fakeRepo{createErr: errors.New("db down")}
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), &model.CreateNotificationRequest{
		UserID: 1, Message: "x", Type: model.NotificationTypeLeadAssigned,
	})
	assert.Error(t, err)
}
