package notification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/review-hub/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) InsertNotification(ctx context.Context, n models.Notification) (int, error) {
	args := m.Called(ctx, n)
	return args.Int(0), args.Error(1)
}
func (m *RepoMock) ListNotifications(ctx context.Context, companyUID string, limit, offset int) ([]*models.Notification, error) {
	args := m.Called(ctx, companyUID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Notification), args.Error(1)
}
func (m *RepoMock) CountUnreadNotifications(ctx context.Context, companyUID string) (int, error) {
	args := m.Called(ctx, companyUID)
	return args.Int(0), args.Error(1)
}
func (m *RepoMock) MarkNotificationRead(ctx context.Context, companyUID string, id int) (int, error) {
	args := m.Called(ctx, companyUID, id)
	return args.Int(0), args.Error(1)
}
func (m *RepoMock) MarkAllNotificationsRead(ctx context.Context, companyUID string) (int, error) {
	args := m.Called(ctx, companyUID)
	return args.Int(0), args.Error(1)
}

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) PublishChange(ctx context.Context, ev models.ChangeEvent) error {
	return m.Called(ctx, ev).Error(0)
}

type CountCacheMock struct{ mock.Mock }

func (m *CountCacheMock) Get(key string, result any) (bool, error) {
	args := m.Called(key, result)
	return args.Bool(0), args.Error(1)
}
func (m *CountCacheMock) Set(key string, value any, expiration time.Duration) error {
	return m.Called(key, value, expiration).Error(0)
}
func (m *CountCacheMock) Invalidate(key string) error {
	return m.Called(key).Error(0)
}

func newTestService(repo *RepoMock, publisher *PublisherMock) *Service {
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	if publisher == nil {
		return New(log, repo, nil, nil)
	}
	return New(log, repo, publisher, nil)
}

func TestNotifyNewReview(t *testing.T) {
	repo := new(RepoMock)
	publisher := new(PublisherMock)
	svc := newTestService(repo, publisher)

	repo.On("InsertNotification", mock.Anything, mock.MatchedBy(func(n models.Notification) bool {
		return n.CompanyUID == "c1" && n.Type == models.NotificationReview &&
			n.ActionURL != nil && *n.ActionURL == "/reviews/42"
	})).Return(1, nil).Once()
	publisher.On("PublishChange", mock.Anything, mock.MatchedBy(func(ev models.ChangeEvent) bool {
		return ev.Table == "notifications" && ev.Event == "INSERT" && ev.UserUID == "c1"
	})).Return(nil).Once()

	err := svc.NotifyNewReview(context.Background(), models.Review{
		ID: 42, CompanyUID: "c1", Rating: 5,
	})
	require.NoError(t, err)
	publisher.AssertExpectations(t)
}

func TestNotifyNewReview_PublishFailureIsNotFatal(t *testing.T) {
	repo := new(RepoMock)
	publisher := new(PublisherMock)
	svc := newTestService(repo, publisher)

	repo.On("InsertNotification", mock.Anything, mock.Anything).Return(1, nil).Once()
	publisher.On("PublishChange", mock.Anything, mock.Anything).
		Return(errors.New("broker down")).Once()

	err := svc.NotifyNewReview(context.Background(), models.Review{ID: 42, CompanyUID: "c1"})
	assert.NoError(t, err)
}

func TestMarkRead(t *testing.T) {
	t.Run("успех", func(t *testing.T) {
		repo := new(RepoMock)
		svc := newTestService(repo, nil)
		repo.On("MarkNotificationRead", mock.Anything, "c1", 5).Return(1, nil).Once()
		assert.NoError(t, svc.MarkRead(context.Background(), "c1", 5))
	})

	t.Run("чужое уведомление", func(t *testing.T) {
		repo := new(RepoMock)
		svc := newTestService(repo, nil)
		repo.On("MarkNotificationRead", mock.Anything, "c1", 5).Return(0, nil).Once()
		assert.ErrorIs(t, svc.MarkRead(context.Background(), "c1", 5), ErrNotificationNotFound)
	})
}

func TestMarkAllRead(t *testing.T) {
	repo := new(RepoMock)
	svc := newTestService(repo, nil)
	repo.On("MarkAllNotificationsRead", mock.Anything, "c1").Return(3, nil).Once()

	rows, err := svc.MarkAllRead(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 3, rows)
}

func TestUnreadCount_CachesUntilInvalidated(t *testing.T) {
	repo := new(RepoMock)
	counts := new(CountCacheMock)
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	svc := New(log, repo, nil, counts)

	// Первый запрос идёт в базу и кладёт счётчик в кеш.
	counts.On("Get", unreadCountKey("c1"), mock.Anything).Return(false, nil).Once()
	repo.On("CountUnreadNotifications", mock.Anything, "c1").Return(7, nil).Once()
	counts.On("Set", unreadCountKey("c1"), 7, unreadCountTTL).Return(nil).Once()

	count, err := svc.UnreadCount(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 7, count)

	// Второй запрос обслуживается из кеша.
	counts.On("Get", unreadCountKey("c1"), mock.Anything).Run(func(args mock.Arguments) {
		*args.Get(1).(*int) = 7
	}).Return(true, nil).Once()

	count, err = svc.UnreadCount(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 7, count)
	repo.AssertNumberOfCalls(t, "CountUnreadNotifications", 1)

	// Событие ленты изменений роняет кеш.
	counts.On("Invalidate", unreadCountKey("c1")).Return(nil).Once()
	svc.InvalidateUnread("c1")
	counts.AssertExpectations(t)
}

func TestMarkRead_DropsUnreadCounter(t *testing.T) {
	repo := new(RepoMock)
	counts := new(CountCacheMock)
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	svc := New(log, repo, nil, counts)

	repo.On("MarkNotificationRead", mock.Anything, "c1", 5).Return(1, nil).Once()
	counts.On("Invalidate", unreadCountKey("c1")).Return(nil).Once()

	require.NoError(t, svc.MarkRead(context.Background(), "c1", 5))
	counts.AssertExpectations(t)
}
