package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/review-hub/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/review-hub/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) FindTrialsExpiringToday(ctx context.Context) ([]*models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

type NotifierMock struct{ mock.Mock }

func (m *NotifierMock) NotifyTrialExpiring(ctx context.Context, companyUID string) error {
	return m.Called(ctx, companyUID).Error(0)
}

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) Publish(exchange, routingKey string, message any) error {
	return m.Called(exchange, routingKey, message).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestRunFindExpiringTrials(t *testing.T) {
	end := time.Now()

	t.Run("каждая найденная компания получает письмо и уведомление", func(t *testing.T) {
		repo := new(RepoMock)
		notifier := new(NotifierMock)
		publisher := new(PublisherMock)

		repo.On("FindTrialsExpiringToday", mock.Anything).Return([]*models.User{
			{UID: "u1", Email: "a@example.com", Username: "a", CompanyName: "A", TrialEndDate: &end},
			{UID: "u2", Email: "b@example.com", Username: "b", CompanyName: "B", TrialEndDate: &end},
		}, nil).Once()
		publisher.On("Publish", rabbitmq.NotificationsExchange, "trial.expiring",
			mock.MatchedBy(func(info models.TrialExpiryInfo) bool {
				return info.Email != ""
			})).Return(nil).Twice()
		notifier.On("NotifyTrialExpiring", mock.Anything, "u1").Return(nil).Once()
		notifier.On("NotifyTrialExpiring", mock.Anything, "u2").Return(nil).Once()

		svc := NewSchedulerService(repo, notifier, publisher, newNoopLogger())
		svc.runFindExpiringTrials(context.Background())
		publisher.AssertExpectations(t)
		notifier.AssertExpectations(t)
	})

	t.Run("ошибка публикации не прерывает проход", func(t *testing.T) {
		repo := new(RepoMock)
		notifier := new(NotifierMock)
		publisher := new(PublisherMock)

		repo.On("FindTrialsExpiringToday", mock.Anything).Return([]*models.User{
			{UID: "u1", Email: "a@example.com", Username: "a", TrialEndDate: &end},
			{UID: "u2", Email: "b@example.com", Username: "b", TrialEndDate: &end},
		}, nil).Once()
		publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).
			Return(errors.New("broker down")).Twice()
		notifier.On("NotifyTrialExpiring", mock.Anything, mock.Anything).Return(nil).Twice()

		svc := NewSchedulerService(repo, notifier, publisher, newNoopLogger())
		svc.runFindExpiringTrials(context.Background())
		publisher.AssertExpectations(t)
	})

	t.Run("ошибка выборки не останавливает планировщик", func(t *testing.T) {
		repo := new(RepoMock)
		publisher := new(PublisherMock)
		repo.On("FindTrialsExpiringToday", mock.Anything).Return(nil, errors.New("db down")).Once()

		svc := NewSchedulerService(repo, new(NotifierMock), publisher, newNoopLogger())
		svc.runFindExpiringTrials(context.Background())
		publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("пустая выборка ничего не публикует", func(t *testing.T) {
		repo := new(RepoMock)
		publisher := new(PublisherMock)
		repo.On("FindTrialsExpiringToday", mock.Anything).Return([]*models.User{}, nil).Once()

		svc := NewSchedulerService(repo, new(NotifierMock), publisher, newNoopLogger())
		svc.runFindExpiringTrials(context.Background())
		publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})
}
