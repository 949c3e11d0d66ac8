// Package scheduler находит компании, у которых сегодня заканчивается
// пробный период, и рассылает об этом сообщения: письмо через очередь
// отправщика и уведомление в ленту компании.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/review-hub/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/review-hub/internal/lib/sl"
	"github.com/magabrotheeeer/review-hub/internal/models"
)

// UserRepository поиск компаний с истекающим пробным периодом.
type UserRepository interface {
	FindTrialsExpiringToday(ctx context.Context) ([]*models.User, error)
}

// Notifier создаёт уведомление в ленте компании.
type Notifier interface {
	NotifyTrialExpiring(ctx context.Context, companyUID string) error
}

// SchedulerService периодически сверяет даты окончания пробных периодов.
type SchedulerService struct {
	users     UserRepository
	notifier  Notifier
	log       *slog.Logger
	publisher rabbitmq.Publisher
}

// NewSchedulerService создает новый экземпляр SchedulerService.
func NewSchedulerService(users UserRepository, notifier Notifier,
	publisher rabbitmq.Publisher, log *slog.Logger) *SchedulerService {
	return &SchedulerService{
		users:     users,
		notifier:  notifier,
		publisher: publisher,
		log:       log,
	}
}

// FindExpiringTrials запускает проход сразу и затем раз в сутки.
func (s *SchedulerService) FindExpiringTrials(ctx context.Context) {
	s.runFindExpiringTrials(ctx)

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runFindExpiringTrials(ctx)
		}
	}
}

func (s *SchedulerService) runFindExpiringTrials(ctx context.Context) {
	s.log.Info("starting service to find expiring trial periods")
	users, err := s.users.FindTrialsExpiringToday(ctx)
	if err != nil {
		s.log.Error("failed to find users", sl.Err(err))
		return
	}
	if len(users) == 0 {
		s.log.Info("no expiring trial periods found")
		return
	}
	s.log.Info("found expiring trial periods", "count", len(users))
	for _, user := range users {
		info := models.TrialExpiryInfo{
			Email:        user.Email,
			Username:     user.Username,
			CompanyName:  user.CompanyName,
			TrialEndDate: user.TrialEndDate,
		}
		err = s.publisher.Publish(rabbitmq.NotificationsExchange, "trial.expiring", info)
		if err != nil {
			s.log.Error("failed to publish message", sl.Err(err))
		}
		if s.notifier != nil {
			if err := s.notifier.NotifyTrialExpiring(ctx, user.UID); err != nil {
				s.log.Error("failed to create in-app notification", sl.Err(err))
			}
		}
	}
}
