// Package notification ведёт ленту уведомлений компании. Уведомления
// создаются сервером на события домена, клиент управляет только флагом
// прочтения. Вставка уведомления публикует событие изменения, чтобы
// открытые подписки компании узнали о нём без перезагрузки.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/review-hub/internal/lib/sl"
	"github.com/magabrotheeeer/review-hub/internal/models"
)

// ErrNotificationNotFound уведомление не найдено или принадлежит другой компании.
var ErrNotificationNotFound = errors.New("notification not found")

// Repository операции с уведомлениями в хранилище.
type Repository interface {
	InsertNotification(ctx context.Context, n models.Notification) (int, error)
	ListNotifications(ctx context.Context, companyUID string, limit, offset int) ([]*models.Notification, error)
	CountUnreadNotifications(ctx context.Context, companyUID string) (int, error)
	MarkNotificationRead(ctx context.Context, companyUID string, id int) (int, error)
	MarkAllNotificationsRead(ctx context.Context, companyUID string) (int, error)
}

// ChangePublisher публикует событие изменения строки в ленту компании.
type ChangePublisher interface {
	PublishChange(ctx context.Context, ev models.ChangeEvent) error
}

// CountCache кеширует счётчик непрочитанных уведомлений.
type CountCache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

const unreadCountTTL = 10 * time.Minute

func unreadCountKey(companyUID string) string { return "unread_count:" + companyUID }

// Service сервис уведомлений.
type Service struct {
	log       *slog.Logger
	repo      Repository
	publisher ChangePublisher
	counts    CountCache
}

// New создаёт сервис уведомлений. publisher может быть nil, тогда
// события изменений не публикуются; counts может быть nil, тогда
// счётчик непрочитанных всегда считается по базе.
func New(log *slog.Logger, repo Repository, publisher ChangePublisher, counts CountCache) *Service {
	return &Service{log: log, repo: repo, publisher: publisher, counts: counts}
}

func (s *Service) create(ctx context.Context, n models.Notification) (int, error) {
	id, err := s.repo.InsertNotification(ctx, n)
	if err != nil {
		return 0, err
	}
	s.InvalidateUnread(n.CompanyUID)

	if s.publisher != nil {
		ev := models.ChangeEvent{
			Table:   "notifications",
			Event:   "INSERT",
			UserUID: n.CompanyUID,
		}
		if err := s.publisher.PublishChange(ctx, ev); err != nil {
			s.log.Warn("failed to publish notification change", sl.Err(err))
		}
	}
	return id, nil
}

// NotifyNewReview создаёт уведомление о новом отзыве.
func (s *Service) NotifyNewReview(ctx context.Context, review models.Review) error {
	const op = "services.notification.NotifyNewReview"

	actionURL := fmt.Sprintf("/reviews/%d", review.ID)
	n := models.Notification{
		CompanyUID: review.CompanyUID,
		Type:       models.NotificationReview,
		Title:      "Новый отзыв",
		Message:    fmt.Sprintf("Получен новый отзыв с оценкой %d, требуется модерация", review.Rating),
		Priority:   1,
		ActionURL:  &actionURL,
	}
	if _, err := s.create(ctx, n); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// NotifyTrialExpiring создаёт системное уведомление об истекающем
// пробном периоде.
func (s *Service) NotifyTrialExpiring(ctx context.Context, companyUID string) error {
	const op = "services.notification.NotifyTrialExpiring"

	n := models.Notification{
		CompanyUID: companyUID,
		Type:       models.NotificationSystem,
		Title:      "Пробный период заканчивается",
		Message:    "Пробный период заканчивается сегодня. Выберите тариф, чтобы сохранить доступ.",
		Priority:   2,
	}
	if _, err := s.create(ctx, n); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// List возвращает уведомления компании.
func (s *Service) List(ctx context.Context, companyUID string, limit, offset int) ([]*models.Notification, error) {
	const op = "services.notification.List"
	items, err := s.repo.ListNotifications(ctx, companyUID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return items, nil
}

// UnreadCount возвращает количество непрочитанных уведомлений.
// Счётчик кешируется до изменения ленты уведомлений компании.
func (s *Service) UnreadCount(ctx context.Context, companyUID string) (int, error) {
	const op = "services.notification.UnreadCount"

	if s.counts != nil {
		var cached int
		found, err := s.counts.Get(unreadCountKey(companyUID), &cached)
		if err != nil {
			s.log.Warn("failed to read unread counter cache", sl.Err(err))
		}
		if found {
			return cached, nil
		}
	}

	count, err := s.repo.CountUnreadNotifications(ctx, companyUID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if s.counts != nil {
		if err := s.counts.Set(unreadCountKey(companyUID), count, unreadCountTTL); err != nil {
			s.log.Warn("failed to cache unread counter", sl.Err(err))
		}
	}
	return count, nil
}

// InvalidateUnread сбрасывает кешированный счётчик непрочитанных.
// Вызывается после локальных записей и по событию ленты изменений,
// когда уведомление создал другой процесс.
func (s *Service) InvalidateUnread(companyUID string) {
	if s.counts == nil {
		return
	}
	if err := s.counts.Invalidate(unreadCountKey(companyUID)); err != nil {
		s.log.Warn("failed to drop unread counter cache", sl.Err(err))
	}
}

// MarkRead помечает уведомление прочитанным.
func (s *Service) MarkRead(ctx context.Context, companyUID string, id int) error {
	const op = "services.notification.MarkRead"
	rows, err := s.repo.MarkNotificationRead(ctx, companyUID, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotificationNotFound)
	}
	s.InvalidateUnread(companyUID)
	return nil
}

// MarkAllRead помечает все уведомления компании прочитанными и
// возвращает, сколько записей затронуто.
func (s *Service) MarkAllRead(ctx context.Context, companyUID string) (int, error) {
	const op = "services.notification.MarkAllRead"
	rows, err := s.repo.MarkAllNotificationsRead(ctx, companyUID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	s.InvalidateUnread(companyUID)
	return rows, nil
}
