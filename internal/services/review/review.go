// Package review обрабатывает отзывы клиентов: приём по токену QR-кода,
// списки и модерация компанией-владельцем. Каждый принятый отзыв
// порождает уведомление компании.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/review-hub/internal/lib/sl"
	"github.com/magabrotheeeer/review-hub/internal/metrics"
	"github.com/magabrotheeeer/review-hub/internal/models"
)

// Ошибки сервиса отзывов.
var (
	ErrReviewNotFound  = errors.New("review not found")
	ErrInvalidStatus   = errors.New("invalid review status")
	ErrInvalidModerate = errors.New("moderation status must be approved or rejected")
)

// Repository операции с отзывами в хранилище.
type Repository interface {
	CreateReview(ctx context.Context, review models.Review) (int, error)
	ListReviews(ctx context.Context, companyUID, status string, limit, offset int) ([]*models.Review, error)
	UpdateReviewStatus(ctx context.Context, companyUID string, id int, status string) (int, error)
	CountPendingReviews(ctx context.Context, companyUID string) (int, error)
}

// QRResolver находит сотрудника по токену QR-кода.
type QRResolver interface {
	Lookup(ctx context.Context, qrCodeID string) (*models.Employee, error)
}

// Notifier создаёт уведомление компании о новом отзыве.
type Notifier interface {
	NotifyNewReview(ctx context.Context, review models.Review) error
}

// Service сервис отзывов.
type Service struct {
	log      *slog.Logger
	repo     Repository
	qr       QRResolver
	notifier Notifier
}

// New создаёт сервис отзывов.
func New(log *slog.Logger, repo Repository, qr QRResolver, notifier Notifier) *Service {
	return &Service{log: log, repo: repo, qr: qr, notifier: notifier}
}

// Submit принимает отзыв посетителя по токену QR-кода. Отзыв попадает
// в очередь модерации компании-владельца кода.
func (s *Service) Submit(ctx context.Context, qrCodeID string, req models.DummyReview) (int, error) {
	const op = "services.review.Submit"

	emp, err := s.qr.Lookup(ctx, qrCodeID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	review := models.Review{
		CompanyUID: emp.CompanyUID,
		EmployeeID: emp.ID,
		QRCodeID:   qrCodeID,
		AuthorName: req.AuthorName,
		Rating:     req.Rating,
		Text:       req.Text,
		VideoURL:   req.VideoURL,
		Status:     models.ReviewPending,
	}

	id, err := s.repo.CreateReview(ctx, review)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	review.ID = id
	metrics.ReviewsSubmitted.Inc()

	if s.notifier != nil {
		if err := s.notifier.NotifyNewReview(ctx, review); err != nil {
			// Отзыв уже сохранён, уведомление не критично.
			s.log.Warn("failed to notify about new review", sl.Err(err))
		}
	}

	s.log.Info("review submitted",
		slog.String("company_uid", emp.CompanyUID), slog.Int("review_id", id))
	return id, nil
}

// List возвращает отзывы компании с необязательным фильтром по статусу.
func (s *Service) List(ctx context.Context, companyUID, status string, limit, offset int) ([]*models.Review, error) {
	const op = "services.review.List"

	switch status {
	case "", models.ReviewPending, models.ReviewApproved, models.ReviewRejected:
	default:
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidStatus)
	}

	reviews, err := s.repo.ListReviews(ctx, companyUID, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return reviews, nil
}

// Moderate меняет статус отзыва на approved или rejected. Чужие отзывы
// недоступны: запрос всегда ограничен компанией-владельцем.
func (s *Service) Moderate(ctx context.Context, companyUID string, id int, status string) error {
	const op = "services.review.Moderate"

	if status != models.ReviewApproved && status != models.ReviewRejected {
		return fmt.Errorf("%s: %w", op, ErrInvalidModerate)
	}

	rows, err := s.repo.UpdateReviewStatus(ctx, companyUID, id, status)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, ErrReviewNotFound)
	}
	return nil
}

// PendingCount возвращает количество отзывов, ожидающих модерации.
func (s *Service) PendingCount(ctx context.Context, companyUID string) (int, error) {
	const op = "services.review.PendingCount"
	count, err := s.repo.CountPendingReviews(ctx, companyUID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}
