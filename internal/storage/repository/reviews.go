package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/review-hub/internal/models"
)

// CreateReview сохраняет новый отзыв и возвращает его ID.
func (s *Storage) CreateReview(ctx context.Context, review models.Review) (int, error) {
	const op = "storage.CreateReview"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var id int
	query := `INSERT INTO reviews (company_uid, employee_id, qr_code_id, author_name,
			      rating, review_text, video_url, status)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  RETURNING id;`
	if err := s.DB.QueryRowContext(ctx, query, review.CompanyUID, review.EmployeeID,
		review.QRCodeID, review.AuthorName, review.Rating, review.Text,
		review.VideoURL, review.Status).Scan(&id); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// ListReviews возвращает отзывы компании с фильтром по статусу и пагинацией.
// Пустой status — все отзывы.
func (s *Storage) ListReviews(ctx context.Context, companyUID, status string, limit, offset int) ([]*models.Review, error) {
	const op = "storage.ListReviews"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, company_uid, employee_id, qr_code_id, author_name,
			      rating, review_text, video_url, status, created_at
			  FROM reviews
			  WHERE company_uid = $1
			    AND ($2 = '' OR status = $2)
			  ORDER BY created_at DESC
			  LIMIT $3 OFFSET $4`
	rows, err := s.DB.QueryContext(ctx, query, companyUID, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()
	var result []*models.Review
	for rows.Next() {
		var r models.Review
		if err = rows.Scan(&r.ID, &r.CompanyUID, &r.EmployeeID, &r.QRCodeID,
			&r.AuthorName, &r.Rating, &r.Text, &r.VideoURL, &r.Status, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// UpdateReviewStatus меняет статус модерации отзыва компании.
// Возвращает количество обновлённых строк.
func (s *Storage) UpdateReviewStatus(ctx context.Context, companyUID string, id int, status string) (int, error) {
	const op = "storage.UpdateReviewStatus"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE reviews
			  SET status = $1
			  WHERE company_uid = $2 AND id = $3`
	res, err := s.DB.ExecContext(ctx, query, status, companyUID, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(affected), nil
}

// CountPendingReviews возвращает число отзывов компании в очереди модерации.
func (s *Storage) CountPendingReviews(ctx context.Context, companyUID string) (int, error) {
	const op = "storage.CountPendingReviews"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var count int
	query := `SELECT COUNT(*) FROM reviews WHERE company_uid = $1 AND status = $2`
	if err := s.DB.QueryRowContext(ctx, query, companyUID, models.ReviewPending).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}
