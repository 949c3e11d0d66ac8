package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/magabrotheeeer/review-hub/internal/models"
)

// InsertNotification добавляет уведомление в ленту компании и возвращает его ID.
func (s *Storage) InsertNotification(ctx context.Context, n models.Notification) (int, error) {
	const op = "storage.InsertNotification"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var id int
	query := `INSERT INTO notifications (company_uid, type, title, message, priority, action_url)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING id;`
	if err := s.DB.QueryRowContext(ctx, query, n.CompanyUID, n.Type, n.Title,
		n.Message, n.Priority, n.ActionURL).Scan(&id); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// ListNotifications возвращает уведомления компании, свежие первыми.
func (s *Storage) ListNotifications(ctx context.Context, companyUID string, limit, offset int) ([]*models.Notification, error) {
	const op = "storage.ListNotifications"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, company_uid, type, title, message, is_read, priority,
			      action_url, created_at
			  FROM notifications
			  WHERE company_uid = $1
			  ORDER BY created_at DESC
			  LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, companyUID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()
	var result []*models.Notification
	for rows.Next() {
		var n models.Notification
		var actionURL sql.NullString
		if err = rows.Scan(&n.ID, &n.CompanyUID, &n.Type, &n.Title, &n.Message,
			&n.IsRead, &n.Priority, &actionURL, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if actionURL.Valid {
			n.ActionURL = &actionURL.String
		}
		result = append(result, &n)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CountUnreadNotifications возвращает число непрочитанных уведомлений компании.
func (s *Storage) CountUnreadNotifications(ctx context.Context, companyUID string) (int, error) {
	const op = "storage.CountUnreadNotifications"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var count int
	query := `SELECT COUNT(*) FROM notifications WHERE company_uid = $1 AND is_read = FALSE`
	if err := s.DB.QueryRowContext(ctx, query, companyUID).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

// MarkNotificationRead помечает уведомление прочитанным.
// Возвращает количество обновлённых строк.
func (s *Storage) MarkNotificationRead(ctx context.Context, companyUID string, id int) (int, error) {
	const op = "storage.MarkNotificationRead"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE notifications
			  SET is_read = TRUE
			  WHERE company_uid = $1 AND id = $2`
	res, err := s.DB.ExecContext(ctx, query, companyUID, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(affected), nil
}

// MarkAllNotificationsRead помечает все уведомления компании прочитанными.
func (s *Storage) MarkAllNotificationsRead(ctx context.Context, companyUID string) (int, error) {
	const op = "storage.MarkAllNotificationsRead"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE notifications
			  SET is_read = TRUE
			  WHERE company_uid = $1 AND is_read = FALSE`
	res, err := s.DB.ExecContext(ctx, query, companyUID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(affected), nil
}
