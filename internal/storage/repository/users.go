package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/magabrotheeeer/review-hub/internal/models"
)

// RegisterUser сохраняет нового пользователя в базу данных и возвращает его UID.
func (s *Storage) RegisterUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.RegisterUser"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newID string
	query := `INSERT INTO users (email, username, company_name, password_hash, role,
			      trial_end_date, trial_used, subscription_status)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  RETURNING uid;`
	if err := s.DB.QueryRowContext(ctx, query,
		user.Email, user.Username, user.CompanyName, user.PasswordHash, user.Role,
		user.TrialEndDate, user.TrialUsed, user.SubscriptionStatus).Scan(&newID); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetUserByUsername возвращает пользователя по его username.
func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	const op = "storage.GetUserByUsername"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT uid, email, username, company_name, password_hash, role,
			      trial_end_date, trial_used, subscription_status, created_at
			  FROM users
			  WHERE username = $1`
	return s.scanUser(s.DB.QueryRowContext(ctx, query, username), op)
}

// GetUser возвращает пользователя по его UID.
func (s *Storage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT uid, email, username, company_name, password_hash, role,
			      trial_end_date, trial_used, subscription_status, created_at
			  FROM users
			  WHERE uid = $1`
	return s.scanUser(s.DB.QueryRowContext(ctx, query, userUID), op)
}

func (s *Storage) scanUser(row *sql.Row, op string) (*models.User, error) {
	u := &models.User{}
	var trialEndDate sql.NullTime
	if err := row.Scan(&u.UID, &u.Email, &u.Username, &u.CompanyName, &u.PasswordHash,
		&u.Role, &trialEndDate, &u.TrialUsed, &u.SubscriptionStatus, &u.CreatedAt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if trialEndDate.Valid {
		u.TrialEndDate = &trialEndDate.Time
	}
	// Нормализация словаря статусов: старые записи хранят "trialing".
	if u.SubscriptionStatus == "trialing" {
		u.SubscriptionStatus = models.StatusTrial
	}
	return u, nil
}

// MarkTrialEnded помечает пробный период завершённым: статус ended,
// trial_used взводится. Используется самовосстановлением сверки.
func (s *Storage) MarkTrialEnded(ctx context.Context, userUID string) error {
	const op = "storage.MarkTrialEnded"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET subscription_status = $1,
			      trial_used = TRUE
			  WHERE uid = $2`
	_, err := s.DB.ExecContext(ctx, query, models.StatusEnded, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdateSubscriptionStatus обновляет профильный статус подписки пользователя.
func (s *Storage) UpdateSubscriptionStatus(ctx context.Context, userUID, status string) error {
	const op = "storage.UpdateSubscriptionStatus"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET subscription_status = $1
			  WHERE uid = $2`
	_, err := s.DB.ExecContext(ctx, query, status, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// FindTrialsExpiringToday находит пользователей с истекающим сегодня пробным периодом.
func (s *Storage) FindTrialsExpiringToday(ctx context.Context) ([]*models.User, error) {
	const op = "storage.FindTrialsExpiringToday"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT uid, email, username, company_name, password_hash, role,
			      trial_end_date, trial_used, subscription_status, created_at
			  FROM users
			  WHERE subscription_status = $1
			    AND trial_end_date::DATE = CURRENT_DATE;`
	rows, err := s.DB.QueryContext(ctx, query, models.StatusTrial)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()
	var result []*models.User
	for rows.Next() {
		var u models.User
		var trialEndDate sql.NullTime
		if err = rows.Scan(&u.UID, &u.Email, &u.Username, &u.CompanyName, &u.PasswordHash,
			&u.Role, &trialEndDate, &u.TrialUsed, &u.SubscriptionStatus, &u.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if trialEndDate.Valid {
			u.TrialEndDate = &trialEndDate.Time
		}
		result = append(result, &u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
