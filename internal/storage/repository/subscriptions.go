package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/review-hub/internal/models"
)

// GetSubscription возвращает запись об оплаченной подписке пользователя.
// Возвращает (nil, nil), если подписки нет.
func (s *Storage) GetSubscription(ctx context.Context, userUID string) (*models.Subscription, error) {
	const op = "storage.GetSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, plan, status, customer_id, subscription_id,
			      current_period_end, created_at, updated_at
			  FROM subscriptions
			  WHERE user_uid = $1
			  ORDER BY updated_at DESC
			  LIMIT 1`
	sub := &models.Subscription{}
	var plan string
	var periodEnd sql.NullTime
	row := s.DB.QueryRowContext(ctx, query, userUID)
	if err := row.Scan(&sub.ID, &sub.UserUID, &plan, &sub.Status, &sub.CustomerID,
		&sub.SubscriptionID, &periodEnd, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sub.Plan = models.ParsePlan(plan)
	if periodEnd.Valid {
		sub.CurrentPeriodEnd = &periodEnd.Time
	}
	return sub, nil
}

// UpsertSubscription создаёт или обновляет запись подписки пользователя
// по идентификатору подписки платёжной системы.
func (s *Storage) UpsertSubscription(ctx context.Context, sub models.Subscription) (int, error) {
	const op = "storage.UpsertSubscription"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var id int
	query := `INSERT INTO subscriptions (user_uid, plan, status, customer_id,
			      subscription_id, current_period_end)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  ON CONFLICT (subscription_id) DO UPDATE
			  SET plan = EXCLUDED.plan,
			      status = EXCLUDED.status,
			      current_period_end = EXCLUDED.current_period_end,
			      updated_at = NOW()
			  RETURNING id;`
	if err := s.DB.QueryRowContext(ctx, query, sub.UserUID, string(sub.Plan), sub.Status,
		sub.CustomerID, sub.SubscriptionID, sub.CurrentPeriodEnd).Scan(&id); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// InsertPaymentRecord добавляет строку в историю платежей.
func (s *Storage) InsertPaymentRecord(ctx context.Context, rec models.PaymentRecord) (int, error) {
	const op = "storage.InsertPaymentRecord"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var id int
	query := `INSERT INTO payment_history (user_uid, amount, currency, plan, status)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING id;`
	if err := s.DB.QueryRowContext(ctx, query, rec.UserUID, rec.Amount, rec.Currency,
		string(rec.Plan), rec.Status).Scan(&id); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// ListPaymentHistory возвращает историю платежей пользователя с пагинацией.
func (s *Storage) ListPaymentHistory(ctx context.Context, userUID string, limit, offset int) ([]*models.PaymentRecord, error) {
	const op = "storage.ListPaymentHistory"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, amount, currency, plan, status, created_at
			  FROM payment_history
			  WHERE user_uid = $1
			  ORDER BY created_at DESC
			  LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, userUID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()
	var result []*models.PaymentRecord
	for rows.Next() {
		var rec models.PaymentRecord
		var plan string
		if err = rows.Scan(&rec.ID, &rec.UserUID, &rec.Amount, &rec.Currency,
			&plan, &rec.Status, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		rec.Plan = models.ParsePlan(plan)
		result = append(result, &rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
