// Package checkout оркестрирует выбор тарифа: действующая оплаченная
// подписка отправляется в портал управления, все остальные — на новую
// страницу оплаты. Выбранный тариф персистится до редиректа и
// потребляется при возврате с проверкой платёжной сессии.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/review-hub/internal/billing"
	"github.com/magabrotheeeer/review-hub/internal/lib/sl"
	"github.com/magabrotheeeer/review-hub/internal/metrics"
	"github.com/magabrotheeeer/review-hub/internal/models"
	"github.com/magabrotheeeer/review-hub/internal/services/entitlement"
	"github.com/magabrotheeeer/review-hub/internal/services/session"
)

// Ошибки оркестратора оплаты.
var (
	ErrNotAuthenticated = errors.New("session is missing or expired")
	ErrUnknownPlan      = errors.New("unknown plan")
)

// Виды редиректа.
const (
	KindCheckout = "checkout"
	KindPortal   = "portal"
)

// Redirect адрес, на который нужно отправить пользователя.
type Redirect struct {
	Kind      string `json:"kind"`
	URL       string `json:"url"`
	SessionID string `json:"session_id,omitempty"`
}

// VerifyOutcome результат проверки платёжной сессии после возврата.
type VerifyOutcome struct {
	Success     bool        `json:"success"`
	Message     string      `json:"message,omitempty"`
	PendingPlan models.Plan `json:"pending_plan,omitempty"`
}

// BillingClient вызовы платёжного бэкенда.
type BillingClient interface {
	CreateCheckoutSession(ctx context.Context, req billing.CreateCheckoutRequest) (*billing.CheckoutSession, error)
	CreatePortalSession(ctx context.Context, customerID string) (*billing.PortalSession, error)
	VerifySession(ctx context.Context, sessionID string) (*billing.VerifyResult, error)
}

// EntitlementService нужные оркестратору операции сверки доступа.
type EntitlementService interface {
	Get(ctx context.Context, userUID string) (models.Entitlement, error)
	Refresh(ctx context.Context, userUID string) (models.Entitlement, error)
	GuardCheckout(ctx context.Context, userUID string, plan models.Plan) error
	Invalidate(userUID string)
}

// SessionChecker сообщает состояние сессии пользователя.
type SessionChecker interface {
	State(userUID string) session.State
}

// MarkerStore хранит выбранный тариф между редиректом и возвратом.
type MarkerStore interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// PaymentStore фиксирует подтверждённую подписку и платёж и отдаёт
// историю платежей компании.
type PaymentStore interface {
	UpsertSubscription(ctx context.Context, sub models.Subscription) (int, error)
	InsertPaymentRecord(ctx context.Context, rec models.PaymentRecord) (int, error)
	ListPaymentHistory(ctx context.Context, userUID string, limit, offset int) ([]*models.PaymentRecord, error)
}

const pendingPlanTTL = time.Hour

func pendingPlanKey(userUID string) string { return "pending_plan:" + userUID }

// Service оркестратор оплаты.
type Service struct {
	log          *slog.Logger
	billing      BillingClient
	entitlements EntitlementService
	sessions     SessionChecker
	markers      MarkerStore
	payments     PaymentStore
}

// New создаёт оркестратор оплаты.
func New(log *slog.Logger, billingClient BillingClient, entitlements EntitlementService,
	sessions SessionChecker, markers MarkerStore, payments PaymentStore) *Service {
	return &Service{
		log:          log,
		billing:      billingClient,
		entitlements: entitlements,
		sessions:     sessions,
		markers:      markers,
		payments:     payments,
	}
}

// SelectPlan обрабатывает выбор тарифа. Требуется живая сессия.
// Действующая оплаченная подписка ведёт в портал управления подпиской,
// иначе — создаётся новая платёжная сессия. Тот же тариф при активной
// подписке и отклонённый бэкендом дубль возвращаются типизированной
// CheckoutError.
func (s *Service) SelectPlan(ctx context.Context, userUID string, plan models.Plan) (*Redirect, error) {
	const op = "services.checkout.SelectPlan"

	if !plan.Valid() || plan == models.PlanFree {
		return nil, fmt.Errorf("%s: %w", op, ErrUnknownPlan)
	}

	switch s.sessions.State(userUID) {
	case session.StateValid, session.StateWarning:
	default:
		return nil, fmt.Errorf("%s: %w", op, ErrNotAuthenticated)
	}

	ent, err := s.entitlements.Get(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if ent.Source == models.SourceSubscription && ent.IsActive() {
		if ent.Plan == plan {
			metrics.CheckoutBlocked.WithLabelValues(entitlement.CodeSamePlanSelected).Inc()
			return nil, &entitlement.CheckoutError{
				Code:        entitlement.CodeSamePlanSelected,
				CurrentPlan: ent.Plan,
			}
		}
		portal, err := s.billing.CreatePortalSession(ctx, ent.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return &Redirect{Kind: KindPortal, URL: portal.URL}, nil
	}

	// Свежая проверка по базе страхует от гонки с только что
	// оформленной подпиской.
	if err := s.entitlements.GuardCheckout(ctx, userUID, plan); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.markers.Set(pendingPlanKey(userUID), plan, pendingPlanTTL); err != nil {
		s.log.Warn("failed to persist pending plan", sl.Err(err))
	}

	sess, err := s.billing.CreateCheckoutSession(ctx, billing.CreateCheckoutRequest{
		PlanType: string(plan),
		UserUID:  userUID,
	})
	if err != nil {
		if errors.Is(err, billing.ErrDuplicateSubscription) {
			metrics.CheckoutBlocked.WithLabelValues(entitlement.CodeDuplicateSubscription).Inc()
			return nil, &entitlement.CheckoutError{
				Code:        entitlement.CodeDuplicateSubscription,
				CurrentPlan: ent.Plan,
			}
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Redirect{Kind: KindCheckout, URL: sess.URL, SessionID: sess.SessionID}, nil
}

// VerifySession проверяет платёжную сессию после возврата со страницы
// оплаты. Маркер выбранного тарифа потребляется в любом исходе, успех
// сбрасывает снапшот доступа и запускает свежую сверку.
func (s *Service) VerifySession(ctx context.Context, userUID, sessionID string) (*VerifyOutcome, error) {
	const op = "services.checkout.VerifySession"

	var pending models.Plan
	found, err := s.markers.Get(pendingPlanKey(userUID), &pending)
	if err != nil {
		s.log.Warn("failed to load pending plan", sl.Err(err))
	}
	if found {
		if err := s.markers.Invalidate(pendingPlanKey(userUID)); err != nil {
			s.log.Warn("failed to clear pending plan", sl.Err(err))
		}
	}

	result, err := s.billing.VerifySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	outcome := &VerifyOutcome{Success: result.Success, Message: result.Message}
	if found {
		outcome.PendingPlan = pending
	}

	if result.Success {
		s.recordPayment(ctx, userUID, pending, result)
		s.entitlements.Invalidate(userUID)
		if _, err := s.entitlements.Refresh(ctx, userUID); err != nil {
			s.log.Warn("entitlement refresh after checkout failed", sl.Err(err))
		}
	}

	return outcome, nil
}

// recordPayment фиксирует оформленную подписку и строку истории
// платежей по данным подтверждённой сессии. Тариф берётся из ответа
// бэкенда, маркер выбранного тарифа служит запасным источником.
// Ошибка записи не отменяет успех оплаты: состояние досчитает
// ближайшая сверка.
func (s *Service) recordPayment(ctx context.Context, userUID string, pending models.Plan, result *billing.VerifyResult) {
	plan := models.ParsePlan(result.PlanType)
	if plan == models.PlanFree && pending.Valid() {
		plan = pending
	}

	if _, err := s.payments.UpsertSubscription(ctx, models.Subscription{
		UserUID:          userUID,
		Plan:             plan,
		Status:           models.StatusActive,
		CustomerID:       result.CustomerID,
		SubscriptionID:   result.SubscriptionID,
		CurrentPeriodEnd: result.CurrentPeriodEnd,
	}); err != nil {
		s.log.Error("failed to persist subscription after checkout", sl.Err(err))
	}

	if _, err := s.payments.InsertPaymentRecord(ctx, models.PaymentRecord{
		UserUID:  userUID,
		Amount:   result.Amount,
		Currency: result.Currency,
		Plan:     plan,
		Status:   "succeeded",
	}); err != nil {
		s.log.Error("failed to record payment", sl.Err(err))
	}
}

// ListPayments возвращает страницу истории платежей компании.
func (s *Service) ListPayments(ctx context.Context, userUID string, limit, offset int) ([]*models.PaymentRecord, error) {
	const op = "services.checkout.ListPayments"

	records, err := s.payments.ListPaymentHistory(ctx, userUID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return records, nil
}
