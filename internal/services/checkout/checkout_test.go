package checkout

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/review-hub/internal/billing"
	"github.com/magabrotheeeer/review-hub/internal/models"
	"github.com/magabrotheeeer/review-hub/internal/services/entitlement"
	"github.com/magabrotheeeer/review-hub/internal/services/session"
)

type BillingMock struct{ mock.Mock }

func (m *BillingMock) CreateCheckoutSession(ctx context.Context, req billing.CreateCheckoutRequest) (*billing.CheckoutSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.CheckoutSession), args.Error(1)
}
func (m *BillingMock) CreatePortalSession(ctx context.Context, customerID string) (*billing.PortalSession, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.PortalSession), args.Error(1)
}
func (m *BillingMock) VerifySession(ctx context.Context, sessionID string) (*billing.VerifyResult, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.VerifyResult), args.Error(1)
}

type EntitlementMock struct{ mock.Mock }

func (m *EntitlementMock) Get(ctx context.Context, userUID string) (models.Entitlement, error) {
	args := m.Called(ctx, userUID)
	return args.Get(0).(models.Entitlement), args.Error(1)
}
func (m *EntitlementMock) Refresh(ctx context.Context, userUID string) (models.Entitlement, error) {
	args := m.Called(ctx, userUID)
	return args.Get(0).(models.Entitlement), args.Error(1)
}
func (m *EntitlementMock) GuardCheckout(ctx context.Context, userUID string, plan models.Plan) error {
	return m.Called(ctx, userUID, plan).Error(0)
}
func (m *EntitlementMock) Invalidate(userUID string) {
	m.Called(userUID)
}

type SessionMock struct{ mock.Mock }

func (m *SessionMock) State(userUID string) session.State {
	return m.Called(userUID).Get(0).(session.State)
}

type MarkerMock struct{ mock.Mock }

func (m *MarkerMock) Get(key string, result any) (bool, error) {
	args := m.Called(key, result)
	return args.Bool(0), args.Error(1)
}
func (m *MarkerMock) Set(key string, value any, expiration time.Duration) error {
	return m.Called(key, value, expiration).Error(0)
}
func (m *MarkerMock) Invalidate(key string) error {
	return m.Called(key).Error(0)
}

type PaymentStoreMock struct{ mock.Mock }

func (m *PaymentStoreMock) UpsertSubscription(ctx context.Context, sub models.Subscription) (int, error) {
	args := m.Called(ctx, sub)
	return args.Int(0), args.Error(1)
}
func (m *PaymentStoreMock) InsertPaymentRecord(ctx context.Context, rec models.PaymentRecord) (int, error) {
	args := m.Called(ctx, rec)
	return args.Int(0), args.Error(1)
}
func (m *PaymentStoreMock) ListPaymentHistory(ctx context.Context, userUID string, limit, offset int) ([]*models.PaymentRecord, error) {
	args := m.Called(ctx, userUID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PaymentRecord), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func activeEnt(plan models.Plan) models.Entitlement {
	end := time.Now().Add(30 * 24 * time.Hour)
	return models.Entitlement{
		Source: models.SourceSubscription, Status: models.StatusActive,
		Plan: plan, CustomerID: "cus_1", CurrentPeriodEnd: &end,
	}
}

func trialEnt() models.Entitlement {
	end := time.Now().Add(7 * 24 * time.Hour)
	return models.Entitlement{
		Source: models.SourceTrial, Status: models.StatusTrial,
		Plan: models.PlanProfessional, TrialEnd: &end,
	}
}

func TestSelectPlan(t *testing.T) {
	tests := []struct {
		name       string
		plan       models.Plan
		state      session.State
		ent        models.Entitlement
		setupMocks func(b *BillingMock, e *EntitlementMock, mk *MarkerMock)
		wantKind   string
		wantErr    error
		wantCode   string
	}{
		{
			name:  "активная подписка на другой тариф ведёт в портал",
			plan:  models.PlanProfessional,
			state: session.StateValid,
			ent:   activeEnt(models.PlanStarter),
			setupMocks: func(b *BillingMock, _ *EntitlementMock, _ *MarkerMock) {
				b.On("CreatePortalSession", mock.Anything, "cus_1").
					Return(&billing.PortalSession{URL: "https://billing.example/portal"}, nil).Once()
			},
			wantKind: KindPortal,
		},
		{
			name:     "тот же тариф при активной подписке блокируется",
			plan:     models.PlanStarter,
			state:    session.StateValid,
			ent:      activeEnt(models.PlanStarter),
			wantCode: entitlement.CodeSamePlanSelected,
		},
		{
			name:  "пробный период ведёт на оплату любого тарифа",
			plan:  models.PlanStarter,
			state: session.StateValid,
			ent:   trialEnt(),
			setupMocks: func(b *BillingMock, e *EntitlementMock, mk *MarkerMock) {
				e.On("GuardCheckout", mock.Anything, "u1", models.PlanStarter).Return(nil).Once()
				mk.On("Set", "pending_plan:u1", models.PlanStarter, mock.Anything).Return(nil).Once()
				b.On("CreateCheckoutSession", mock.Anything, billing.CreateCheckoutRequest{
					PlanType: "starter", UserUID: "u1",
				}).Return(&billing.CheckoutSession{SessionID: "cs_1", URL: "https://pay.example/cs_1"}, nil).Once()
			},
			wantKind: KindCheckout,
		},
		{
			name:  "отклонённый бэкендом дубль возвращает типизированную ошибку",
			plan:  models.PlanStarter,
			state: session.StateValid,
			ent:   trialEnt(),
			setupMocks: func(b *BillingMock, e *EntitlementMock, mk *MarkerMock) {
				e.On("GuardCheckout", mock.Anything, "u1", models.PlanStarter).Return(nil).Once()
				mk.On("Set", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
				b.On("CreateCheckoutSession", mock.Anything, mock.Anything).
					Return(nil, billing.ErrDuplicateSubscription).Once()
			},
			wantCode: entitlement.CodeDuplicateSubscription,
		},
		{
			name:    "просроченная сессия отклоняется",
			plan:    models.PlanStarter,
			state:   session.StateExpired,
			wantErr: ErrNotAuthenticated,
		},
		{
			name:    "неизвестный тариф отклоняется",
			plan:    models.Plan("platinum"),
			state:   session.StateValid,
			wantErr: ErrUnknownPlan,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			billingMock := new(BillingMock)
			entMock := new(EntitlementMock)
			sessMock := new(SessionMock)
			markerMock := new(MarkerMock)

			sessMock.On("State", "u1").Return(tt.state).Maybe()
			entMock.On("Get", mock.Anything, "u1").Return(tt.ent, nil).Maybe()
			if tt.setupMocks != nil {
				tt.setupMocks(billingMock, entMock, markerMock)
			}

			svc := New(newNoopLogger(), billingMock, entMock, sessMock, markerMock,
				new(PaymentStoreMock))
			redirect, err := svc.SelectPlan(context.Background(), "u1", tt.plan)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			if tt.wantCode != "" {
				var checkoutErr *entitlement.CheckoutError
				require.ErrorAs(t, err, &checkoutErr)
				assert.Equal(t, tt.wantCode, checkoutErr.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, redirect.Kind)
			assert.NotEmpty(t, redirect.URL)
			billingMock.AssertExpectations(t)
		})
	}
}

func TestVerifySession(t *testing.T) {
	t.Run("успех потребляет маркер, фиксирует платёж и запускает сверку", func(t *testing.T) {
		billingMock := new(BillingMock)
		entMock := new(EntitlementMock)
		markerMock := new(MarkerMock)
		paymentsMock := new(PaymentStoreMock)

		periodEnd := time.Now().Add(30 * 24 * time.Hour)
		markerMock.On("Get", "pending_plan:u1", mock.Anything).Run(func(args mock.Arguments) {
			*args.Get(1).(*models.Plan) = models.PlanStarter
		}).Return(true, nil).Once()
		markerMock.On("Invalidate", "pending_plan:u1").Return(nil).Once()
		billingMock.On("VerifySession", mock.Anything, "cs_1").
			Return(&billing.VerifyResult{
				Success: true, PlanType: "starter",
				CustomerID: "cus_1", SubscriptionID: "sub_1",
				CurrentPeriodEnd: &periodEnd,
				Amount:           1990, Currency: "rub",
			}, nil).Once()
		paymentsMock.On("UpsertSubscription", mock.Anything, mock.MatchedBy(func(sub models.Subscription) bool {
			return sub.UserUID == "u1" && sub.Plan == models.PlanStarter &&
				sub.Status == models.StatusActive &&
				sub.CustomerID == "cus_1" && sub.SubscriptionID == "sub_1"
		})).Return(1, nil).Once()
		paymentsMock.On("InsertPaymentRecord", mock.Anything, mock.MatchedBy(func(rec models.PaymentRecord) bool {
			return rec.UserUID == "u1" && rec.Plan == models.PlanStarter &&
				rec.Amount == 1990 && rec.Currency == "rub" && rec.Status == "succeeded"
		})).Return(1, nil).Once()
		entMock.On("Invalidate", "u1").Once()
		entMock.On("Refresh", mock.Anything, "u1").
			Return(activeEnt(models.PlanStarter), nil).Once()

		svc := New(newNoopLogger(), billingMock, entMock, new(SessionMock), markerMock, paymentsMock)
		outcome, err := svc.VerifySession(context.Background(), "u1", "cs_1")
		require.NoError(t, err)
		assert.True(t, outcome.Success)
		assert.Equal(t, models.PlanStarter, outcome.PendingPlan)
		markerMock.AssertExpectations(t)
		entMock.AssertExpectations(t)
		paymentsMock.AssertExpectations(t)
	})

	t.Run("без тарифа в ответе бэкенда берётся отложенный маркер", func(t *testing.T) {
		billingMock := new(BillingMock)
		entMock := new(EntitlementMock)
		markerMock := new(MarkerMock)
		paymentsMock := new(PaymentStoreMock)

		markerMock.On("Get", "pending_plan:u1", mock.Anything).Run(func(args mock.Arguments) {
			*args.Get(1).(*models.Plan) = models.PlanProfessional
		}).Return(true, nil).Once()
		markerMock.On("Invalidate", "pending_plan:u1").Return(nil).Once()
		billingMock.On("VerifySession", mock.Anything, "cs_1").
			Return(&billing.VerifyResult{Success: true}, nil).Once()
		paymentsMock.On("UpsertSubscription", mock.Anything, mock.MatchedBy(func(sub models.Subscription) bool {
			return sub.Plan == models.PlanProfessional
		})).Return(1, nil).Once()
		paymentsMock.On("InsertPaymentRecord", mock.Anything, mock.Anything).Return(1, nil).Once()
		entMock.On("Invalidate", "u1").Once()
		entMock.On("Refresh", mock.Anything, "u1").
			Return(activeEnt(models.PlanProfessional), nil).Once()

		svc := New(newNoopLogger(), billingMock, entMock, new(SessionMock), markerMock, paymentsMock)
		outcome, err := svc.VerifySession(context.Background(), "u1", "cs_1")
		require.NoError(t, err)
		assert.True(t, outcome.Success)
		paymentsMock.AssertExpectations(t)
	})

	t.Run("отмена тоже потребляет маркер, но сверку не запускает", func(t *testing.T) {
		billingMock := new(BillingMock)
		entMock := new(EntitlementMock)
		markerMock := new(MarkerMock)

		markerMock.On("Get", "pending_plan:u1", mock.Anything).Run(func(args mock.Arguments) {
			*args.Get(1).(*models.Plan) = models.PlanStarter
		}).Return(true, nil).Once()
		markerMock.On("Invalidate", "pending_plan:u1").Return(nil).Once()
		billingMock.On("VerifySession", mock.Anything, "cs_1").
			Return(&billing.VerifyResult{Success: false, Message: "canceled"}, nil).Once()

		paymentsMock := new(PaymentStoreMock)
		svc := New(newNoopLogger(), billingMock, entMock, new(SessionMock), markerMock, paymentsMock)
		outcome, err := svc.VerifySession(context.Background(), "u1", "cs_1")
		require.NoError(t, err)
		assert.False(t, outcome.Success)
		entMock.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
		paymentsMock.AssertNotCalled(t, "InsertPaymentRecord", mock.Anything, mock.Anything)
		markerMock.AssertExpectations(t)
	})
}

func TestListPayments(t *testing.T) {
	paymentsMock := new(PaymentStoreMock)
	records := []*models.PaymentRecord{
		{ID: 2, UserUID: "u1", Amount: 1990, Currency: "rub", Plan: models.PlanStarter, Status: "succeeded"},
		{ID: 1, UserUID: "u1", Amount: 990, Currency: "rub", Plan: models.PlanStarter, Status: "succeeded"},
	}
	paymentsMock.On("ListPaymentHistory", mock.Anything, "u1", 20, 0).Return(records, nil).Once()

	svc := New(newNoopLogger(), new(BillingMock), new(EntitlementMock), new(SessionMock),
		new(MarkerMock), paymentsMock)
	got, err := svc.ListPayments(context.Background(), "u1", 20, 0)
	require.NoError(t, err)
	assert.Equal(t, records, got)
	paymentsMock.AssertExpectations(t)
}
