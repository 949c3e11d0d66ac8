package selectplan

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/review-hub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/review-hub/internal/models"
	"github.com/magabrotheeeer/review-hub/internal/services/checkout"
	"github.com/magabrotheeeer/review-hub/internal/services/entitlement"
)

type CheckoutServiceMock struct {
	mock.Mock
}

func (m *CheckoutServiceMock) SelectPlan(ctx context.Context, userUID string, plan models.Plan) (*checkout.Redirect, error) {
	args := m.Called(ctx, userUID, plan)
	redirect, _ := args.Get(0).(*checkout.Redirect)
	return redirect, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestSelectPlanHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		uid            string
		requestBody    interface{}
		mockRedirect   *checkout.Redirect
		mockErr        error
		wantStatusCode int
		wantError      string
		wantStatus     string
		wantData       map[string]any
	}{
		{
			name:           "новая платёжная сессия",
			uid:            "u1",
			requestBody:    Request{Plan: "professional"},
			mockRedirect:   &checkout.Redirect{Kind: checkout.KindCheckout, URL: "https://pay.example/cs_1", SessionID: "cs_1"},
			wantStatusCode: http.StatusOK,
			wantStatus:     "OK",
		},
		{
			name:        "тариф уже активен",
			uid:         "u1",
			requestBody: Request{Plan: "professional"},
			mockErr: &entitlement.CheckoutError{
				Code:        entitlement.CodeSamePlanSelected,
				CurrentPlan: models.PlanProfessional,
			},
			wantStatusCode: http.StatusConflict,
			wantError:      entitlement.CodeSamePlanSelected,
			wantStatus:     "Error",
			wantData:       map[string]any{"current_plan": "professional"},
		},
		{
			name:           "сессия просрочена",
			uid:            "u1",
			requestBody:    Request{Plan: "starter"},
			mockErr:        checkout.ErrNotAuthenticated,
			wantStatusCode: http.StatusUnauthorized,
			wantError:      "session is missing or expired",
			wantStatus:     "Error",
		},
		{
			name:           "неизвестный тариф",
			uid:            "u1",
			requestBody:    Request{Plan: "platinum"},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantStatus:     "Error",
		},
		{
			name:           "нет uid в контексте",
			uid:            "",
			requestBody:    Request{Plan: "starter"},
			wantStatusCode: http.StatusUnauthorized,
			wantError:      "unauthorized",
			wantStatus:     "Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			serviceMock := new(CheckoutServiceMock)
			handler := New(newNoopLogger(), serviceMock)

			if tt.mockRedirect != nil || tt.mockErr != nil {
				serviceMock.On("SelectPlan", mock.Anything, tt.uid, models.Plan(tt.requestBody.(Request).Plan)).
					Return(tt.mockRedirect, tt.mockErr).Once()
			}

			bodyBytes, err := json.Marshal(tt.requestBody)
			if err != nil {
				t.Fatal(err)
			}

			req := httptest.NewRequest(http.MethodPost, "/billing/select-plan", bytes.NewReader(bodyBytes))
			ctx := context.WithValue(req.Context(), middleware.RequestIDKey, "reqid123")
			if tt.uid != "" {
				ctx = context.WithValue(ctx, middlewarectx.UserUID, tt.uid)
			}
			req = req.WithContext(ctx)

			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)

			var got map[string]any
			err = json.NewDecoder(rec.Body).Decode(&got)
			assert.NoError(t, err)

			assert.Equal(t, tt.wantStatus, got["status"])

			if tt.wantError != "" {
				errStr, ok := got["error"].(string)
				assert.True(t, ok)
				assert.Equal(t, tt.wantError, errStr)
			}

			if tt.wantData != nil {
				data, ok := got["data"].(map[string]any)
				assert.True(t, ok)
				for k, v := range tt.wantData {
					assert.Equal(t, v, data[k])
				}
			}

			serviceMock.AssertExpectations(t)
		})
	}
}
