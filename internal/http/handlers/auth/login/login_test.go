package login

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

	"github.com/magabrotheeeer/review-hub/internal/models"
	"github.com/magabrotheeeer/review-hub/internal/services/session"
)

type SessionServiceMock struct {
	mock.Mock
}

func (m *SessionServiceMock) Login(ctx context.Context, req models.DummyLogin) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestLoginHandler_ServeHTTP(t *testing.T) {
	serviceMock := new(SessionServiceMock)
	logger := newNoopLogger()

	handler := New(logger, serviceMock)

	tests := []struct {
		name           string
		requestBody    interface{}
		mockToken      string
		mockErr        error
		wantStatusCode int
		wantData       map[string]any
		wantError      string
		wantStatus     string
	}{
		{
			name:           "успешный вход",
			requestBody:    models.DummyLogin{Username: "company1", Password: "password123"},
			mockToken:      "tok",
			mockErr:        nil,
			wantStatusCode: http.StatusOK,
			wantData:       map[string]any{"token": "tok"},
			wantStatus:     "OK",
		},
		{
			name:           "некорректный JSON",
			requestBody:    "not a json",
			wantStatusCode: http.StatusBadRequest,
			wantError:      "invalid request body",
			wantStatus:     "Error",
		},
		{
			name:           "нет пароля",
			requestBody:    models.DummyLogin{Username: "company1"},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantError:      "field Password is a required field",
			wantStatus:     "Error",
		},
		{
			name:           "неверные учётные данные",
			requestBody:    models.DummyLogin{Username: "company1", Password: "wrongpass"},
			mockErr:        session.ErrInvalidCredentials,
			wantStatusCode: http.StatusUnauthorized,
			wantError:      "invalid username or password",
			wantStatus:     "Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			serviceMock.ExpectedCalls = nil
			serviceMock.Calls = nil

			if tt.mockToken != "" || tt.mockErr != nil {
				serviceMock.On("Login", mock.Anything, tt.requestBody.(models.DummyLogin)).
					Return(tt.mockToken, tt.mockErr).Once()
			}

			var bodyBytes []byte
			var err error
			switch v := tt.requestBody.(type) {
			case string:
				bodyBytes = []byte(v)
			default:
				bodyBytes, err = json.Marshal(tt.requestBody)
				if err != nil {
					t.Fatal(err)
				}
			}

			req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(bodyBytes))
			req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "reqid123"))

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
			} else {
				assert.Nil(t, got["error"])
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
