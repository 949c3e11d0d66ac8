// Package verify реализует HTTP-обработчик проверки платёжной сессии
// после возврата со страницы оплаты.
package verify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/review-hub/internal/billing"
	"github.com/magabrotheeeer/review-hub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/review-hub/internal/http/response"
	"github.com/magabrotheeeer/review-hub/internal/lib/sl"
	"github.com/magabrotheeeer/review-hub/internal/services/checkout"
)

// Request тело запроса проверки платёжной сессии.
type Request struct {
	SessionID string `json:"session_id" validate:"required"`
}

// Service описывает интерфейс проверки платёжной сессии.
type Service interface {
	VerifySession(ctx context.Context, userUID, sessionID string) (*checkout.VerifyOutcome, error)
}

// Handler управляет HTTP-запросами проверки платёжной сессии.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Проверить платёжную сессию
// @Description Проверяет результат оплаты и потребляет маркер выбранного тарифа.
// @Tags Billing
// @Accept  json
// @Produce  json
// @Param request body Request true "Идентификатор платёжной сессии"
// @Success 200 {object} map[string]any "Результат проверки"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 504 {object} response.ErrorResponse "Платёжный бэкенд не ответил"
// @Router /billing/verify-session [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.verify"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	outcome, err := h.service.VerifySession(r.Context(), userUID, req.SessionID)
	if err != nil {
		if errors.Is(err, billing.ErrTimeout) {
			log.Error("billing backend timed out", sl.Err(err))
			w.WriteHeader(http.StatusGatewayTimeout)
			render.JSON(w, r, response.Error("billing backend timed out"))
			return
		}
		log.Error("failed to verify session", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not verify session"))
		return
	}

	log.Info("session verified", slog.String("uid", userUID),
		slog.Bool("success", outcome.Success))
	render.JSON(w, r, response.StatusOKWithData(outcome))
}
