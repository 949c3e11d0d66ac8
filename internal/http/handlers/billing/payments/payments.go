// Package payments реализует HTTP-обработчик истории платежей компании.
package payments

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/review-hub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/review-hub/internal/http/response"
	"github.com/magabrotheeeer/review-hub/internal/lib/sl"
	"github.com/magabrotheeeer/review-hub/internal/models"
)

// Service описывает интерфейс чтения истории платежей.
type Service interface {
	ListPayments(ctx context.Context, userUID string, limit, offset int) ([]*models.PaymentRecord, error)
}

// Handler управляет HTTP-запросами истории платежей.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Получить историю платежей
// @Description Возвращает страницу истории платежей компании.
// @Tags Billing
// @Produce  json
// @Param limit query int false "Размер страницы"
// @Param offset query int false "Смещение"
// @Success 200 {object} map[string]any "История платежей"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Router /billing/payments [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.payments"
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

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}

	records, err := h.service.ListPayments(r.Context(), userUID, limit, offset)
	if err != nil {
		log.Error("failed to list payment history", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list payment history"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"payments": records,
	}))
}
