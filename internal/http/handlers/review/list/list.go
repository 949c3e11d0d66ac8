// Package list реализует HTTP-обработчик списка отзывов компании.
package list

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/review-hub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/review-hub/internal/http/response"
	"github.com/magabrotheeeer/review-hub/internal/lib/sl"
	"github.com/magabrotheeeer/review-hub/internal/models"
	reviewservice "github.com/magabrotheeeer/review-hub/internal/services/review"
)

// Service описывает интерфейс чтения отзывов.
type Service interface {
	List(ctx context.Context, companyUID, status string, limit, offset int) ([]*models.Review, error)
	PendingCount(ctx context.Context, companyUID string) (int, error)
}

// Handler управляет HTTP-запросами списка отзывов.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Получить отзывы компании
// @Description Возвращает отзывы с необязательным фильтром по статусу и количеством ожидающих модерации.
// @Tags Reviews
// @Produce  json
// @Param status query string false "Фильтр по статусу: pending, approved, rejected"
// @Param limit query int false "Размер страницы"
// @Param offset query int false "Смещение"
// @Success 200 {object} map[string]any "Отзывы компании"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 422 {object} response.ErrorResponse "Неизвестный статус"
// @Router /reviews [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.review.list"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	companyUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || companyUID == "" {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	status := r.URL.Query().Get("status")
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}

	reviews, err := h.service.List(r.Context(), companyUID, status, limit, offset)
	if err != nil {
		if errors.Is(err, reviewservice.ErrInvalidStatus) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error("unknown review status"))
			return
		}
		log.Error("failed to list reviews", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list reviews"))
		return
	}

	pending, err := h.service.PendingCount(r.Context(), companyUID)
	if err != nil {
		log.Error("failed to count pending reviews", sl.Err(err))
		pending = 0
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"reviews":       reviews,
		"pending_count": pending,
	}))
}
