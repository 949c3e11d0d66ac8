// Package list реализует HTTP-обработчик списка уведомлений.
package list

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

// Service описывает интерфейс чтения уведомлений.
type Service interface {
	List(ctx context.Context, companyUID string, limit, offset int) ([]*models.Notification, error)
	UnreadCount(ctx context.Context, companyUID string) (int, error)
}

// Handler управляет HTTP-запросами списка уведомлений.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Получить уведомления
// @Description Возвращает уведомления компании и количество непрочитанных.
// @Tags Notifications
// @Produce  json
// @Param limit query int false "Размер страницы"
// @Param offset query int false "Смещение"
// @Success 200 {object} map[string]any "Уведомления компании"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Router /notifications [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.notification.list"
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

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}

	notifications, err := h.service.List(r.Context(), companyUID, limit, offset)
	if err != nil {
		log.Error("failed to list notifications", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list notifications"))
		return
	}

	unread, err := h.service.UnreadCount(r.Context(), companyUID)
	if err != nil {
		log.Error("failed to count unread notifications", sl.Err(err))
		unread = 0
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"notifications": notifications,
		"unread_count":  unread,
	}))
}
