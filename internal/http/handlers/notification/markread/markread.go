// Package markread реализует HTTP-обработчик отметки уведомления прочитанным.
package markread

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/review-hub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/review-hub/internal/http/response"
	"github.com/magabrotheeeer/review-hub/internal/lib/sl"
	"github.com/magabrotheeeer/review-hub/internal/services/notification"
)

// Service описывает интерфейс отметки уведомлений.
type Service interface {
	MarkRead(ctx context.Context, companyUID string, id int) error
}

// Handler управляет HTTP-запросами отметки уведомления.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Отметить уведомление прочитанным
// @Tags Notifications
// @Produce  json
// @Param id path int true "Идентификатор уведомления"
// @Success 200 {object} response.Response "Уведомление отмечено"
// @Failure 404 {object} response.ErrorResponse "Уведомление не найдено"
// @Router /notifications/{id}/read [patch]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.notification.markread"
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

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		log.Error("invalid notification id", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid notification id"))
		return
	}

	if err := h.service.MarkRead(r.Context(), companyUID, id); err != nil {
		if errors.Is(err, notification.ErrNotificationNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("notification not found"))
			return
		}
		log.Error("failed to mark notification as read", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not mark notification as read"))
		return
	}

	render.JSON(w, r, response.Response{Status: response.StatusOK})
}
