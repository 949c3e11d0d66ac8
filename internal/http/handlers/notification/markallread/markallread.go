// Package markallread реализует HTTP-обработчик массовой отметки уведомлений.
package markallread

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/review-hub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/review-hub/internal/http/response"
	"github.com/magabrotheeeer/review-hub/internal/lib/sl"
)

// Service описывает интерфейс массовой отметки уведомлений.
type Service interface {
	MarkAllRead(ctx context.Context, companyUID string) (int, error)
}

// Handler управляет HTTP-запросами массовой отметки уведомлений.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Отметить все уведомления прочитанными
// @Tags Notifications
// @Produce  json
// @Success 200 {object} map[string]any "Количество отмеченных уведомлений"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Router /notifications/read-all [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.notification.markallread"
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

	marked, err := h.service.MarkAllRead(r.Context(), companyUID)
	if err != nil {
		log.Error("failed to mark notifications as read", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not mark notifications as read"))
		return
	}

	log.Info("notifications marked as read", slog.Int("count", marked))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"marked": marked}))
}
