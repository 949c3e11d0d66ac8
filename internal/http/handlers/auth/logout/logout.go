// Package logout реализует HTTP-обработчик выхода из учётной записи.
// Локальная очистка сессии выполняется безусловно, поэтому выход всегда
// отвечает успехом.
package logout

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/review-hub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/review-hub/internal/http/response"
)

// Service описывает интерфейс завершения сессии.
type Service interface {
	SignOut(ctx context.Context, userUID string)
}

// Handler управляет HTTP-запросами на выход.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Выйти из учётной записи
// @Description Завершает сессию и очищает её персистентные маркеры.
// @Tags Auth
// @Produce  json
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Router /logout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.logout"
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

	h.service.SignOut(r.Context(), userUID)

	log.Info("user signed out", slog.String("uid", userUID))
	render.JSON(w, r, response.StatusOKWithData(nil))
}
