// Package status реализует HTTP-обработчик чтения состояния доступа
// компании вместе с текущим состоянием сессии.
package status

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/review-hub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/review-hub/internal/http/response"
	"github.com/magabrotheeeer/review-hub/internal/lib/sl"
	"github.com/magabrotheeeer/review-hub/internal/models"
	"github.com/magabrotheeeer/review-hub/internal/services/session"
)

// Service описывает интерфейс чтения состояния доступа.
type Service interface {
	Get(ctx context.Context, userUID string) (models.Entitlement, error)
}

// SessionStates сообщает состояние сессии пользователя.
type SessionStates interface {
	State(userUID string) session.State
}

// Handler управляет HTTP-запросами чтения состояния доступа.
type Handler struct {
	log      *slog.Logger
	service  Service
	sessions SessionStates
}

// New создает новый Handler с переданными логгером и сервисами.
func New(log *slog.Logger, service Service, sessions SessionStates) *Handler {
	return &Handler{log: log, service: service, sessions: sessions}
}

// ServeHTTP godoc
// @Summary Получить состояние доступа
// @Description Возвращает нормализованное состояние доступа компании и текущее состояние сессии.
// @Tags Entitlement
// @Produce  json
// @Success 200 {object} map[string]any "Состояние доступа"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /entitlement [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.entitlement.status"
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

	ent, err := h.service.Get(r.Context(), userUID)
	if err != nil {
		log.Error("failed to get entitlement", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not get entitlement"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"entitlement":   ent,
		"session_state": h.sessions.State(userUID),
	}))
}
