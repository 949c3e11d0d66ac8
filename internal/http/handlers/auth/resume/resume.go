// Package resume реализует HTTP-обработчик перепроверки сессии после
// возвращения пользователя в приложение.
package resume

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/review-hub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/review-hub/internal/http/response"
	"github.com/magabrotheeeer/review-hub/internal/lib/sl"
	"github.com/magabrotheeeer/review-hub/internal/services/session"
)

// Service описывает интерфейс перепроверки сессии.
type Service interface {
	Resume(ctx context.Context, userUID, token string) (session.State, error)
}

// Handler управляет HTTP-запросами перепроверки сессии.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Перепроверить сессию
// @Description Перепроверяет сессию после возвращения в приложение. Долгое
// отсутствие активности завершает сессию, расхождение отпечатка с валидным
// токеном пересинхронизируется.
// @Tags Auth
// @Produce  json
// @Success 200 {object} map[string]any "Текущее состояние сессии"
// @Failure 401 {object} response.ErrorResponse "Сессия завершена"
// @Router /session/resume [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.resume"
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

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	state, err := h.service.Resume(r.Context(), userUID, token)
	if err != nil {
		log.Error("failed to resume session", sl.Err(err))
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("session expired"))
		return
	}

	log.Info("session resumed", slog.String("uid", userUID), slog.String("state", string(state)))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"state": state,
	}))
}
