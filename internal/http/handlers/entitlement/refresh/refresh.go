// Package refresh реализует HTTP-обработчик принудительной сверки
// состояния доступа. Повторные запросы внутри окна кулдауна отдают
// последний результат без похода в базу.
package refresh

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/review-hub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/review-hub/internal/http/response"
	"github.com/magabrotheeeer/review-hub/internal/lib/retry"
	"github.com/magabrotheeeer/review-hub/internal/lib/sl"
	"github.com/magabrotheeeer/review-hub/internal/models"
)

// Service описывает интерфейс сверки состояния доступа.
type Service interface {
	Refresh(ctx context.Context, userUID string) (models.Entitlement, error)
}

// Handler управляет HTTP-запросами сверки состояния доступа.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Пересчитать состояние доступа
// @Description Запускает сверку состояния доступа с базой. В офлайне возвращает 503.
// @Tags Entitlement
// @Produce  json
// @Success 200 {object} map[string]any "Свежее состояние доступа"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 503 {object} response.ErrorResponse "Сеть недоступна"
// @Router /entitlement/refresh [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.entitlement.refresh"
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

	ent, err := h.service.Refresh(r.Context(), userUID)
	if err != nil {
		if errors.Is(err, retry.ErrOffline) {
			log.Info("refresh skipped, client is offline")
			w.WriteHeader(http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error("service is offline"))
			return
		}
		log.Error("failed to refresh entitlement", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not refresh entitlement"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"entitlement": ent,
	}))
}
