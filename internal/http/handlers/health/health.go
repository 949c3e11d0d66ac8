// Package health реализует HTTP-обработчик проверки готовности сервиса.
package health

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/review-hub/internal/http/response"
	"github.com/magabrotheeeer/review-hub/internal/lib/sl"
)

// Checker проверяет готовность зависимостей сервиса.
type Checker func() error

// Handler управляет HTTP-запросами проверки готовности.
type Handler struct {
	log   *slog.Logger
	check Checker
}

// New создает новый Handler с переданными логгером и проверкой.
func New(log *slog.Logger, check Checker) *Handler {
	return &Handler{log: log, check: check}
}

// ServeHTTP godoc
// @Summary Проверка готовности сервиса
// @Tags Health
// @Produce  json
// @Success 200 {object} map[string]any "Сервис готов"
// @Failure 503 {object} response.ErrorResponse "База данных недоступна"
// @Router /health [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"

	if err := h.check(); err != nil {
		h.log.Error("health check failed", slog.String("op", op), sl.Err(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("database is not ready"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{"status": "ok"}))
}
