// Package list реализует HTTP-обработчик списка сотрудников компании.
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

// Service описывает интерфейс чтения сотрудников.
type Service interface {
	List(ctx context.Context, companyUID string, limit, offset int) ([]*models.Employee, error)
}

// Handler управляет HTTP-запросами списка сотрудников.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Получить сотрудников компании
// @Description Возвращает сотрудников компании вместе с состоянием их QR-кодов.
// @Tags Employees
// @Produce  json
// @Param limit query int false "Размер страницы"
// @Param offset query int false "Смещение"
// @Success 200 {object} map[string]any "Сотрудники компании"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Router /employees [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.employee.list"
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

	employees, err := h.service.List(r.Context(), companyUID, limit, offset)
	if err != nil {
		log.Error("failed to list employees", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list employees"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{"employees": employees}))
}
