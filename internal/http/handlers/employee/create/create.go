// Package create реализует HTTP-обработчик добавления сотрудника.
package create

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/review-hub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/review-hub/internal/http/response"
	"github.com/magabrotheeeer/review-hub/internal/lib/sl"
	"github.com/magabrotheeeer/review-hub/internal/models"
)

// Service описывает интерфейс добавления сотрудников.
type Service interface {
	AddEmployee(ctx context.Context, companyUID string, req models.DummyEmployee) (int, error)
}

// Handler управляет HTTP-запросами добавления сотрудника.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Добавить сотрудника
// @Description Создает сотрудника компании с активным персональным QR-кодом.
// @Tags Employees
// @Accept  json
// @Produce  json
// @Param request body models.DummyEmployee true "Данные сотрудника"
// @Success 200 {object} map[string]any "Идентификатор созданного сотрудника"
// @Failure 400 {object} response.ErrorResponse "Ошибка декодирования запроса"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации данных"
// @Router /employees [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.employee.create"
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

	var req models.DummyEmployee
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to decode request"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		var validateErrs validator.ValidationErrors
		errors.As(err, &validateErrs)
		log.Error("failed to validate request body", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(validateErrs))
		return
	}

	id, err := h.service.AddEmployee(r.Context(), companyUID, req)
	if err != nil {
		log.Error("failed to add employee", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not add employee"))
		return
	}

	log.Info("employee added", slog.Int("employee_id", id))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"employee_id": id}))
}
