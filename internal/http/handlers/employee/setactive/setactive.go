// Package setactive реализует HTTP-обработчик включения и выключения QR-кода.
package setactive

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
	"github.com/magabrotheeeer/review-hub/internal/services/qrcode"
)

// Service описывает интерфейс управления активностью QR-кодов.
type Service interface {
	SetActive(ctx context.Context, companyUID string, id int, active bool) error
}

// Handler управляет HTTP-запросами активации QR-кода.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Request содержит желаемое состояние QR-кода.
type Request struct {
	Active *bool `json:"active" validate:"required"`
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Включить или выключить QR-код сотрудника
// @Description Деактивированный код ведет себя для посетителя как неизвестный.
// @Tags Employees
// @Accept  json
// @Produce  json
// @Param id path int true "Идентификатор сотрудника"
// @Param request body Request true "Желаемое состояние"
// @Success 200 {object} response.Response "Состояние обновлено"
// @Failure 400 {object} response.ErrorResponse "Ошибка декодирования запроса"
// @Failure 404 {object} response.ErrorResponse "Сотрудник не найден"
// @Router /employees/{id}/qr [patch]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.employee.setactive"
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
		log.Error("invalid employee id", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid employee id"))
		return
	}

	var req Request
	if err := render.DecodeJSON(r.Body, &req); err != nil || req.Active == nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to decode request"))
		return
	}

	if err := h.service.SetActive(r.Context(), companyUID, id, *req.Active); err != nil {
		if errors.Is(err, qrcode.ErrEmployeeNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("employee not found"))
			return
		}
		log.Error("failed to update qr code state", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not update qr code state"))
		return
	}

	log.Info("qr code state updated", slog.Int("employee_id", id), slog.Bool("active", *req.Active))
	render.JSON(w, r, response.Response{Status: response.StatusOK})
}
