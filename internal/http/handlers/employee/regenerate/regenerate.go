// Package regenerate реализует HTTP-обработчик перевыпуска QR-кода сотрудника.
package regenerate

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

// Service описывает интерфейс перевыпуска QR-кодов.
type Service interface {
	Regenerate(ctx context.Context, companyUID string, id int) (string, error)
}

// Handler управляет HTTP-запросами перевыпуска QR-кода.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Перевыпустить QR-код сотрудника
// @Description Выпускает новый токен QR-кода. Все ранее напечатанные коды сотрудника перестают действовать.
// @Tags Employees
// @Produce  json
// @Param id path int true "Идентификатор сотрудника"
// @Success 200 {object} map[string]any "Новый токен QR-кода"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Сотрудник не найден"
// @Router /employees/{id}/qr [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.employee.regenerate"
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

	token, err := h.service.Regenerate(r.Context(), companyUID, id)
	if err != nil {
		if errors.Is(err, qrcode.ErrEmployeeNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("employee not found"))
			return
		}
		log.Error("failed to regenerate qr code", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not regenerate qr code"))
		return
	}

	log.Info("qr code regenerated", slog.Int("employee_id", id))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"qr_code_id": token}))
}
