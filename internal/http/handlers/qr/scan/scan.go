// Package scan реализует публичный HTTP-обработчик сканирования QR-кода.
// Посетитель попадает сюда по ссылке, зашитой в код сотрудника.
package scan

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/review-hub/internal/http/response"
	"github.com/magabrotheeeer/review-hub/internal/lib/sl"
	"github.com/magabrotheeeer/review-hub/internal/models"
	"github.com/magabrotheeeer/review-hub/internal/services/qrcode"
)

// Service описывает интерфейс разбора сканирования.
type Service interface {
	ResolveScan(ctx context.Context, qrCodeID string) (*models.Employee, error)
}

// Handler управляет HTTP-запросами сканирования QR-кода.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Отсканировать QR-код
// @Description Засчитывает сканирование и возвращает данные сотрудника для формы отзыва.
// @Tags Public
// @Produce  json
// @Param qr_code_id path string true "Токен QR-кода"
// @Success 200 {object} map[string]any "Сотрудник и адрес перенаправления"
// @Failure 404 {object} response.ErrorResponse "Неизвестный или неактивный код"
// @Router /r/{qr_code_id} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.qr.scan"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	qrCodeID := chi.URLParam(r, "qr_code_id")
	if qrCodeID == "" {
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("unknown qr code"))
		return
	}

	emp, err := h.service.ResolveScan(r.Context(), qrCodeID)
	if err != nil {
		// Посетителю не сообщается, существует ли код вообще.
		if errors.Is(err, qrcode.ErrUnknownCode) || errors.Is(err, qrcode.ErrInactiveCode) {
			log.Info("scan of unknown or inactive code")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("unknown qr code"))
			return
		}
		log.Error("failed to resolve scan", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not resolve scan"))
		return
	}

	data := map[string]any{
		"employee_name": emp.FullName,
		"position":      emp.Position,
	}
	if emp.RedirectURL != nil {
		data["redirect_url"] = *emp.RedirectURL
	}
	render.JSON(w, r, response.StatusOKWithData(data))
}
