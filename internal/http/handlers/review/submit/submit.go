// Package submit реализует публичный HTTP-обработчик приёма отзыва по
// токену QR-кода.
package submit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/review-hub/internal/http/response"
	"github.com/magabrotheeeer/review-hub/internal/lib/sl"
	"github.com/magabrotheeeer/review-hub/internal/models"
	"github.com/magabrotheeeer/review-hub/internal/services/qrcode"
)

// Service описывает интерфейс приёма отзыва.
type Service interface {
	Submit(ctx context.Context, qrCodeID string, req models.DummyReview) (int, error)
}

// Handler управляет HTTP-запросами приёма отзывов.
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
// @Summary Оставить отзыв
// @Description Принимает отзыв посетителя по токену QR-кода. Отзыв попадает в очередь модерации.
// @Tags Public
// @Accept  json
// @Produce  json
// @Param qr_code_id path string true "Токен QR-кода"
// @Param request body models.DummyReview true "Содержимое отзыва"
// @Success 200 {object} map[string]any "Идентификатор принятого отзыва"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 404 {object} response.ErrorResponse "Неизвестный или неактивный код"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /r/{qr_code_id}/reviews [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.review.submit"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	qrCodeID := chi.URLParam(r, "qr_code_id")

	var req models.DummyReview
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	id, err := h.service.Submit(r.Context(), qrCodeID, req)
	if err != nil {
		if errors.Is(err, qrcode.ErrUnknownCode) || errors.Is(err, qrcode.ErrInactiveCode) {
			log.Info("review for unknown or inactive code")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("unknown qr code"))
			return
		}
		log.Error("failed to submit review", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not submit review"))
		return
	}

	log.Info("review submitted", slog.Int("review_id", id))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"review_id": id,
	}))
}
