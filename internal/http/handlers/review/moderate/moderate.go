// Package moderate реализует HTTP-обработчик модерации отзыва.
package moderate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/review-hub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/review-hub/internal/http/response"
	"github.com/magabrotheeeer/review-hub/internal/lib/sl"
	reviewservice "github.com/magabrotheeeer/review-hub/internal/services/review"
)

// Service описывает интерфейс модерации отзывов.
type Service interface {
	Moderate(ctx context.Context, companyUID string, reviewID int, status string) error
}

// Handler управляет HTTP-запросами модерации отзыва.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Request содержит новый статус отзыва.
type Request struct {
	Status string `json:"status" validate:"required,oneof=approved rejected"`
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
// @Summary Модерировать отзыв
// @Description Переводит отзыв в статус approved или rejected.
// @Tags Reviews
// @Accept  json
// @Produce  json
// @Param id path int true "Идентификатор отзыва"
// @Param request body Request true "Новый статус"
// @Success 200 {object} response.Response "Статус обновлен"
// @Failure 400 {object} response.ErrorResponse "Ошибка декодирования запроса"
// @Failure 404 {object} response.ErrorResponse "Отзыв не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации данных"
// @Router /reviews/{id} [patch]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.review.moderate"
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

	reviewID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		log.Error("invalid review id", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid review id"))
		return
	}

	var req Request
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

	if err := h.service.Moderate(r.Context(), companyUID, reviewID, req.Status); err != nil {
		if errors.Is(err, reviewservice.ErrReviewNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("review not found"))
			return
		}
		if errors.Is(err, reviewservice.ErrInvalidModerate) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error("unsupported review status"))
			return
		}
		log.Error("failed to moderate review", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not moderate review"))
		return
	}

	log.Info("review moderated", slog.Int("review_id", reviewID), slog.String("status", req.Status))
	render.JSON(w, r, response.Response{Status: response.StatusOK})
}
