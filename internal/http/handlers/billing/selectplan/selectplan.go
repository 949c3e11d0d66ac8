// Package selectplan реализует HTTP-обработчик выбора тарифа. Действующая
// оплаченная подписка направляется в портал управления, остальные — на
// страницу оплаты.
package selectplan

import (
	"context"
	"encoding/json"
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
	"github.com/magabrotheeeer/review-hub/internal/services/checkout"
	"github.com/magabrotheeeer/review-hub/internal/services/entitlement"
)

// Request тело запроса выбора тарифа.
type Request struct {
	Plan string `json:"plan" validate:"required,oneof=starter professional enterprise"`
}

// Service описывает интерфейс оркестратора оплаты.
type Service interface {
	SelectPlan(ctx context.Context, userUID string, plan models.Plan) (*checkout.Redirect, error)
}

// Handler управляет HTTP-запросами выбора тарифа.
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
// @Summary Выбрать тариф
// @Description Возвращает адрес портала управления подпиской или новой платёжной сессии.
// @Tags Billing
// @Accept  json
// @Produce  json
// @Param request body Request true "Выбранный тариф"
// @Success 200 {object} map[string]any "Адрес редиректа"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Сессия отсутствует или просрочена"
// @Failure 409 {object} response.ErrorResponse "Тариф уже активен или дубль подписки"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /billing/select-plan [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.selectplan"
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

	var req Request
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

	redirect, err := h.service.SelectPlan(r.Context(), userUID, models.Plan(req.Plan))
	if err != nil {
		var checkoutErr *entitlement.CheckoutError
		switch {
		case errors.As(err, &checkoutErr):
			log.Info("checkout blocked", slog.String("code", checkoutErr.Code))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Response{
				Status: response.StatusError,
				Error:  checkoutErr.Code,
				Data:   map[string]any{"current_plan": checkoutErr.CurrentPlan},
			})
		case errors.Is(err, checkout.ErrNotAuthenticated):
			log.Info("select plan without live session")
			w.WriteHeader(http.StatusUnauthorized)
			render.JSON(w, r, response.Error("session is missing or expired"))
		default:
			log.Error("failed to select plan", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not select plan"))
		}
		return
	}

	log.Info("plan selected", slog.String("uid", userUID),
		slog.String("plan", req.Plan), slog.String("kind", redirect.Kind))
	render.JSON(w, r, response.StatusOKWithData(redirect))
}
