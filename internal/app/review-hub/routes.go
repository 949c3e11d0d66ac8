// Package reviewhub собирает основное приложение платформы сбора отзывов
// и регистрирует его маршруты.
package reviewhub

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/review-hub/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/review-hub/internal/http/handlers/auth/logout"
	"github.com/magabrotheeeer/review-hub/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/review-hub/internal/http/handlers/auth/resume"
	"github.com/magabrotheeeer/review-hub/internal/http/handlers/billing/payments"
	"github.com/magabrotheeeer/review-hub/internal/http/handlers/billing/selectplan"
	"github.com/magabrotheeeer/review-hub/internal/http/handlers/billing/verify"
	employeecreate "github.com/magabrotheeeer/review-hub/internal/http/handlers/employee/create"
	employeelist "github.com/magabrotheeeer/review-hub/internal/http/handlers/employee/list"
	"github.com/magabrotheeeer/review-hub/internal/http/handlers/employee/regenerate"
	"github.com/magabrotheeeer/review-hub/internal/http/handlers/employee/setactive"
	entrefresh "github.com/magabrotheeeer/review-hub/internal/http/handlers/entitlement/refresh"
	entstatus "github.com/magabrotheeeer/review-hub/internal/http/handlers/entitlement/status"
	"github.com/magabrotheeeer/review-hub/internal/http/handlers/health"
	notificationlist "github.com/magabrotheeeer/review-hub/internal/http/handlers/notification/list"
	"github.com/magabrotheeeer/review-hub/internal/http/handlers/notification/markallread"
	"github.com/magabrotheeeer/review-hub/internal/http/handlers/notification/markread"
	"github.com/magabrotheeeer/review-hub/internal/http/handlers/qr/scan"
	reviewlist "github.com/magabrotheeeer/review-hub/internal/http/handlers/review/list"
	"github.com/magabrotheeeer/review-hub/internal/http/handlers/review/moderate"
	"github.com/magabrotheeeer/review-hub/internal/http/handlers/review/submit"
	"github.com/magabrotheeeer/review-hub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/review-hub/internal/lib/jwt"
	checkoutservice "github.com/magabrotheeeer/review-hub/internal/services/checkout"
	entitlementservice "github.com/magabrotheeeer/review-hub/internal/services/entitlement"
	notificationservice "github.com/magabrotheeeer/review-hub/internal/services/notification"
	qrcodeservice "github.com/magabrotheeeer/review-hub/internal/services/qrcode"
	reviewservice "github.com/magabrotheeeer/review-hub/internal/services/review"
	sessionservice "github.com/magabrotheeeer/review-hub/internal/services/session"
	"github.com/magabrotheeeer/review-hub/internal/storage/repository"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, maker jwt.Maker,
	db *repository.Storage, sessions *liveSessions, manager *sessionservice.Manager,
	entitlements *entitlementservice.Service, checkoutSvc *checkoutservice.Service,
	qrSvc *qrcodeservice.Service, reviewSvc *reviewservice.Service,
	notificationSvc *notificationservice.Service) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/register", register.New(logger, sessions).ServeHTTP)
		r.Post("/login", login.New(logger, sessions).ServeHTTP)
		r.Get("/r/{qr_code_id}", scan.New(logger, qrSvc).ServeHTTP)
		r.Post("/r/{qr_code_id}/reviews", submit.New(logger, reviewSvc).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(maker, manager, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))

			r.Post("/logout", logout.New(logger, sessions).ServeHTTP)
			r.Post("/session/resume", resume.New(logger, sessions).ServeHTTP)
			r.Get("/entitlement", entstatus.New(logger, entitlements, manager).ServeHTTP)
			r.Post("/entitlement/refresh", entrefresh.New(logger, entitlements).ServeHTTP)
			r.Post("/billing/select-plan", selectplan.New(logger, checkoutSvc).ServeHTTP)
			r.Post("/billing/verify-session", verify.New(logger, checkoutSvc).ServeHTTP)
			r.Get("/billing/payments", payments.New(logger, checkoutSvc).ServeHTTP)

			// Функциональность, требующая действующего доступа
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.AccessMiddleware(logger, entitlements))

				r.Post("/employees", employeecreate.New(logger, qrSvc).ServeHTTP)
				r.Get("/employees", employeelist.New(logger, qrSvc).ServeHTTP)
				r.Post("/employees/{id}/qr", regenerate.New(logger, qrSvc).ServeHTTP)
				r.Patch("/employees/{id}/qr", setactive.New(logger, qrSvc).ServeHTTP)
				r.Get("/reviews", reviewlist.New(logger, reviewSvc).ServeHTTP)
				r.Patch("/reviews/{id}", moderate.New(logger, reviewSvc).ServeHTTP)
				r.Get("/notifications", notificationlist.New(logger, notificationSvc).ServeHTTP)
				r.Patch("/notifications/{id}/read", markread.New(logger, notificationSvc).ServeHTTP)
				r.Post("/notifications/read-all", markallread.New(logger, notificationSvc).ServeHTTP)
			})
		})
	})

	r.Get("/health", health.New(logger, func() error {
		return repository.CheckDatabaseReady(db)
	}).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
