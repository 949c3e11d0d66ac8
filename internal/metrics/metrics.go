// Package metrics объявляет счётчики Prometheus для ключевых операций
// платформы. Сами метрики отдаются на /metrics через promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EntitlementRefreshes количество проходов сверки состояния доступа.
	EntitlementRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reviewhub_entitlement_refresh_total",
		Help: "Number of entitlement reconciliation passes by result.",
	}, []string{"result"})

	// CheckoutBlocked количество заблокированных попыток оплаты.
	CheckoutBlocked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reviewhub_checkout_blocked_total",
		Help: "Number of checkout attempts blocked by the same-plan guard.",
	}, []string{"code"})

	// SessionsExpired количество сессий, завершённых по таймауту бездействия.
	SessionsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reviewhub_sessions_expired_total",
		Help: "Number of sessions expired by idle timeout.",
	})

	// ReviewsSubmitted количество принятых отзывов.
	ReviewsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reviewhub_reviews_submitted_total",
		Help: "Number of submitted reviews.",
	})

	// QRCodeScans количество сканирований QR-кодов.
	QRCodeScans = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reviewhub_qr_scans_total",
		Help: "Number of QR code scans.",
	})
)
