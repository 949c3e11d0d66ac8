package models

import "time"

// EntitlementSource указывает, какой источник данных определил итоговое
// состояние доступа. Слияние источников тотально: ровно один вариант
// авторитетен в каждый момент времени, оплаченная подписка имеет
// приоритет над пробным периодом.
type EntitlementSource string

// Возможные источники состояния доступа.
const (
	SourceAdmin        EntitlementSource = "admin"
	SourceSubscription EntitlementSource = "subscription"
	SourceTrial        EntitlementSource = "trial"
	SourceNone         EntitlementSource = "none"
)

// Entitlement — нормализованное состояние доступа компании, пересчитываемое
// целиком при каждом проходе сверки. Никогда не обновляется частично:
// всегда заменяется атомарно результатом полного пересчёта.
// Сериализуется в JSON для снапшота в кеше.
type Entitlement struct {
	Source           EntitlementSource `json:"source"`
	Plan             Plan              `json:"plan"`
	Status           string            `json:"status"`
	TrialEnd         *time.Time        `json:"trial_end,omitempty"`
	CurrentPeriodEnd *time.Time        `json:"current_period_end,omitempty"`
	CustomerID       string            `json:"customer_id,omitempty"`
	SubscriptionID   string            `json:"subscription_id,omitempty"`
	Admin            bool              `json:"admin"`
	RefreshedAt      time.Time         `json:"refreshed_at"`
}

// IsActive сообщает, действует ли оплаченная подписка.
func (e Entitlement) IsActive() bool {
	return e.Status == StatusActive
}

// IsTrialActive сообщает, действует ли пробный период на момент now.
// Пробный период не считается активным, если его вытеснила оплаченная подписка.
func (e Entitlement) IsTrialActive(now time.Time) bool {
	return e.Source == SourceTrial && e.Status == StatusTrial &&
		e.TrialEnd != nil && now.Before(*e.TrialEnd)
}

// IsExpired сообщает, истекло ли состояние доступа на момент now.
func (e Entitlement) IsExpired(now time.Time) bool {
	if e.Status == StatusExpired {
		return true
	}
	if e.Status == StatusTrial && e.TrialEnd != nil && !now.Before(*e.TrialEnd) {
		return true
	}
	if e.Status == StatusActive && e.CurrentPeriodEnd != nil && !now.Before(*e.CurrentPeriodEnd) {
		return true
	}
	return false
}

// CanAccessApp сообщает, открыт ли доступ к приложению. Статус canceled
// никогда не даёт доступа, даже пока оплаченный период ещё не закончился.
func (e Entitlement) CanAccessApp(now time.Time) bool {
	if e.Admin {
		return true
	}
	if e.IsActive() && !e.IsExpired(now) {
		return true
	}
	if e.IsTrialActive(now) && !e.IsExpired(now) {
		return true
	}
	return false
}
