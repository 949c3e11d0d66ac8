package billing

import "time"

// CreateCheckoutRequest запрос на создание сессии оплаты выбранного тарифа.
type CreateCheckoutRequest struct {
	PlanType string `json:"plan_type" validate:"required"`
	UserUID  string `json:"user_uid" validate:"required,uuid"`
}

// CheckoutSession ответ платёжного бэкенда на создание сессии оплаты.
type CheckoutSession struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// CreatePortalRequest запрос на открытие портала самообслуживания клиента.
type CreatePortalRequest struct {
	CustomerID string `json:"customer_id,omitempty"`
}

// PortalSession ответ с адресом портала самообслуживания.
type PortalSession struct {
	URL string `json:"url"`
}

// VerifyRequest запрос проверки завершённой сессии оплаты.
type VerifyRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

// VerifyResult результат проверки сессии оплаты. При успехе бэкенд
// возвращает детали оформленной подписки и проведённого платежа.
type VerifyResult struct {
	Success          bool       `json:"success"`
	Message          string     `json:"message,omitempty"`
	PlanType         string     `json:"plan_type,omitempty"`
	CustomerID       string     `json:"customer_id,omitempty"`
	SubscriptionID   string     `json:"subscription_id,omitempty"`
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
	Amount           int        `json:"amount,omitempty"`
	Currency         string     `json:"currency,omitempty"`
}
