package models

import "time"

// Статусы подписки и производного состояния доступа.
// Единый словарь: профильный статус "trialing" из старых записей
// нормализуется к StatusTrial при чтении.
const (
	StatusActive   = "active"
	StatusTrial    = "trial"
	StatusCanceled = "canceled"
	StatusPastDue  = "past_due"
	StatusEnded    = "ended"
	StatusExpired  = "expired"
)

// Subscription представляет запись об оплаченной подписке компании.
// CurrentPeriodEnd может быть nil, если платёжная система не сообщила
// дату окончания оплаченного периода.
type Subscription struct {
	ID               int        // Внутренний идентификатор записи
	UserUID          string     // Владелец подписки
	Plan             Plan       // Оплаченный тариф
	Status           string     // active, canceled, past_due, ended
	CustomerID       string     // Идентификатор клиента в платёжной системе
	SubscriptionID   string     // Идентификатор подписки в платёжной системе
	CurrentPeriodEnd *time.Time // Конец оплаченного периода
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PaymentRecord строка истории платежей компании.
type PaymentRecord struct {
	ID        int       `json:"id"`
	UserUID   string    `json:"user_uid"`
	Amount    int       `json:"amount"` // Сумма в минимальных единицах валюты
	Currency  string    `json:"currency"`
	Plan      Plan      `json:"plan"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
