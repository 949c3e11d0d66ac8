package models

import "time"

// ChangeEvent описывает серверное изменение строки, доставляемое через
// брокер в канал изменений компании. Слушатель фильтрует события по
// таблице и списку затронутых колонок, прежде чем запускать пересчёт
// состояния доступа.
type ChangeEvent struct {
	Table      string    `json:"table"`      // profiles, subscriptions, payment_history, notifications
	Event      string    `json:"event"`      // INSERT, UPDATE, DELETE
	UserUID    string    `json:"user_uid"`   // Владелец затронутой строки
	Columns    []string  `json:"columns"`    // Имена изменённых колонок
	OccurredAt time.Time `json:"occurred_at"`
}

// TrialExpiryInfo сообщение планировщика об истекающем пробном периоде,
// уходит в очередь отправки писем.
type TrialExpiryInfo struct {
	Email        string     `json:"email"`
	Username     string     `json:"username"`
	CompanyName  string     `json:"company_name"`
	TrialEndDate *time.Time `json:"trial_end_date"`
}
