package models

import "time"

// Типы уведомлений компании.
const (
	NotificationReview = "review"
	NotificationTeam   = "team"
	NotificationQR     = "qr"
	NotificationSystem = "system"
)

// Notification представляет уведомление в ленте компании.
// Создаётся серверными триггерами на события (новый отзыв, истечение
// пробного периода), клиент меняет только флаг прочтения.
type Notification struct {
	ID         int       `json:"id"`
	CompanyUID string    `json:"company_uid"`
	Type       string    `json:"type"` // review, team, qr, system
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	IsRead     bool      `json:"is_read"`
	Priority   int       `json:"priority"`
	ActionURL  *string   `json:"action_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
