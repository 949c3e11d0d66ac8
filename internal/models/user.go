// Package models содержит доменную модель пользователя-компании,
// включающую данные учётной записи, хэш пароля и поля пробного периода.
// Структура используется в бизнес‑логике и при работе с хранилищем.
package models

import "time"

// Роли пользователей.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User представляет зарегистрированную компанию-владельца аккаунта.
// Поля пробного периода живут на профиле пользователя, а данные
// оплаченной подписки — в отдельной записи Subscription.
type User struct {
	UID                string     // Уникальный идентификатор пользователя
	Email              string     // Электронная почта
	Username           string     // Имя пользователя (уникальное)
	CompanyName        string     // Название компании
	PasswordHash       string     // Хэш пароля пользователя
	Role               string     // Роль пользователя, admin или user
	TrialEndDate       *time.Time // Дата истечения пробного периода
	TrialUsed          bool       // Признак того, что пробный период уже использован
	SubscriptionStatus string     // Статус подписки на профиле: trial, active, ended и т.д.
	CreatedAt          time.Time  // Дата регистрации
}

// DummyRegister используется для приёма данных регистрации из JSON-запроса.
type DummyRegister struct {
	Email       string `json:"email" validate:"required,email"`
	Username    string `json:"username" validate:"required,alphanum"`
	CompanyName string `json:"company_name" validate:"required"`
	Password    string `json:"password" validate:"required,min=8"`
}

// DummyLogin используется для приёма данных входа из JSON-запроса.
type DummyLogin struct {
	Username string `json:"username" validate:"required,alphanum"`
	Password string `json:"password" validate:"required"`
}
