package models

import "time"

// Статусы модерации отзыва.
const (
	ReviewPending  = "pending"
	ReviewApproved = "approved"
	ReviewRejected = "rejected"
)

// Review представляет отзыв клиента, оставленный по QR-коду сотрудника.
// Отзыв создаётся анонимным посетителем и попадает в очередь модерации
// компании-владельца.
type Review struct {
	ID         int       // Внутренний идентификатор
	CompanyUID string    // Компания-владелец
	EmployeeID int       // Сотрудник, чей QR-код был отсканирован
	QRCodeID   string    // Токен QR-кода на момент отправки
	AuthorName string    // Имя автора (опционально, как представился)
	Rating     int       // Оценка от 1 до 5
	Text       string    // Текст отзыва
	VideoURL   string    // Ссылка на видеоотзыв в объектном хранилище
	Status     string    // pending, approved, rejected
	CreatedAt  time.Time
}

// DummyReview используется для приёма отзыва из JSON-запроса
// до валидации и преобразования в Review.
type DummyReview struct {
	AuthorName string `json:"author_name,omitempty" validate:"omitempty,max=100"`
	Rating     int    `json:"rating" validate:"required,gte=1,lte=5"`
	Text       string `json:"text,omitempty" validate:"omitempty,max=4000"`
	VideoURL   string `json:"video_url,omitempty" validate:"omitempty,url"`
}
