package models

import "time"

// Employee представляет сотрудника компании с персональным QR-кодом.
// QR-код активен, только если флаг включён, срок действия не истёк
// и лимит сканирований не исчерпан. Перегенерация заменяет токен,
// делая недействительными все ранее напечатанные коды.
type Employee struct {
	ID          int        // Внутренний идентификатор
	CompanyUID  string     // Владелец записи
	FullName    string     // ФИО сотрудника
	Position    string     // Должность
	QRCodeID    string     // Непрозрачный токен, зашитый в сканируемый URL
	QRIsActive  bool       // Флаг активации QR-кода
	QRExpiresAt *time.Time // Срок действия кода, nil — бессрочный
	ScanLimit   *int       // Максимум сканирований, nil — без лимита
	ScanCount   int        // Сколько раз код уже отсканирован
	RedirectURL *string    // Необязательный URL перенаправления после сканирования
	CreatedAt   time.Time
}

// QRActive проверяет, действует ли QR-код сотрудника на момент now.
func (e Employee) QRActive(now time.Time) bool {
	if !e.QRIsActive {
		return false
	}
	if e.QRExpiresAt != nil && !now.Before(*e.QRExpiresAt) {
		return false
	}
	if e.ScanLimit != nil && e.ScanCount >= *e.ScanLimit {
		return false
	}
	return true
}

// DummyEmployee используется для приёма данных сотрудника из JSON-запроса.
type DummyEmployee struct {
	FullName    string `json:"full_name" validate:"required"`
	Position    string `json:"position" validate:"required"`
	QRExpiresAt string `json:"qr_expires_at,omitempty" validate:"omitempty"` // Дата в формате 02-01-2006
	ScanLimit   *int   `json:"scan_limit,omitempty" validate:"omitempty,gt=0"`
	RedirectURL string `json:"redirect_url,omitempty" validate:"omitempty,url"`
}
