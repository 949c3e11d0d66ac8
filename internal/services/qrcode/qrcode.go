// Package qrcode управляет персональными QR-кодами сотрудников: выпуск,
// перегенерация, активация и разбор сканирования. Токен кода
// непрозрачный, перегенерация делает недействительными все ранее
// напечатанные коды сотрудника.
package qrcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/review-hub/internal/metrics"
	"github.com/magabrotheeeer/review-hub/internal/models"
)

// Ошибки QR-кодов.
var (
	ErrEmployeeNotFound = errors.New("employee not found")
	ErrUnknownCode      = errors.New("unknown qr code")
	ErrInactiveCode     = errors.New("qr code is not active")
)

// Repository операции с сотрудниками и их QR-кодами.
type Repository interface {
	CreateEmployee(ctx context.Context, emp models.Employee) (int, error)
	GetEmployee(ctx context.Context, companyUID string, id int) (*models.Employee, error)
	GetEmployeeByQRCode(ctx context.Context, qrCodeID string) (*models.Employee, error)
	ListEmployees(ctx context.Context, companyUID string, limit, offset int) ([]*models.Employee, error)
	ReplaceQRCode(ctx context.Context, companyUID string, id int, newQRCodeID string) (int, error)
	IncrementScanCount(ctx context.Context, qrCodeID string) error
	SetQRActive(ctx context.Context, companyUID string, id int, active bool) (int, error)
}

// Service сервис QR-кодов.
type Service struct {
	log  *slog.Logger
	repo Repository
	now  func() time.Time
}

// New создаёт сервис QR-кодов.
func New(log *slog.Logger, repo Repository) *Service {
	return &Service{log: log, repo: repo, now: time.Now}
}

// newToken выпускает новый непрозрачный токен QR-кода.
func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// AddEmployee создаёт сотрудника с активным QR-кодом.
func (s *Service) AddEmployee(ctx context.Context, companyUID string, req models.DummyEmployee) (int, error) {
	const op = "services.qrcode.AddEmployee"

	emp := models.Employee{
		CompanyUID: companyUID,
		FullName:   req.FullName,
		Position:   req.Position,
		QRCodeID:   newToken(),
		QRIsActive: true,
		ScanLimit:  req.ScanLimit,
	}
	if req.QRExpiresAt != "" {
		expires, err := time.Parse("02-01-2006", req.QRExpiresAt)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
		emp.QRExpiresAt = &expires
	}
	if req.RedirectURL != "" {
		emp.RedirectURL = &req.RedirectURL
	}

	id, err := s.repo.CreateEmployee(ctx, emp)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// List возвращает сотрудников компании.
func (s *Service) List(ctx context.Context, companyUID string, limit, offset int) ([]*models.Employee, error) {
	const op = "services.qrcode.List"
	employees, err := s.repo.ListEmployees(ctx, companyUID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return employees, nil
}

// Get возвращает сотрудника компании по идентификатору.
func (s *Service) Get(ctx context.Context, companyUID string, id int) (*models.Employee, error) {
	const op = "services.qrcode.Get"
	emp, err := s.repo.GetEmployee(ctx, companyUID, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if emp == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrEmployeeNotFound)
	}
	return emp, nil
}

// Regenerate заменяет токен QR-кода сотрудника. Счётчик сканирований
// обнуляется, код включается, все старые коды перестают действовать.
func (s *Service) Regenerate(ctx context.Context, companyUID string, id int) (string, error) {
	const op = "services.qrcode.Regenerate"

	token := newToken()
	rows, err := s.repo.ReplaceQRCode(ctx, companyUID, id, token)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		return "", fmt.Errorf("%s: %w", op, ErrEmployeeNotFound)
	}

	s.log.Info("qr code regenerated",
		slog.String("company_uid", companyUID), slog.Int("employee_id", id))
	return token, nil
}

// SetActive включает или выключает QR-код сотрудника.
func (s *Service) SetActive(ctx context.Context, companyUID string, id int, active bool) error {
	const op = "services.qrcode.SetActive"
	rows, err := s.repo.SetQRActive(ctx, companyUID, id, active)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, ErrEmployeeNotFound)
	}
	return nil
}

// Lookup находит сотрудника по токену QR-кода, не засчитывая
// сканирование. Неактивный код равносилен неизвестному для посетителя.
func (s *Service) Lookup(ctx context.Context, qrCodeID string) (*models.Employee, error) {
	const op = "services.qrcode.Lookup"

	emp, err := s.repo.GetEmployeeByQRCode(ctx, qrCodeID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if emp == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrUnknownCode)
	}
	if !emp.QRActive(s.now()) {
		return nil, fmt.Errorf("%s: %w", op, ErrInactiveCode)
	}
	return emp, nil
}

// ResolveScan разбирает сканирование: проверяет код, засчитывает
// сканирование и возвращает сотрудника вместе с URL перенаправления.
func (s *Service) ResolveScan(ctx context.Context, qrCodeID string) (*models.Employee, error) {
	const op = "services.qrcode.ResolveScan"

	emp, err := s.Lookup(ctx, qrCodeID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.repo.IncrementScanCount(ctx, qrCodeID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	metrics.QRCodeScans.Inc()
	return emp, nil
}
