package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/review-hub/internal/models"
)

// CreateEmployee сохраняет сотрудника с выпущенным QR-кодом и возвращает его ID.
func (s *Storage) CreateEmployee(ctx context.Context, emp models.Employee) (int, error) {
	const op = "storage.CreateEmployee"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var id int
	query := `INSERT INTO employees (company_uid, full_name, position, qr_code_id,
			      qr_is_active, qr_expires_at, scan_limit, redirect_url)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  RETURNING id;`
	if err := s.DB.QueryRowContext(ctx, query, emp.CompanyUID, emp.FullName, emp.Position,
		emp.QRCodeID, emp.QRIsActive, emp.QRExpiresAt, emp.ScanLimit, emp.RedirectURL).Scan(&id); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// GetEmployeeByQRCode возвращает сотрудника по токену QR-кода.
// Возвращает (nil, nil), если токен неизвестен.
func (s *Storage) GetEmployeeByQRCode(ctx context.Context, qrCodeID string) (*models.Employee, error) {
	const op = "storage.GetEmployeeByQRCode"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, company_uid, full_name, position, qr_code_id, qr_is_active,
			      qr_expires_at, scan_limit, scan_count, redirect_url, created_at
			  FROM employees
			  WHERE qr_code_id = $1`
	return s.scanEmployee(s.DB.QueryRowContext(ctx, query, qrCodeID), op)
}

// GetEmployee возвращает сотрудника компании по ID.
func (s *Storage) GetEmployee(ctx context.Context, companyUID string, id int) (*models.Employee, error) {
	const op = "storage.GetEmployee"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, company_uid, full_name, position, qr_code_id, qr_is_active,
			      qr_expires_at, scan_limit, scan_count, redirect_url, created_at
			  FROM employees
			  WHERE company_uid = $1 AND id = $2`
	return s.scanEmployee(s.DB.QueryRowContext(ctx, query, companyUID, id), op)
}

func (s *Storage) scanEmployee(row *sql.Row, op string) (*models.Employee, error) {
	emp := &models.Employee{}
	var expires sql.NullTime
	var scanLimit sql.NullInt64
	var redirect sql.NullString
	if err := row.Scan(&emp.ID, &emp.CompanyUID, &emp.FullName, &emp.Position,
		&emp.QRCodeID, &emp.QRIsActive, &expires, &scanLimit, &emp.ScanCount,
		&redirect, &emp.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if expires.Valid {
		emp.QRExpiresAt = &expires.Time
	}
	if scanLimit.Valid {
		limit := int(scanLimit.Int64)
		emp.ScanLimit = &limit
	}
	if redirect.Valid {
		emp.RedirectURL = &redirect.String
	}
	return emp, nil
}

// ListEmployees возвращает сотрудников компании с пагинацией.
func (s *Storage) ListEmployees(ctx context.Context, companyUID string, limit, offset int) ([]*models.Employee, error) {
	const op = "storage.ListEmployees"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, company_uid, full_name, position, qr_code_id, qr_is_active,
			      qr_expires_at, scan_limit, scan_count, redirect_url, created_at
			  FROM employees
			  WHERE company_uid = $1
			  ORDER BY created_at DESC
			  LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, companyUID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()
	var result []*models.Employee
	for rows.Next() {
		var emp models.Employee
		var expires sql.NullTime
		var scanLimit sql.NullInt64
		var redirect sql.NullString
		if err = rows.Scan(&emp.ID, &emp.CompanyUID, &emp.FullName, &emp.Position,
			&emp.QRCodeID, &emp.QRIsActive, &expires, &scanLimit, &emp.ScanCount,
			&redirect, &emp.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if expires.Valid {
			emp.QRExpiresAt = &expires.Time
		}
		if scanLimit.Valid {
			limit := int(scanLimit.Int64)
			emp.ScanLimit = &limit
		}
		if redirect.Valid {
			emp.RedirectURL = &redirect.String
		}
		result = append(result, &emp)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ReplaceQRCode заменяет токен QR-кода сотрудника, обнуляя счётчик сканирований.
// Старые напечатанные коды перестают действовать.
func (s *Storage) ReplaceQRCode(ctx context.Context, companyUID string, id int, newQRCodeID string) (int, error) {
	const op = "storage.ReplaceQRCode"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE employees
			  SET qr_code_id = $1,
			      scan_count = 0,
			      qr_is_active = TRUE
			  WHERE company_uid = $2 AND id = $3`
	res, err := s.DB.ExecContext(ctx, query, newQRCodeID, companyUID, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(affected), nil
}

// IncrementScanCount увеличивает счётчик сканирований QR-кода.
func (s *Storage) IncrementScanCount(ctx context.Context, qrCodeID string) error {
	const op = "storage.IncrementScanCount"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE employees
			  SET scan_count = scan_count + 1
			  WHERE qr_code_id = $1`
	_, err := s.DB.ExecContext(ctx, query, qrCodeID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SetQRActive включает или выключает QR-код сотрудника.
func (s *Storage) SetQRActive(ctx context.Context, companyUID string, id int, active bool) (int, error) {
	const op = "storage.SetQRActive"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE employees
			  SET qr_is_active = $1
			  WHERE company_uid = $2 AND id = $3`
	res, err := s.DB.ExecContext(ctx, query, active, companyUID, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(affected), nil
}
