package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	apperrors "github.com/vestledger/vestledger/internal/platform/errors"
	"github.com/vestledger/vestledger/internal/vesting/domain"
)

const employeeGrantColumns = `
address, beneficiary, grant_address, start_time, cliff_time, end_time,
total_amount, total_withdrawn, created_at, updated_at`

// PutEmployeeGrant stores a new per-beneficiary schedule.
func (s *Store) PutEmployeeGrant(ctx context.Context, record domain.EmployeeGrant) error {
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO employee_grants (
	address,
	beneficiary,
	grant_address,
	start_time,
	cliff_time,
	end_time,
	total_amount,
	total_withdrawn,
	created_at,
	updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		record.Address,
		record.Beneficiary,
		record.GrantAddress,
		record.StartTime,
		record.CliffTime,
		record.EndTime,
		record.TotalAmount,
		record.TotalWithdrawn,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.WrapWithMetadata(
				apperrors.CodeAlreadyExists,
				fmt.Sprintf("employee grant for %s under %s already exists", record.Beneficiary, record.GrantAddress),
				map[string]string{
					"Beneficiary":  record.Beneficiary,
					"GrantAddress": record.GrantAddress,
				},
				err,
			)
		}
		return fmt.Errorf("insert employee grant: %w", err)
	}
	return nil
}

// GetEmployeeGrant loads a schedule by its derived address.
func (s *Store) GetEmployeeGrant(ctx context.Context, addr string) (domain.EmployeeGrant, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+employeeGrantColumns+`
FROM employee_grants WHERE address = ?
`, addr)
	record, err := scanEmployeeGrant(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.EmployeeGrant{}, apperrors.WithMetadata(
				apperrors.CodeNotFound,
				fmt.Sprintf("employee grant %s not found", addr),
				map[string]string{"Address": addr},
			)
		}
		return domain.EmployeeGrant{}, fmt.Errorf("get employee grant: %w", err)
	}
	return record, nil
}

// ListEmployeeGrants returns the schedules under one grant.
func (s *Store) ListEmployeeGrants(ctx context.Context, grantAddr string) ([]domain.EmployeeGrant, error) {
	return s.listEmployeeGrants(ctx, `
SELECT `+employeeGrantColumns+`
FROM employee_grants WHERE grant_address = ? ORDER BY created_at, address
`, grantAddr)
}

// ListEmployeeGrantsByBeneficiary returns every schedule for a beneficiary.
func (s *Store) ListEmployeeGrantsByBeneficiary(ctx context.Context, beneficiary string) ([]domain.EmployeeGrant, error) {
	return s.listEmployeeGrants(ctx, `
SELECT `+employeeGrantColumns+`
FROM employee_grants WHERE beneficiary = ? ORDER BY created_at, address
`, beneficiary)
}

func (s *Store) listEmployeeGrants(ctx context.Context, query string, arg any) ([]domain.EmployeeGrant, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list employee grants: %w", err)
	}
	defer rows.Close()

	var records []domain.EmployeeGrant
	for rows.Next() {
		record, err := scanEmployeeGrant(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan employee grant: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate employee grants: %w", err)
	}
	return records, nil
}

func scanEmployeeGrant(scan func(...any) error) (domain.EmployeeGrant, error) {
	var record domain.EmployeeGrant
	var createdAt int64
	var updatedAt int64
	if err := scan(
		&record.Address,
		&record.Beneficiary,
		&record.GrantAddress,
		&record.StartTime,
		&record.CliffTime,
		&record.EndTime,
		&record.TotalAmount,
		&record.TotalWithdrawn,
		&createdAt,
		&updatedAt,
	); err != nil {
		return domain.EmployeeGrant{}, err
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}
