package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/vestledger/vestledger/internal/platform/errors"
	"github.com/vestledger/vestledger/internal/vesting/address"
)

var (
	// ErrEmptyBeneficiary indicates a missing beneficiary identity.
	ErrEmptyBeneficiary = apperrors.New(apperrors.CodeBeneficiaryEmpty, "beneficiary is required")
)

// EmployeeGrant is a per-beneficiary release schedule under a grant.
//
// TotalWithdrawn only grows, and never past TotalAmount. The record is
// created once by the grant owner and mutated only by successful claims.
type EmployeeGrant struct {
	// Address is derived from (employee, Beneficiary, GrantAddress), so a
	// beneficiary can hold at most one record per grant.
	Address string
	// Beneficiary is the identity entitled to withdraw.
	Beneficiary string
	// GrantAddress is a lookup reference to the owning grant.
	GrantAddress string
	// StartTime, CliffTime and EndTime are unix seconds with
	// StartTime <= CliffTime <= EndTime and StartTime < EndTime.
	StartTime int64
	CliffTime int64
	EndTime   int64
	// TotalAmount is the full allocation, fixed at creation.
	TotalAmount int64
	// TotalWithdrawn is the amount already paid out.
	TotalWithdrawn int64
	// CreatedAt is the timestamp when the record was created.
	CreatedAt time.Time
	// UpdatedAt is the timestamp of the last successful claim.
	UpdatedAt time.Time
}

// CreateEmployeeGrantInput describes a new release schedule.
type CreateEmployeeGrantInput struct {
	Beneficiary  string
	GrantAddress string
	StartTime    int64
	CliffTime    int64
	EndTime      int64
	TotalAmount  int64
}

// CreateEmployeeGrant validates the schedule and derives the record address.
func CreateEmployeeGrant(input CreateEmployeeGrantInput, now func() time.Time) (EmployeeGrant, error) {
	if now == nil {
		now = time.Now
	}

	input.Beneficiary = strings.TrimSpace(input.Beneficiary)
	input.GrantAddress = strings.TrimSpace(input.GrantAddress)
	if input.Beneficiary == "" {
		return EmployeeGrant{}, ErrEmptyBeneficiary
	}
	if input.GrantAddress == "" {
		return EmployeeGrant{}, apperrors.New(apperrors.CodeNotFound, "grant address is required")
	}
	if err := ValidateSchedule(input.StartTime, input.CliffTime, input.EndTime, input.TotalAmount); err != nil {
		return EmployeeGrant{}, err
	}

	addr, err := address.DeriveStrings(address.NamespaceEmployee, input.Beneficiary, input.GrantAddress)
	if err != nil {
		return EmployeeGrant{}, fmt.Errorf("derive employee grant address: %w", err)
	}

	createdAt := now().UTC()
	return EmployeeGrant{
		Address:        addr,
		Beneficiary:    input.Beneficiary,
		GrantAddress:   input.GrantAddress,
		StartTime:      input.StartTime,
		CliffTime:      input.CliffTime,
		EndTime:        input.EndTime,
		TotalAmount:    input.TotalAmount,
		TotalWithdrawn: 0,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}, nil
}

// ValidateSchedule enforces the schedule ordering and a positive allocation.
// Zero-duration schedules are rejected here so the vesting formula never
// divides by zero.
func ValidateSchedule(startTime, cliffTime, endTime, totalAmount int64) error {
	if startTime > cliffTime || cliffTime > endTime {
		return apperrors.WithMetadata(
			apperrors.CodeInvalidSchedule,
			fmt.Sprintf("schedule must satisfy start <= cliff <= end, got %d/%d/%d", startTime, cliffTime, endTime),
			map[string]string{
				"StartTime": fmt.Sprintf("%d", startTime),
				"CliffTime": fmt.Sprintf("%d", cliffTime),
				"EndTime":   fmt.Sprintf("%d", endTime),
			},
		)
	}
	if startTime == endTime {
		return apperrors.New(apperrors.CodeInvalidSchedule, "schedule duration must be positive")
	}
	if totalAmount <= 0 {
		return apperrors.WithMetadata(
			apperrors.CodeInvalidSchedule,
			fmt.Sprintf("total amount must be positive, got %d", totalAmount),
			map[string]string{"TotalAmount": fmt.Sprintf("%d", totalAmount)},
		)
	}
	return nil
}
