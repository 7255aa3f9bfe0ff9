// Package core implements the vesting operations: grant creation, employee
// schedule creation, and claims. Authorization decisions live here; the
// caller identity is proven externally and treated as untrusted input.
package core

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/vestledger/vestledger/internal/platform/errors"
	"github.com/vestledger/vestledger/internal/vesting/domain"
	"github.com/vestledger/vestledger/internal/vesting/storage"
)

const tracerName = "github.com/vestledger/vestledger/internal/vesting/core"

// Service runs vesting operations against a store and treasury.
type Service struct {
	store  storage.Store
	now    func() time.Time
	tracer trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the service clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a vesting service over the given store.
func NewService(store storage.Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		now:    time.Now,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateGrantInput describes a new company grant. The caller becomes the
// grant owner.
type CreateGrantInput struct {
	Caller string
	Name   string
	Asset  string
}

// CreateGrant derives the grant and escrow addresses from the name and
// persists the new grant with a zero escrow balance.
func (s *Service) CreateGrant(ctx context.Context, input CreateGrantInput) (domain.Grant, error) {
	ctx, span := s.tracer.Start(ctx, "vesting.CreateGrant")
	defer span.End()

	grant, err := domain.CreateGrant(domain.CreateGrantInput{
		Owner: input.Caller,
		Name:  input.Name,
		Asset: input.Asset,
	}, s.now)
	if err != nil {
		return domain.Grant{}, err
	}

	if err := s.store.PutGrant(ctx, grant); err != nil {
		return domain.Grant{}, err
	}
	return grant, nil
}

// GetGrant loads a grant by address.
func (s *Service) GetGrant(ctx context.Context, addr string) (domain.Grant, error) {
	ctx, span := s.tracer.Start(ctx, "vesting.GetGrant")
	defer span.End()
	return s.store.GetGrant(ctx, addr)
}

// ListGrants returns every grant.
func (s *Service) ListGrants(ctx context.Context) ([]domain.Grant, error) {
	ctx, span := s.tracer.Start(ctx, "vesting.ListGrants")
	defer span.End()
	return s.store.ListGrants(ctx)
}

// CreateEmployeeGrantInput describes a new release schedule. Only the grant
// owner may create one.
type CreateEmployeeGrantInput struct {
	Caller       string
	GrantAddress string
	Beneficiary  string
	StartTime    int64
	CliffTime    int64
	EndTime      int64
	TotalAmount  int64
}

// CreateEmployeeGrant validates the schedule and persists the record with a
// zero withdrawal counter. Escrow funding is a separate action.
func (s *Service) CreateEmployeeGrant(ctx context.Context, input CreateEmployeeGrantInput) (domain.EmployeeGrant, error) {
	ctx, span := s.tracer.Start(ctx, "vesting.CreateEmployeeGrant")
	defer span.End()

	grant, err := s.store.GetGrant(ctx, input.GrantAddress)
	if err != nil {
		return domain.EmployeeGrant{}, err
	}
	if input.Caller != grant.Owner {
		return domain.EmployeeGrant{}, apperrors.WithMetadata(
			apperrors.CodeUnauthorized,
			"only the grant owner may create employee grants",
			map[string]string{"GrantAddress": grant.Address},
		)
	}

	record, err := domain.CreateEmployeeGrant(domain.CreateEmployeeGrantInput{
		Beneficiary:  input.Beneficiary,
		GrantAddress: grant.Address,
		StartTime:    input.StartTime,
		CliffTime:    input.CliffTime,
		EndTime:      input.EndTime,
		TotalAmount:  input.TotalAmount,
	}, s.now)
	if err != nil {
		return domain.EmployeeGrant{}, err
	}

	if err := s.store.PutEmployeeGrant(ctx, record); err != nil {
		return domain.EmployeeGrant{}, err
	}
	return record, nil
}

// GetEmployeeGrant loads a schedule by address.
func (s *Service) GetEmployeeGrant(ctx context.Context, addr string) (domain.EmployeeGrant, error) {
	ctx, span := s.tracer.Start(ctx, "vesting.GetEmployeeGrant")
	defer span.End()
	return s.store.GetEmployeeGrant(ctx, addr)
}

// ListEmployeeGrants returns the schedules under a grant.
func (s *Service) ListEmployeeGrants(ctx context.Context, grantAddr string) ([]domain.EmployeeGrant, error) {
	ctx, span := s.tracer.Start(ctx, "vesting.ListEmployeeGrants")
	defer span.End()
	return s.store.ListEmployeeGrants(ctx, grantAddr)
}

// ListEmployeeGrantsByBeneficiary returns every schedule for a beneficiary.
func (s *Service) ListEmployeeGrantsByBeneficiary(ctx context.Context, beneficiary string) ([]domain.EmployeeGrant, error) {
	ctx, span := s.tracer.Start(ctx, "vesting.ListEmployeeGrantsByBeneficiary")
	defer span.End()
	return s.store.ListEmployeeGrantsByBeneficiary(ctx, beneficiary)
}

// ClaimInput identifies a claim attempt.
type ClaimInput struct {
	Caller          string
	EmployeeAddress string
}

// ClaimResult reports a successful claim.
type ClaimResult struct {
	AmountPaid int64
	Receipt    string
}

// Claim pays out the currently claimable amount to the beneficiary.
//
// The escrow transfer and the withdrawal counter update are one atomic
// unit; when the transfer fails, the counter stays unchanged. Repeating the
// claim at the same instant fails with NOTHING_TO_CLAIM.
func (s *Service) Claim(ctx context.Context, input ClaimInput) (ClaimResult, error) {
	ctx, span := s.tracer.Start(ctx, "vesting.Claim")
	defer span.End()

	record, err := s.store.GetEmployeeGrant(ctx, input.EmployeeAddress)
	if err != nil {
		return ClaimResult{}, err
	}
	if input.Caller != record.Beneficiary {
		return ClaimResult{}, apperrors.WithMetadata(
			apperrors.CodeUnauthorized,
			"only the beneficiary may claim",
			map[string]string{"EmployeeAddress": record.Address},
		)
	}

	grant, err := s.store.GetGrant(ctx, record.GrantAddress)
	if err != nil {
		return ClaimResult{}, err
	}

	now := s.now().UTC()
	nowUnix := now.Unix()

	// The cliff is an absolute gate, checked before the linear formula.
	if nowUnix < record.CliffTime {
		return ClaimResult{}, apperrors.WithMetadata(
			apperrors.CodeClaimNotAvailableYet,
			fmt.Sprintf("cliff at %d has not passed (now %d)", record.CliffTime, nowUnix),
			map[string]string{
				"CliffTime": fmt.Sprintf("%d", record.CliffTime),
				"Now":       fmt.Sprintf("%d", nowUnix),
			},
		)
	}

	claimable := domain.ClaimableAt(record, nowUnix)
	if claimable <= 0 {
		return ClaimResult{}, apperrors.WithMetadata(
			apperrors.CodeNothingToClaim,
			"no vested amount is withdrawable",
			map[string]string{"EmployeeAddress": record.Address},
		)
	}

	receipt, err := s.store.ApplyClaim(ctx, storage.ClaimUpdate{
		EmployeeAddress: record.Address,
		PriorWithdrawn:  record.TotalWithdrawn,
		Amount:          claimable,
		Now:             now,
		Instruction: storage.TransferInstruction{
			Asset:  grant.Asset,
			From:   grant.EscrowAddress,
			To:     record.Beneficiary,
			Amount: claimable,
		},
	})
	if err != nil {
		return ClaimResult{}, err
	}

	return ClaimResult{AmountPaid: claimable, Receipt: receipt}, nil
}

// ClaimableAt previews the withdrawable amount at time t without side
// effects.
func (s *Service) ClaimableAt(ctx context.Context, employeeAddr string, t int64) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "vesting.ClaimableAt")
	defer span.End()

	record, err := s.store.GetEmployeeGrant(ctx, employeeAddr)
	if err != nil {
		return 0, err
	}
	if t < record.CliffTime {
		return 0, nil
	}
	return domain.ClaimableAt(record, t), nil
}

// FundEscrowInput moves tokens from a funding account into a grant escrow.
// From defaults to the caller's own treasury account.
type FundEscrowInput struct {
	Caller       string
	GrantAddress string
	From         string
	Amount       int64
}

// FundEscrow transfers tokens from the funding account into the grant's
// escrow. Only the grant owner may fund it.
func (s *Service) FundEscrow(ctx context.Context, input FundEscrowInput) (string, error) {
	ctx, span := s.tracer.Start(ctx, "vesting.FundEscrow")
	defer span.End()

	grant, err := s.store.GetGrant(ctx, input.GrantAddress)
	if err != nil {
		return "", err
	}
	if input.Caller != grant.Owner {
		return "", apperrors.WithMetadata(
			apperrors.CodeUnauthorized,
			"only the grant owner may fund the escrow",
			map[string]string{"GrantAddress": grant.Address},
		)
	}

	from := input.From
	if from == "" {
		from = input.Caller
	}
	return s.store.Transfer(ctx, storage.TransferInstruction{
		Asset:  grant.Asset,
		From:   from,
		To:     grant.EscrowAddress,
		Amount: input.Amount,
	})
}

// EscrowBalance reports the undistributed funds held for a grant.
func (s *Service) EscrowBalance(ctx context.Context, grantAddr string) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "vesting.EscrowBalance")
	defer span.End()

	grant, err := s.store.GetGrant(ctx, grantAddr)
	if err != nil {
		return 0, err
	}
	return s.store.Balance(ctx, grant.EscrowAddress, grant.Asset)
}

// VerifyGrant loads a grant and cross-checks its derived addresses against
// its name.
func (s *Service) VerifyGrant(ctx context.Context, grantAddr string) error {
	ctx, span := s.tracer.Start(ctx, "vesting.VerifyGrant")
	defer span.End()

	grant, err := s.store.GetGrant(ctx, grantAddr)
	if err != nil {
		return err
	}
	return domain.VerifyGrant(grant)
}
