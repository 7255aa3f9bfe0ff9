// Package storage defines the persistence and treasury contracts consumed
// by the vesting core. Implementations must make every state-changing call
// atomic: it either fully applies or leaves the store unchanged.
package storage

import (
	"context"
	"time"

	"github.com/vestledger/vestledger/internal/vesting/domain"
)

// TransferInstruction asks the treasury to move tokens between accounts.
type TransferInstruction struct {
	Asset  string
	From   string
	To     string
	Amount int64
}

// Treasury is the token-custody collaborator. Transfer moves exactly the
// requested amount or fails without side effects, returning a receipt
// identifier on success.
type Treasury interface {
	Transfer(ctx context.Context, instruction TransferInstruction) (receipt string, err error)
	Balance(ctx context.Context, account, asset string) (int64, error)
}

// ClaimUpdate applies one successful claim: the escrow movement and the
// withdrawal counter bump are a single atomic unit. PriorWithdrawn is the
// counter value read when the claim was computed; the store must reject the
// update when the stored counter no longer matches, so two racing claims
// can never both pay out the same vested window.
type ClaimUpdate struct {
	EmployeeAddress string
	PriorWithdrawn  int64
	Amount          int64
	Instruction     TransferInstruction
	// Now stamps the record's UpdatedAt.
	Now time.Time
}

// GrantStore persists company grants.
type GrantStore interface {
	// PutGrant stores a new grant. Fails with ALREADY_EXISTS when the
	// derived address is already occupied.
	PutGrant(ctx context.Context, grant domain.Grant) error
	// GetGrant fails with NOT_FOUND when the address is unknown.
	GetGrant(ctx context.Context, addr string) (domain.Grant, error)
	ListGrants(ctx context.Context) ([]domain.Grant, error)
}

// EmployeeGrantStore persists per-beneficiary schedules and applies claims.
type EmployeeGrantStore interface {
	// PutEmployeeGrant stores a new record. Fails with ALREADY_EXISTS when
	// a record for the same (beneficiary, grant) pair is present.
	PutEmployeeGrant(ctx context.Context, record domain.EmployeeGrant) error
	// GetEmployeeGrant fails with NOT_FOUND when the address is unknown.
	GetEmployeeGrant(ctx context.Context, addr string) (domain.EmployeeGrant, error)
	ListEmployeeGrants(ctx context.Context, grantAddr string) ([]domain.EmployeeGrant, error)
	ListEmployeeGrantsByBeneficiary(ctx context.Context, beneficiary string) ([]domain.EmployeeGrant, error)
	// ApplyClaim performs the escrow transfer and counter update in one
	// transaction, returning the transfer receipt. A stale PriorWithdrawn
	// fails with NOTHING_TO_CLAIM; a transfer the treasury cannot honor
	// fails with TRANSFER_FAILED and leaves the counter unchanged.
	ApplyClaim(ctx context.Context, update ClaimUpdate) (receipt string, err error)
}

// Store combines every persistence concern the engine needs.
type Store interface {
	GrantStore
	EmployeeGrantStore
	Treasury
}
