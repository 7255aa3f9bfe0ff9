package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/vestledger/vestledger/internal/platform/errors"
	"github.com/vestledger/vestledger/internal/vesting/address"
)

var (
	// ErrEmptyName indicates a missing grant name.
	ErrEmptyName = apperrors.New(apperrors.CodeGrantNameEmpty, "grant name is required")
	// ErrEmptyAsset indicates a missing asset identifier.
	ErrEmptyAsset = apperrors.New(apperrors.CodeGrantAssetEmpty, "grant asset is required")
	// ErrEmptyOwner indicates a missing owner identity.
	ErrEmptyOwner = apperrors.New(apperrors.CodeGrantOwnerEmpty, "grant owner is required")
)

// Grant is a company-level vesting account. Its escrow account holds the
// undistributed tokens designated for the grant's employee schedules.
//
// Address and EscrowAddress are derived from Name and never drift from it:
// both can be recomputed at any time to detect tampering.
type Grant struct {
	// Address is derived from (grant, Name).
	Address string
	// Owner is the identity authorized to create employee grants.
	Owner string
	// Name is the human-readable unique key and derivation seed. It is
	// immutable once the grant exists.
	Name string
	// Asset identifies the fungible token being vested.
	Asset string
	// EscrowAddress is derived from (treasury, Name) and holds the
	// undistributed tokens for this grant.
	EscrowAddress string
	// CreatedAt is the timestamp when the grant was created.
	CreatedAt time.Time
}

// CreateGrantInput describes the metadata needed to create a grant.
type CreateGrantInput struct {
	Owner string
	Name  string
	Asset string
}

// CreateGrant validates input and derives both grant addresses.
func CreateGrant(input CreateGrantInput, now func() time.Time) (Grant, error) {
	if now == nil {
		now = time.Now
	}

	normalized, err := NormalizeCreateGrantInput(input)
	if err != nil {
		return Grant{}, err
	}

	grantAddr, err := address.DeriveStrings(address.NamespaceGrant, normalized.Name)
	if err != nil {
		return Grant{}, fmt.Errorf("derive grant address: %w", err)
	}
	escrowAddr, err := address.DeriveStrings(address.NamespaceTreasury, normalized.Name)
	if err != nil {
		return Grant{}, fmt.Errorf("derive escrow address: %w", err)
	}

	return Grant{
		Address:       grantAddr,
		Owner:         normalized.Owner,
		Name:          normalized.Name,
		Asset:         normalized.Asset,
		EscrowAddress: escrowAddr,
		CreatedAt:     now().UTC(),
	}, nil
}

// NormalizeCreateGrantInput trims and validates grant input metadata.
func NormalizeCreateGrantInput(input CreateGrantInput) (CreateGrantInput, error) {
	input.Owner = strings.TrimSpace(input.Owner)
	input.Name = strings.TrimSpace(input.Name)
	input.Asset = strings.TrimSpace(input.Asset)
	if input.Owner == "" {
		return CreateGrantInput{}, ErrEmptyOwner
	}
	if input.Name == "" {
		return CreateGrantInput{}, ErrEmptyName
	}
	if input.Asset == "" {
		return CreateGrantInput{}, ErrEmptyAsset
	}
	return input, nil
}

// VerifyGrant recomputes both derived addresses from the grant name and
// reports a mismatch against the stored values. A mismatch means the record
// was altered after creation.
func VerifyGrant(grant Grant) error {
	grantAddr, err := address.DeriveStrings(address.NamespaceGrant, grant.Name)
	if err != nil {
		return fmt.Errorf("recompute grant address: %w", err)
	}
	escrowAddr, err := address.DeriveStrings(address.NamespaceTreasury, grant.Name)
	if err != nil {
		return fmt.Errorf("recompute escrow address: %w", err)
	}
	if grantAddr != grant.Address || escrowAddr != grant.EscrowAddress {
		return apperrors.WithMetadata(
			apperrors.CodeGrantTampered,
			fmt.Sprintf("derived addresses do not match stored record for grant %q", grant.Name),
			map[string]string{"Name": grant.Name},
		)
	}
	return nil
}
