// Package errors provides structured error handling for the vesting engine.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Grant errors
	CodeGrantNameEmpty  Code = "GRANT_NAME_EMPTY"
	CodeGrantAssetEmpty Code = "GRANT_ASSET_EMPTY"
	CodeGrantOwnerEmpty Code = "GRANT_OWNER_EMPTY"
	CodeGrantTampered   Code = "GRANT_TAMPERED"

	// Employee grant errors
	CodeBeneficiaryEmpty Code = "BENEFICIARY_EMPTY"
	CodeInvalidSchedule  Code = "INVALID_SCHEDULE"

	// Claim errors
	CodeClaimNotAvailableYet Code = "CLAIM_NOT_AVAILABLE_YET"
	CodeNothingToClaim       Code = "NOTHING_TO_CLAIM"

	// Authorization errors
	CodeUnauthorized Code = "UNAUTHORIZED"

	// Address derivation errors
	CodeSeedTooLong Code = "SEED_TOO_LONG"

	// Storage errors
	CodeNotFound      Code = "NOT_FOUND"
	CodeAlreadyExists Code = "ALREADY_EXISTS"

	// Treasury errors
	CodeTransferFailed     Code = "TRANSFER_FAILED"
	CodeInvalidAmount      Code = "INVALID_AMOUNT"
	CodeInsufficientEscrow Code = "INSUFFICIENT_ESCROW"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeGrantNameEmpty,
		CodeGrantAssetEmpty,
		CodeGrantOwnerEmpty,
		CodeBeneficiaryEmpty,
		CodeInvalidSchedule,
		CodeSeedTooLong,
		CodeInvalidAmount:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeClaimNotAvailableYet,
		CodeNothingToClaim,
		CodeInsufficientEscrow,
		CodeGrantTampered:
		return codes.FailedPrecondition

	// PermissionDenied - caller is not the required principal
	case CodeUnauthorized:
		return codes.PermissionDenied

	// NotFound - resource doesn't exist
	case CodeNotFound:
		return codes.NotFound

	// AlreadyExists - derived address collision on creation
	case CodeAlreadyExists:
		return codes.AlreadyExists

	// Aborted - the enclosing transaction was rolled back
	case CodeTransferFailed:
		return codes.Aborted

	default:
		return codes.Internal
	}
}
