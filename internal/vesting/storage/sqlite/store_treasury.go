package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/vestledger/vestledger/internal/platform/errors"
	"github.com/vestledger/vestledger/internal/platform/id"
	"github.com/vestledger/vestledger/internal/vesting/storage"
)

type execContexter interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Transfer moves tokens between ledger accounts in one transaction.
func (s *Store) Transfer(ctx context.Context, instruction storage.TransferInstruction) (string, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transfer: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	receipt, err := moveFunds(ctx, tx, instruction)
	if err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit transfer: %w", err)
	}
	return receipt, nil
}

// Balance reports an account's ledger balance; unknown accounts hold zero.
func (s *Store) Balance(ctx context.Context, account, asset string) (int64, error) {
	var balance int64
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT balance FROM treasury_accounts WHERE account = ? AND asset = ?
`, account, asset)
	if err := row.Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// Deposit credits tokens to an account. It is the ledger's on-ramp for
// funding sources; real custodians receive funds out of band.
func (s *Store) Deposit(ctx context.Context, account, asset string, amount int64) error {
	if amount <= 0 {
		return apperrors.New(apperrors.CodeInvalidAmount, "deposit amount must be positive")
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO treasury_accounts (account, asset, balance) VALUES (?, ?, ?)
ON CONFLICT(account, asset) DO UPDATE SET balance = balance + excluded.balance
`, account, asset, amount)
	if err != nil {
		return fmt.Errorf("deposit: %w", err)
	}
	return nil
}

// ApplyClaim moves the claimable amount out of escrow and bumps the
// withdrawal counter as one transaction. The counter update is guarded by
// a compare-and-set on the value read when the claim was computed, so a
// racing claim that already consumed the vested window rolls the transfer
// back instead of paying twice.
func (s *Store) ApplyClaim(ctx context.Context, update storage.ClaimUpdate) (string, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin claim: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	receipt, err := moveFunds(ctx, tx, update.Instruction)
	if err != nil {
		return "", apperrors.WrapWithMetadata(
			apperrors.CodeTransferFailed,
			fmt.Sprintf("escrow transfer of %d failed", update.Instruction.Amount),
			map[string]string{"EmployeeAddress": update.EmployeeAddress},
			err,
		)
	}

	result, err := tx.ExecContext(ctx, `
UPDATE employee_grants
SET total_withdrawn = total_withdrawn + ?, updated_at = ?
WHERE address = ? AND total_withdrawn = ?
`,
		update.Amount,
		toMillis(update.Now),
		update.EmployeeAddress,
		update.PriorWithdrawn,
	)
	if err != nil {
		return "", fmt.Errorf("update withdrawal counter: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("claim rows affected: %w", err)
	}
	if affected == 0 {
		// Another claim consumed this vested window first; recomputing at
		// the same instant would yield zero.
		return "", apperrors.WithMetadata(
			apperrors.CodeNothingToClaim,
			"vested window already withdrawn",
			map[string]string{"EmployeeAddress": update.EmployeeAddress},
		)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit claim: %w", err)
	}
	return receipt, nil
}

// moveFunds debits the source, credits the destination and records a
// receipt, all against the caller's transaction.
func moveFunds(ctx context.Context, target execContexter, instruction storage.TransferInstruction) (string, error) {
	if instruction.Amount <= 0 {
		return "", apperrors.New(apperrors.CodeInvalidAmount, "transfer amount must be positive")
	}

	result, err := target.ExecContext(ctx, `
UPDATE treasury_accounts
SET balance = balance - ?
WHERE account = ? AND asset = ? AND balance >= ?
`,
		instruction.Amount,
		instruction.From,
		instruction.Asset,
		instruction.Amount,
	)
	if err != nil {
		return "", fmt.Errorf("debit %s: %w", instruction.From, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("debit rows affected: %w", err)
	}
	if affected == 0 {
		return "", apperrors.WithMetadata(
			apperrors.CodeInsufficientEscrow,
			fmt.Sprintf("account %s holds less than %d %s", instruction.From, instruction.Amount, instruction.Asset),
			map[string]string{
				"Account": instruction.From,
				"Asset":   instruction.Asset,
			},
		)
	}

	_, err = target.ExecContext(ctx, `
INSERT INTO treasury_accounts (account, asset, balance) VALUES (?, ?, ?)
ON CONFLICT(account, asset) DO UPDATE SET balance = balance + excluded.balance
`, instruction.To, instruction.Asset, instruction.Amount)
	if err != nil {
		return "", fmt.Errorf("credit %s: %w", instruction.To, err)
	}

	receipt, err := id.NewID()
	if err != nil {
		return "", fmt.Errorf("generate receipt id: %w", err)
	}
	_, err = target.ExecContext(ctx, `
INSERT INTO treasury_transfers (id, asset, from_account, to_account, amount, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`,
		receipt,
		instruction.Asset,
		instruction.From,
		instruction.To,
		instruction.Amount,
		time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("record transfer receipt: %w", err)
	}

	return receipt, nil
}
