// Package sqlite implements vesting storage and the reference treasury
// ledger over a single SQLite file, so every claim can move escrow funds
// and bump the withdrawal counter inside one database transaction.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/vestledger/vestledger/internal/platform/errors"
	"github.com/vestledger/vestledger/internal/platform/storage/sqlitemigrate"
	"github.com/vestledger/vestledger/internal/vesting/domain"
	"github.com/vestledger/vestledger/internal/vesting/storage"
	"github.com/vestledger/vestledger/internal/vesting/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store implements vesting persistence and the treasury ledger over SQLite.
//
// One SQLite file backs both concerns so a claim's escrow movement and its
// accounting update share a transaction and its visibility boundaries.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a vesting SQLite store and applies bundled migrations.
//
// Transactions are opened with an immediate lock so concurrent writers
// serialize at begin instead of failing at commit.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_txlock=immediate&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}

	if err := store.runMigrations(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return store, nil
}

// Close releases the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// runMigrations applies embedded DDL snapshots for known schema versions.
func (s *Store) runMigrations() error {
	return sqlitemigrate.ApplyMigrations(s.sqlDB, migrations.FS, "")
}

// isUniqueViolation detects SQLite unique/primary-key constraint failures.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "unique constraint failed")
}

// PutGrant stores a new grant and opens its escrow account at zero balance.
func (s *Store) PutGrant(ctx context.Context, grant domain.Grant) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put grant: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
INSERT INTO grants (address, owner, name, asset, escrow_address, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`,
		grant.Address,
		grant.Owner,
		grant.Name,
		grant.Asset,
		grant.EscrowAddress,
		toMillis(grant.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.WrapWithMetadata(
				apperrors.CodeAlreadyExists,
				fmt.Sprintf("grant %q already exists", grant.Name),
				map[string]string{"Name": grant.Name},
				err,
			)
		}
		return fmt.Errorf("insert grant: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
INSERT OR IGNORE INTO treasury_accounts (account, asset, balance) VALUES (?, ?, 0)
`, grant.EscrowAddress, grant.Asset)
	if err != nil {
		return fmt.Errorf("open escrow account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put grant: %w", err)
	}
	return nil
}

// GetGrant loads a grant by its derived address.
func (s *Store) GetGrant(ctx context.Context, addr string) (domain.Grant, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT address, owner, name, asset, escrow_address, created_at
FROM grants WHERE address = ?
`, addr)
	grant, err := scanGrant(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Grant{}, apperrors.WithMetadata(
				apperrors.CodeNotFound,
				fmt.Sprintf("grant %s not found", addr),
				map[string]string{"Address": addr},
			)
		}
		return domain.Grant{}, fmt.Errorf("get grant: %w", err)
	}
	return grant, nil
}

// ListGrants returns every grant ordered by creation time.
func (s *Store) ListGrants(ctx context.Context) ([]domain.Grant, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT address, owner, name, asset, escrow_address, created_at
FROM grants ORDER BY created_at, address
`)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	var grants []domain.Grant
	for rows.Next() {
		grant, err := scanGrant(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		grants = append(grants, grant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grants: %w", err)
	}
	return grants, nil
}

func scanGrant(scan func(...any) error) (domain.Grant, error) {
	var grant domain.Grant
	var createdAt int64
	if err := scan(
		&grant.Address,
		&grant.Owner,
		&grant.Name,
		&grant.Asset,
		&grant.EscrowAddress,
		&createdAt,
	); err != nil {
		return domain.Grant{}, err
	}
	grant.CreatedAt = fromMillis(createdAt)
	return grant, nil
}

var _ storage.GrantStore = (*Store)(nil)
var _ storage.EmployeeGrantStore = (*Store)(nil)
var _ storage.Treasury = (*Store)(nil)
var _ storage.Store = (*Store)(nil)
