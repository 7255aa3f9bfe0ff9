package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/vestledger/vestledger/internal/platform/errors"
	"github.com/vestledger/vestledger/internal/vesting/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "vesting.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return store
}

func fixedClock() time.Time {
	return time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
}

func mustCreateGrant(t *testing.T, name string) domain.Grant {
	t.Helper()
	grant, err := domain.CreateGrant(domain.CreateGrantInput{
		Owner: "owner-1",
		Name:  name,
		Asset: "TOK",
	}, fixedClock)
	if err != nil {
		t.Fatalf("CreateGrant: %v", err)
	}
	return grant
}

func mustCreateEmployeeGrant(t *testing.T, grant domain.Grant, beneficiary string) domain.EmployeeGrant {
	t.Helper()
	record, err := domain.CreateEmployeeGrant(domain.CreateEmployeeGrantInput{
		Beneficiary:  beneficiary,
		GrantAddress: grant.Address,
		StartTime:    1000,
		CliffTime:    1000,
		EndTime:      2000,
		TotalAmount:  1000,
	}, fixedClock)
	if err != nil {
		t.Fatalf("CreateEmployeeGrant: %v", err)
	}
	return record
}

func TestOpenAppliesPragmas(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	var journalMode string
	if err := store.sqlDB.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %q, want wal", journalMode)
	}

	var foreignKeys int64
	if err := store.sqlDB.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&foreignKeys); err != nil {
		t.Fatalf("query foreign_keys: %v", err)
	}
	if foreignKeys != 1 {
		t.Errorf("foreign_keys = %d, want 1", foreignKeys)
	}

	var busyTimeout int64
	if err := store.sqlDB.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&busyTimeout); err != nil {
		t.Fatalf("query busy_timeout: %v", err)
	}
	if busyTimeout != 5000 {
		t.Errorf("busy_timeout = %d, want 5000", busyTimeout)
	}
}

func TestPutEmployeeGrantUnknownGrant(t *testing.T) {
	store := openTestStore(t)

	grant := mustCreateGrant(t, "acme-2026")
	record := mustCreateEmployeeGrant(t, grant, "alice")

	// The grant was never stored, so the foreign key must reject the
	// schedule.
	if err := store.PutEmployeeGrant(context.Background(), record); err == nil {
		t.Fatal("expected error inserting schedule for unknown grant")
	}
}

func TestPutGetGrant(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	grant := mustCreateGrant(t, "acme-2026")
	if err := store.PutGrant(ctx, grant); err != nil {
		t.Fatalf("PutGrant: %v", err)
	}

	got, err := store.GetGrant(ctx, grant.Address)
	if err != nil {
		t.Fatalf("GetGrant: %v", err)
	}
	if got.Address != grant.Address || got.Owner != grant.Owner ||
		got.Name != grant.Name || got.Asset != grant.Asset ||
		got.EscrowAddress != grant.EscrowAddress {
		t.Errorf("GetGrant = %+v, want %+v", got, grant)
	}
	if !got.CreatedAt.Equal(grant.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, grant.CreatedAt)
	}

	// The escrow account must exist with a zero balance.
	balance, err := store.Balance(ctx, grant.EscrowAddress, grant.Asset)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance != 0 {
		t.Errorf("escrow balance = %d, want 0", balance)
	}
}

func TestPutGrantDuplicate(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	grant := mustCreateGrant(t, "acme-2026")
	if err := store.PutGrant(ctx, grant); err != nil {
		t.Fatalf("PutGrant: %v", err)
	}

	err := store.PutGrant(ctx, grant)
	if !apperrors.IsCode(err, apperrors.CodeAlreadyExists) {
		t.Errorf("duplicate PutGrant error = %v, want code %s", err, apperrors.CodeAlreadyExists)
	}
}

func TestGetGrantNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetGrant(context.Background(), "missing")
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Errorf("GetGrant error = %v, want code %s", err, apperrors.CodeNotFound)
	}
}

func TestListGrants(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	names := []string{"acme-2026", "globex-2026", "initech-2026"}
	for _, name := range names {
		if err := store.PutGrant(ctx, mustCreateGrant(t, name)); err != nil {
			t.Fatalf("PutGrant(%s): %v", name, err)
		}
	}

	grants, err := store.ListGrants(ctx)
	if err != nil {
		t.Fatalf("ListGrants: %v", err)
	}
	if len(grants) != len(names) {
		t.Errorf("ListGrants returned %d grants, want %d", len(grants), len(names))
	}
}

func TestPutGetEmployeeGrant(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	grant := mustCreateGrant(t, "acme-2026")
	if err := store.PutGrant(ctx, grant); err != nil {
		t.Fatalf("PutGrant: %v", err)
	}

	record := mustCreateEmployeeGrant(t, grant, "alice")
	if err := store.PutEmployeeGrant(ctx, record); err != nil {
		t.Fatalf("PutEmployeeGrant: %v", err)
	}

	got, err := store.GetEmployeeGrant(ctx, record.Address)
	if err != nil {
		t.Fatalf("GetEmployeeGrant: %v", err)
	}
	if got.Address != record.Address || got.Beneficiary != record.Beneficiary ||
		got.GrantAddress != record.GrantAddress ||
		got.StartTime != record.StartTime || got.CliffTime != record.CliffTime ||
		got.EndTime != record.EndTime || got.TotalAmount != record.TotalAmount ||
		got.TotalWithdrawn != 0 {
		t.Errorf("GetEmployeeGrant = %+v, want %+v", got, record)
	}
	if !got.CreatedAt.Equal(record.CreatedAt) || !got.UpdatedAt.Equal(record.UpdatedAt) {
		t.Errorf("timestamps = %v/%v, want %v/%v", got.CreatedAt, got.UpdatedAt, record.CreatedAt, record.UpdatedAt)
	}
}

func TestPutEmployeeGrantDuplicate(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	grant := mustCreateGrant(t, "acme-2026")
	if err := store.PutGrant(ctx, grant); err != nil {
		t.Fatalf("PutGrant: %v", err)
	}

	record := mustCreateEmployeeGrant(t, grant, "alice")
	if err := store.PutEmployeeGrant(ctx, record); err != nil {
		t.Fatalf("PutEmployeeGrant: %v", err)
	}

	err := store.PutEmployeeGrant(ctx, record)
	if !apperrors.IsCode(err, apperrors.CodeAlreadyExists) {
		t.Errorf("duplicate PutEmployeeGrant error = %v, want code %s", err, apperrors.CodeAlreadyExists)
	}
}

func TestListEmployeeGrants(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := mustCreateGrant(t, "acme-2026")
	second := mustCreateGrant(t, "globex-2026")
	for _, grant := range []domain.Grant{first, second} {
		if err := store.PutGrant(ctx, grant); err != nil {
			t.Fatalf("PutGrant: %v", err)
		}
	}

	for _, beneficiary := range []string{"alice", "bob"} {
		if err := store.PutEmployeeGrant(ctx, mustCreateEmployeeGrant(t, first, beneficiary)); err != nil {
			t.Fatalf("PutEmployeeGrant(%s): %v", beneficiary, err)
		}
	}
	if err := store.PutEmployeeGrant(ctx, mustCreateEmployeeGrant(t, second, "alice")); err != nil {
		t.Fatalf("PutEmployeeGrant: %v", err)
	}

	byGrant, err := store.ListEmployeeGrants(ctx, first.Address)
	if err != nil {
		t.Fatalf("ListEmployeeGrants: %v", err)
	}
	if len(byGrant) != 2 {
		t.Errorf("ListEmployeeGrants returned %d records, want 2", len(byGrant))
	}

	byBeneficiary, err := store.ListEmployeeGrantsByBeneficiary(ctx, "alice")
	if err != nil {
		t.Fatalf("ListEmployeeGrantsByBeneficiary: %v", err)
	}
	if len(byBeneficiary) != 2 {
		t.Errorf("ListEmployeeGrantsByBeneficiary returned %d records, want 2", len(byBeneficiary))
	}
	for _, record := range byBeneficiary {
		if record.Beneficiary != "alice" {
			t.Errorf("record %s has beneficiary %s, want alice", record.Address, record.Beneficiary)
		}
	}
}
