// Package main provides administrative audit utilities for the vesting
// store.
//
// The audit recomputes every derived grant address from its name and
// cross-checks the treasury ledger against outstanding vesting
// obligations, so silent corruption or tampering in the database surfaces
// as a non-zero exit.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	apperrors "github.com/vestledger/vestledger/internal/platform/errors"
	"github.com/vestledger/vestledger/internal/vesting/domain"
	"github.com/vestledger/vestledger/internal/vesting/storage/sqlite"
)

type grantReport struct {
	Address       string
	Name          string
	Tampered      bool
	Schedules     int
	Allocated     int64
	Withdrawn     int64
	EscrowBalance int64
	// Underfunded is true when the escrow holds less than the remaining
	// unvested obligations. Legal before funding, but worth surfacing.
	Underfunded bool
	// CounterViolations counts schedules whose withdrawal counter escaped
	// its [0, TotalAmount] bounds.
	CounterViolations int
}

type auditReport struct {
	Grants     []grantReport
	Tampered   int
	Violations int
}

func main() {
	var dbPath string
	var jsonOutput bool

	flag.StringVar(&dbPath, "db-path", defaultDBPath(), "path to sqlite database (default: VESTLEDGER_DB_PATH or data/vestledger.db)")
	flag.BoolVar(&jsonOutput, "json", false, "emit the audit report as JSON")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := runAudit(ctx, dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audit: %v\n", err)
		os.Exit(1)
	}

	if jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(report); err != nil {
			fmt.Fprintf(os.Stderr, "encode report: %v\n", err)
			os.Exit(1)
		}
	} else {
		printReport(report)
	}

	if report.Tampered > 0 || report.Violations > 0 {
		os.Exit(1)
	}
}

func runAudit(ctx context.Context, dbPath string) (auditReport, error) {
	store, err := sqlite.Open(dbPath)
	if err != nil {
		return auditReport{}, fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	grants, err := store.ListGrants(ctx)
	if err != nil {
		return auditReport{}, fmt.Errorf("list grants: %w", err)
	}

	var report auditReport
	for _, grant := range grants {
		entry, err := auditGrant(ctx, store, grant)
		if err != nil {
			return auditReport{}, err
		}
		if entry.Tampered {
			report.Tampered++
		}
		report.Violations += entry.CounterViolations
		report.Grants = append(report.Grants, entry)
	}
	return report, nil
}

func auditGrant(ctx context.Context, store *sqlite.Store, grant domain.Grant) (grantReport, error) {
	entry := grantReport{Address: grant.Address, Name: grant.Name}

	if err := domain.VerifyGrant(grant); err != nil {
		if !apperrors.IsCode(err, apperrors.CodeGrantTampered) {
			return grantReport{}, fmt.Errorf("verify grant %s: %w", grant.Address, err)
		}
		entry.Tampered = true
	}

	records, err := store.ListEmployeeGrants(ctx, grant.Address)
	if err != nil {
		return grantReport{}, fmt.Errorf("list schedules for %s: %w", grant.Address, err)
	}
	entry.Schedules = len(records)
	for _, record := range records {
		entry.Allocated += record.TotalAmount
		entry.Withdrawn += record.TotalWithdrawn
		if record.TotalWithdrawn < 0 || record.TotalWithdrawn > record.TotalAmount {
			entry.CounterViolations++
		}
	}

	entry.EscrowBalance, err = store.Balance(ctx, grant.EscrowAddress, grant.Asset)
	if err != nil {
		return grantReport{}, fmt.Errorf("escrow balance for %s: %w", grant.Address, err)
	}
	entry.Underfunded = entry.EscrowBalance < entry.Allocated-entry.Withdrawn

	return entry, nil
}

func printReport(report auditReport) {
	for _, entry := range report.Grants {
		status := "ok"
		switch {
		case entry.Tampered:
			status = "TAMPERED"
		case entry.CounterViolations > 0:
			status = "COUNTER VIOLATION"
		case entry.Underfunded:
			status = "underfunded"
		}
		fmt.Printf("%s\t%s\tschedules=%d allocated=%d withdrawn=%d escrow=%d\t%s\n",
			entry.Address, entry.Name, entry.Schedules,
			entry.Allocated, entry.Withdrawn, entry.EscrowBalance, status)
	}
	fmt.Printf("audited %d grants: %d tampered, %d counter violations\n",
		len(report.Grants), report.Tampered, report.Violations)
}

func defaultDBPath() string {
	if path := os.Getenv("VESTLEDGER_DB_PATH"); path != "" {
		return path
	}
	return "data/vestledger.db"
}
