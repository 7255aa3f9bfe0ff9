package vestd

import (
	"bytes"
	"context"
	"flag"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("vestd", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "data/vestledger.db" {
		t.Fatalf("expected default db path, got %q", cfg.DBPath)
	}
	if cfg.Caller != "" {
		t.Fatalf("expected empty caller, got %q", cfg.Caller)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("VESTLEDGER_DB_PATH", "env.db")
	t.Setenv("VESTLEDGER_CALLER", "env-caller")

	fs := flag.NewFlagSet("vestd", flag.ContinueOnError)
	args := []string{
		"-db-path", "flag.db",
		"-caller", "flag-caller",
		"-json",
	}
	cfg, err := ParseConfig(fs, args)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "flag.db" {
		t.Fatalf("expected flag db path, got %q", cfg.DBPath)
	}
	if cfg.Caller != "flag-caller" {
		t.Fatalf("expected flag caller, got %q", cfg.Caller)
	}
	if !cfg.JSON {
		t.Fatal("expected json output enabled")
	}
}

func TestRunUnknownCommand(t *testing.T) {
	cfg := Config{DBPath: filepath.Join(t.TempDir(), "vesting.db"), Caller: "owner-1"}

	var out bytes.Buffer
	err := Run(context.Background(), cfg, []string{"bogus"}, &out)
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
	if !strings.Contains(out.String(), "usage: vestd") {
		t.Errorf("expected usage output, got %q", out.String())
	}
}

func TestRunLifecycle(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "vesting.db")
	owner := Config{DBPath: dbPath, Caller: "owner-1"}
	ctx := context.Background()

	var out bytes.Buffer
	if err := Run(ctx, owner, []string{"create-grant", "-name", "acme-2026", "-asset", "TOK"}, &out); err != nil {
		t.Fatalf("create-grant: %v", err)
	}
	grantAddr := fieldAfter(t, out.String(), "address:")

	if err := Run(ctx, owner, []string{"deposit", "-asset", "TOK", "-amount", "1000"}, &out); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := Run(ctx, owner, []string{"fund", "-grant", grantAddr, "-amount", "1000"}, &out); err != nil {
		t.Fatalf("fund: %v", err)
	}

	out.Reset()
	if err := Run(ctx, owner, []string{
		"add-employee",
		"-grant", grantAddr,
		"-beneficiary", "alice",
		"-start", "1000",
		"-end", "2000",
		"-amount", "1000",
	}, &out); err != nil {
		t.Fatalf("add-employee: %v", err)
	}
	employeeAddr := fieldAfter(t, out.String(), "address:")

	out.Reset()
	if err := Run(ctx, owner, []string{"claimable", "-employee", employeeAddr, "-at", "1500"}, &out); err != nil {
		t.Fatalf("claimable: %v", err)
	}
	if !strings.Contains(out.String(), "claimable at 1500: 500") {
		t.Errorf("claimable output = %q, want midpoint amount 500", out.String())
	}

	out.Reset()
	if err := Run(ctx, owner, []string{"balance", "-grant", grantAddr}, &out); err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !strings.Contains(out.String(), "escrow balance: 1000") {
		t.Errorf("balance output = %q, want 1000", out.String())
	}

	out.Reset()
	if err := Run(ctx, owner, []string{"list-grants"}, &out); err != nil {
		t.Fatalf("list-grants: %v", err)
	}
	if !strings.Contains(out.String(), "acme-2026") {
		t.Errorf("list-grants output = %q, want acme-2026", out.String())
	}

	out.Reset()
	if err := Run(ctx, owner, []string{"list-employees", "-beneficiary", "alice"}, &out); err != nil {
		t.Fatalf("list-employees: %v", err)
	}
	if !strings.Contains(out.String(), employeeAddr) {
		t.Errorf("list-employees output = %q, want %s", out.String(), employeeAddr)
	}
}

// fieldAfter extracts the value following a label in key-value output.
func fieldAfter(t *testing.T, output, label string) string {
	t.Helper()
	for _, line := range strings.Split(output, "\n") {
		if rest, ok := strings.CutPrefix(line, label); ok {
			return strings.TrimSpace(rest)
		}
	}
	t.Fatalf("label %q not found in output %q", label, output)
	return ""
}
