// Package vestd parses vestd command flags and dispatches vesting
// operations against the local store.
package vestd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"time"

	entrypoint "github.com/vestledger/vestledger/internal/platform/cmd"
	"github.com/vestledger/vestledger/internal/vesting/core"
	"github.com/vestledger/vestledger/internal/vesting/domain"
	"github.com/vestledger/vestledger/internal/vesting/storage/sqlite"
)

// Config holds vestd command configuration.
type Config struct {
	DBPath string `env:"VESTLEDGER_DB_PATH" envDefault:"data/vestledger.db"`
	// Caller is the identity every operation runs as. Authorization checks
	// compare it against grant owners and beneficiaries.
	Caller string `env:"VESTLEDGER_CALLER"`
	JSON   bool
}

// ParseConfig parses environment and global flags into a Config, leaving
// the subcommand and its arguments in fs.Args().
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "path to the sqlite database")
	fs.StringVar(&cfg.Caller, "caller", cfg.Caller, "identity to run operations as")
	fs.BoolVar(&cfg.JSON, "json", false, "emit JSON output")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Usage describes the available subcommands.
const Usage = `usage: vestd [flags] <command> [command flags]

commands:
  create-grant    create a grant and its escrow account
  fund            move tokens from the caller's account into a grant escrow
  deposit         credit tokens to the caller's treasury account
  add-employee    create an employee release schedule under a grant
  claim           withdraw the currently vested amount
  claimable       preview the withdrawable amount without claiming
  show-grant      print one grant
  list-grants     print every grant
  list-employees  print schedules for a grant or a beneficiary
  balance         print a grant's escrow balance
`

// Run executes one vestd subcommand.
func Run(ctx context.Context, cfg Config, args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(out, Usage)
		return fmt.Errorf("missing command")
	}

	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceVestd, func(ctx context.Context) error {
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		app := app{
			cfg:     cfg,
			store:   store,
			service: core.NewService(store),
			out:     out,
		}
		return app.dispatch(ctx, args[0], args[1:])
	})
}

type app struct {
	cfg     Config
	store   *sqlite.Store
	service *core.Service
	out     io.Writer
}

func (a app) dispatch(ctx context.Context, command string, args []string) error {
	switch command {
	case "create-grant":
		return a.createGrant(ctx, args)
	case "fund":
		return a.fund(ctx, args)
	case "deposit":
		return a.deposit(ctx, args)
	case "add-employee":
		return a.addEmployee(ctx, args)
	case "claim":
		return a.claim(ctx, args)
	case "claimable":
		return a.claimable(ctx, args)
	case "show-grant":
		return a.showGrant(ctx, args)
	case "list-grants":
		return a.listGrants(ctx)
	case "list-employees":
		return a.listEmployees(ctx, args)
	case "balance":
		return a.balance(ctx, args)
	default:
		fmt.Fprint(a.out, Usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a app) createGrant(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create-grant", flag.ContinueOnError)
	name := fs.String("name", "", "unique grant name")
	asset := fs.String("asset", "", "asset identifier")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return err
	}

	grant, err := a.service.CreateGrant(ctx, core.CreateGrantInput{
		Caller: a.cfg.Caller,
		Name:   *name,
		Asset:  *asset,
	})
	if err != nil {
		return err
	}
	return a.printGrant(grant)
}

func (a app) fund(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fund", flag.ContinueOnError)
	grantAddr := fs.String("grant", "", "grant address")
	from := fs.String("from", "", "funding account (default: caller)")
	amount := fs.Int64("amount", 0, "amount to move into escrow")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return err
	}

	receipt, err := a.service.FundEscrow(ctx, core.FundEscrowInput{
		Caller:       a.cfg.Caller,
		GrantAddress: *grantAddr,
		From:         *from,
		Amount:       *amount,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "funded %d (receipt %s)\n", *amount, receipt)
	return nil
}

func (a app) deposit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("deposit", flag.ContinueOnError)
	asset := fs.String("asset", "", "asset identifier")
	amount := fs.Int64("amount", 0, "amount to credit")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return err
	}

	if err := a.store.Deposit(ctx, a.cfg.Caller, *asset, *amount); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "deposited %d %s to %s\n", *amount, *asset, a.cfg.Caller)
	return nil
}

func (a app) addEmployee(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add-employee", flag.ContinueOnError)
	grantAddr := fs.String("grant", "", "grant address")
	beneficiary := fs.String("beneficiary", "", "beneficiary identity")
	start := fs.Int64("start", 0, "vesting start (unix seconds)")
	cliff := fs.Int64("cliff", 0, "cliff (unix seconds, defaults to start)")
	end := fs.Int64("end", 0, "vesting end (unix seconds)")
	amount := fs.Int64("amount", 0, "total allocation")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return err
	}
	if *cliff == 0 {
		*cliff = *start
	}

	record, err := a.service.CreateEmployeeGrant(ctx, core.CreateEmployeeGrantInput{
		Caller:       a.cfg.Caller,
		GrantAddress: *grantAddr,
		Beneficiary:  *beneficiary,
		StartTime:    *start,
		CliffTime:    *cliff,
		EndTime:      *end,
		TotalAmount:  *amount,
	})
	if err != nil {
		return err
	}
	return a.printEmployeeGrant(record)
}

func (a app) claim(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("claim", flag.ContinueOnError)
	employeeAddr := fs.String("employee", "", "employee grant address")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return err
	}

	result, err := a.service.Claim(ctx, core.ClaimInput{
		Caller:          a.cfg.Caller,
		EmployeeAddress: *employeeAddr,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "claimed %d (receipt %s)\n", result.AmountPaid, result.Receipt)
	return nil
}

func (a app) claimable(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("claimable", flag.ContinueOnError)
	employeeAddr := fs.String("employee", "", "employee grant address")
	at := fs.Int64("at", 0, "evaluate at this unix time (default: now)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return err
	}
	if *at == 0 {
		*at = time.Now().Unix()
	}

	claimable, err := a.service.ClaimableAt(ctx, *employeeAddr, *at)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "claimable at %d: %d\n", *at, claimable)
	return nil
}

func (a app) showGrant(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show-grant", flag.ContinueOnError)
	grantAddr := fs.String("grant", "", "grant address")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return err
	}

	grant, err := a.service.GetGrant(ctx, *grantAddr)
	if err != nil {
		return err
	}
	return a.printGrant(grant)
}

func (a app) listGrants(ctx context.Context) error {
	grants, err := a.service.ListGrants(ctx)
	if err != nil {
		return err
	}
	if a.cfg.JSON {
		return json.NewEncoder(a.out).Encode(grants)
	}
	for _, grant := range grants {
		fmt.Fprintf(a.out, "%s\t%s\t%s\towner=%s\n", grant.Address, grant.Name, grant.Asset, grant.Owner)
	}
	return nil
}

func (a app) listEmployees(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list-employees", flag.ContinueOnError)
	grantAddr := fs.String("grant", "", "grant address")
	beneficiary := fs.String("beneficiary", "", "beneficiary identity")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return err
	}

	var records []domain.EmployeeGrant
	var err error
	switch {
	case *grantAddr != "":
		records, err = a.service.ListEmployeeGrants(ctx, *grantAddr)
	case *beneficiary != "":
		records, err = a.service.ListEmployeeGrantsByBeneficiary(ctx, *beneficiary)
	default:
		return fmt.Errorf("one of -grant or -beneficiary is required")
	}
	if err != nil {
		return err
	}

	if a.cfg.JSON {
		return json.NewEncoder(a.out).Encode(records)
	}
	for _, record := range records {
		fmt.Fprintf(a.out, "%s\t%s\tgrant=%s\twindow=[%d,%d] cliff=%d\twithdrawn=%d/%d\n",
			record.Address, record.Beneficiary, record.GrantAddress,
			record.StartTime, record.EndTime, record.CliffTime,
			record.TotalWithdrawn, record.TotalAmount)
	}
	return nil
}

func (a app) balance(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("balance", flag.ContinueOnError)
	grantAddr := fs.String("grant", "", "grant address")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return err
	}

	balance, err := a.service.EscrowBalance(ctx, *grantAddr)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "escrow balance: %d\n", balance)
	return nil
}

func (a app) printGrant(grant domain.Grant) error {
	if a.cfg.JSON {
		return json.NewEncoder(a.out).Encode(grant)
	}
	fmt.Fprintf(a.out, "address:  %s\n", grant.Address)
	fmt.Fprintf(a.out, "name:     %s\n", grant.Name)
	fmt.Fprintf(a.out, "owner:    %s\n", grant.Owner)
	fmt.Fprintf(a.out, "asset:    %s\n", grant.Asset)
	fmt.Fprintf(a.out, "escrow:   %s\n", grant.EscrowAddress)
	fmt.Fprintf(a.out, "created:  %s\n", grant.CreatedAt.Format(time.RFC3339))
	return nil
}

func (a app) printEmployeeGrant(record domain.EmployeeGrant) error {
	if a.cfg.JSON {
		return json.NewEncoder(a.out).Encode(record)
	}
	fmt.Fprintf(a.out, "address:      %s\n", record.Address)
	fmt.Fprintf(a.out, "beneficiary:  %s\n", record.Beneficiary)
	fmt.Fprintf(a.out, "grant:        %s\n", record.GrantAddress)
	fmt.Fprintf(a.out, "start/cliff/end: %d/%d/%d\n", record.StartTime, record.CliffTime, record.EndTime)
	fmt.Fprintf(a.out, "allocation:   %d (withdrawn %d)\n", record.TotalAmount, record.TotalWithdrawn)
	return nil
}
