package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/pflag"

	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/finance"
	"github.com/trezcool/masomo-fees/core/student"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db         *sqlx.DB
	studentSvc *student.Service
	financeSvc *finance.Service
	conf       *core.Config
	out        io.Writer
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                              - run a goose command (up, down, status, ...)")
	_, _ = fmt.Fprintln(cli.out, "  addstudent --name NAME [--email] [--guardian-email] [--class] - register a student")
	_, _ = fmt.Fprintln(cli.out, "  reconcile                                           - refresh stored fee statuses from payments")
	_, _ = fmt.Fprintln(cli.out, "  statement --student ID [--json]                     - print a student's ledger")
}

func (cli *commandLine) newFlagSet(name, usage string) *pflag.FlagSet {
	cmd := pflag.NewFlagSet(name, pflag.ContinueOnError)
	cmd.SetOutput(cli.out)
	cmd.Usage = func() {
		_, _ = fmt.Fprintf(cli.out, "Usage: admin %s %s\n", name, usage)
		cmd.PrintDefaults()
	}
	return cmd
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "addstudent":
		cmd := cli.newFlagSet("addstudent", "--name NAME [--email EMAIL] [--guardian-email EMAIL] [--class CLASS]")
		name := cmd.String("name", "", "The student's full name.")
		email := cmd.String("email", "", "The student's email address.")
		guardianEmail := cmd.String("guardian-email", "", "The guardian's email address.")
		className := cmd.String("class", "", "The student's class, e.g. 6A.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *name == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.addStudent(ctx, student.NewStudent{
			Name:          *name,
			Email:         email,
			GuardianEmail: guardianEmail,
			ClassName:     className,
		})

	case "reconcile":
		return cli.reconcile(ctx)

	case "statement":
		cmd := cli.newFlagSet("statement", "--student ID [--json]")
		studentID := cmd.String("student", "", "The student's ID.")
		asJSON := cmd.Bool("json", false, "Print the ledger as JSON.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *studentID == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.statement(ctx, *studentID, *asJSON)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) addStudent(ctx context.Context, ns student.NewStudent) error {
	std, err := cli.studentSvc.Create(ctx, ns)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cli.out, "student %q created: %s\n", std.Name, std.ID)
	return err
}

func (cli *commandLine) reconcile(ctx context.Context) error {
	n, err := cli.financeSvc.Reconcile(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cli.out, "%d fee status(es) updated\n", n)
	return err
}

func (cli *commandLine) statement(ctx context.Context, studentID string, asJSON bool) error {
	std, err := cli.studentSvc.GetByID(ctx, studentID)
	if err != nil {
		return err
	}
	ledger, err := cli.financeSvc.GetStudentLedger(ctx, std.ID)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(cli.out)
		enc.SetIndent("", "  ")
		return enc.Encode(ledger)
	}

	_, _ = fmt.Fprintf(cli.out, "Statement of %s (%s)\n\n", std.Name, std.ID)
	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FEE\tAMOUNT\tPAID\tBALANCE\tSTATUS")
	for _, item := range ledger.Items {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			item.FeeStructure.Name,
			item.Amount.StringFixed(2),
			item.PaidAmount.StringFixed(2),
			item.Balance.StringFixed(2),
			item.Status,
		)
	}
	_, _ = fmt.Fprintf(w, "TOTAL (%s)\t%s\t%s\t%s\t\n",
		cli.conf.Currency,
		ledger.Summary.TotalDue.StringFixed(2),
		ledger.Summary.TotalPaid.StringFixed(2),
		ledger.Summary.Outstanding.StringFixed(2),
	)
	return w.Flush()
}
