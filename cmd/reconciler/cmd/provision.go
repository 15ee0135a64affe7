package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"bank-ledger-reconciler/internal/parsers"
	"bank-ledger-reconciler/internal/reconciler"
	"bank-ledger-reconciler/internal/reporter"
	"bank-ledger-reconciler/pkg/errors"
)

var (
	provisionSource string
	provisionCommit bool
	journalOut      string
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Propose the entries that move negative bank balances to contra accounts",
	Long: `Provision projects the daily balance of every registered account over the
window and proposes one entry per day the balance crosses zero: a provision
into the contra account when it turns negative and a reversal when it
recovers. Adjustments already booked in the ledger are taken into account,
so running again over the same window proposes nothing new.

The movements come from the bank statements (--source statement, default) or
from the ledger postings of the primary account (--source ledger).

Examples:
  reconciler provision -r contas.csv -s extrato.csv --start 2024-03-01 --end 2024-03-31

  # Book the proposals and export the journal
  reconciler provision -r contas.csv -s extrato.csv -l razao.csv \
    --start 2024-03-01 --end 2024-03-31 --commit --journal-out razao_ajustado.csv`,

	PreRunE: validateProvisionFlags,
	RunE:    runProvision,
}

func init() {
	rootCmd.AddCommand(provisionCmd)

	addRegistryFlag(provisionCmd)
	addStatementFlags(provisionCmd)
	addLedgerFlag(provisionCmd, "ledger export with booked adjustments (required with --source ledger)")
	addAccountsFlag(provisionCmd)
	addPeriodFlags(provisionCmd, true)
	addOutputFlags(provisionCmd)
	provisionCmd.Flags().StringVar(&provisionSource, "source", reconciler.SourceStatement, "movement source: statement or ledger")
	provisionCmd.Flags().BoolVar(&provisionCommit, "commit", false, "book the proposals into the journal")
	provisionCmd.Flags().StringVar(&journalOut, "journal-out", "", "write the journal with the booked entries to this CSV (required with --commit)")
}

func validateProvisionFlags(cmd *cobra.Command, args []string) error {
	if err := validateFileExists(registryFile, "account registry"); err != nil {
		return err
	}
	switch provisionSource {
	case reconciler.SourceStatement:
		if err := validateStatementFiles(); err != nil {
			return err
		}
	case reconciler.SourceLedger:
		if err := validateFileExists(ledgerFile, "ledger export"); err != nil {
			return err
		}
	default:
		return errors.ValidationError(errors.CodeInvalidData, "source", provisionSource, nil).
			WithSuggestion("Use --source statement or --source ledger")
	}
	if ledgerFile != "" {
		if err := validateFileExists(ledgerFile, "ledger export"); err != nil {
			return err
		}
	}
	if provisionCommit && journalOut == "" {
		return errors.ValidationError(errors.CodeMissingField, "journal-out", nil, nil).
			WithSuggestion("--commit needs --journal-out to persist the booked entries")
	}
	if err := validateOutputFile(journalOut); err != nil {
		return err
	}
	if _, err := settings.ReportConfig(outputFormat); err != nil {
		return err
	}
	return validateOutputFile(outputFile)
}

func runProvision(cmd *cobra.Command, args []string) error {
	start, end, err := parseWindow()
	if err != nil {
		return err
	}

	service, err := newService()
	if err != nil {
		return err
	}

	request := &reconciler.ProvisioningRequest{
		RegistryFile:   registryFile,
		LedgerFile:     ledgerFile,
		DefaultAccount: defaultAccount,
		Accounts:       accountKeys,
		Start:          start,
		End:            end,
		Source:         provisionSource,
		Commit:         provisionCommit,
	}
	if provisionSource == reconciler.SourceStatement {
		request.StatementFiles = statementFiles
	}

	outcome, err := service.ProposeProvisioning(cmd.Context(), request)
	if err != nil {
		return err
	}
	reportSkippedRows(cmd, outcome.ParseStats)

	if provisionCommit {
		postings := outcome.Journal.All()
		err := writeCSVFile(journalOut, func(w *parsers.Writer, out io.Writer) error {
			return w.WriteLedger(out, postings)
		})
		if err != nil {
			return err
		}
	}

	return writeReport(cmd, &reporter.ProvisioningReport{
		Proposals: outcome.Proposals,
		Committed: outcome.Committed,
	})
}
