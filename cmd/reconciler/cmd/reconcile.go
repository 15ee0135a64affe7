package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bank-ledger-reconciler/internal/reconciler"
	"bank-ledger-reconciler/pkg/logger"
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Match bank statement rows against ledger postings",
	Long: `Reconcile pairs every bank statement row with a ledger posting of the same
account, running the configured passes from the strictest to the loosest.
Rows left over are reported as unmatched bank rows and ledger surplus.

This command requires:
- The account registry mapping bank accounts to ledger accounts
- One or more bank statement exports (CSV or XLSX)
- The ledger export

Examples:
  # Basic reconciliation
  reconciler reconcile --registry contas.csv --statements extrato.csv --ledger razao.csv

  # Several exports over one month, as JSON
  reconciler reconcile -r contas.csv -s marco_1.csv,marco_2.xlsx -l razao.csv \
    --start 2024-03-01 --end 2024-03-31 --output-format json --output-file report.json

  # Exact matches only
  reconciler reconcile -r contas.csv -s extrato.csv -l razao.csv --strict`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	addRegistryFlag(reconcileCmd)
	addStatementFlags(reconcileCmd)
	addLedgerFlag(reconcileCmd, "ledger export CSV or XLSX (required)")
	addPeriodFlags(reconcileCmd, false)
	addOutputFlags(reconcileCmd)
	reconcileCmd.Flags().Bool("strict", false, "only accept exact amount, date and account matches")

	viper.BindPFlag("matching.strict", reconcileCmd.Flags().Lookup("strict"))
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	if err := validateFileExists(registryFile, "account registry"); err != nil {
		return err
	}
	if err := validateStatementFiles(); err != nil {
		return err
	}
	if err := validateFileExists(ledgerFile, "ledger export"); err != nil {
		return err
	}
	if _, err := settings.ReportConfig(outputFormat); err != nil {
		return err
	}
	return validateOutputFile(outputFile)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	start, err := parseDate("start", startDate)
	if err != nil {
		return err
	}
	end, err := parseDate("end", endDate)
	if err != nil {
		return err
	}

	service, err := newService()
	if err != nil {
		return err
	}

	outcome, err := service.Reconcile(cmd.Context(), &reconciler.ReconciliationRequest{
		RegistryFile:   registryFile,
		StatementFiles: statementFiles,
		LedgerFile:     ledgerFile,
		DefaultAccount: defaultAccount,
		DateRange:      reconciler.DateRange{Start: start, End: end},
	})
	if err != nil {
		return err
	}
	reportSkippedRows(cmd, outcome.ParseStats)

	summary := outcome.Result.Summary
	logger.GetGlobalLogger().WithComponent("cli").WithFields(logger.Fields{
		"bank_rows":      summary.TotalBankRows,
		"ledger_rows":    summary.TotalLedgerRows,
		"matched":        summary.MatchedBankRows,
		"ledger_surplus": summary.LedgerSurplus,
		"duplicates":     outcome.Statements.Duplicates,
	}).Debug("reconciliation completed")

	return writeReport(cmd, outcome.Result)
}
