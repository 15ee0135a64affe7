package cmd

import (
	"github.com/spf13/cobra"

	"bank-ledger-reconciler/internal/parsers"
	"bank-ledger-reconciler/internal/reconciler"
	"bank-ledger-reconciler/pkg/errors"
)

var failOnImbalance bool

var ledgerCheckCmd = &cobra.Command{
	Use:   "ledger-check",
	Short: "Report ledger batches whose debits and credits differ",
	Long: `Ledger-check groups the ledger postings by batch and reports every batch
whose debits and credits differ by more than the ledger tolerance.

Examples:
  reconciler ledger-check --ledger razao.csv
  reconciler ledger-check -l razao.csv --start 2024-03-01 --end 2024-03-31 --fail-on-imbalance`,

	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFileExists(ledgerFile, "ledger export"); err != nil {
			return err
		}
		if _, err := settings.ReportConfig(outputFormat); err != nil {
			return err
		}
		return validateOutputFile(outputFile)
	},
	RunE: runLedgerCheck,
}

func init() {
	rootCmd.AddCommand(ledgerCheckCmd)

	addLedgerFlag(ledgerCheckCmd, "ledger export CSV or XLSX (required)")
	addPeriodFlags(ledgerCheckCmd, false)
	addOutputFlags(ledgerCheckCmd)
	ledgerCheckCmd.Flags().BoolVar(&failOnImbalance, "fail-on-imbalance", false, "exit with an error when a batch is unbalanced")
}

func runLedgerCheck(cmd *cobra.Command, args []string) error {
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

	report, stats, err := service.CheckLedger(cmd.Context(), ledgerFile, reconciler.DateRange{Start: start, End: end})
	if err != nil {
		return err
	}
	reportSkippedRows(cmd, []*parsers.ParseStats{stats})

	if err := writeReport(cmd, report); err != nil {
		return err
	}
	if failOnImbalance && report.Count() > 0 {
		return errors.New(errors.CategoryReconciliation, errors.CodeDataInconsistent, "ledger has unbalanced batches").
			WithContext("unbalanced_batches", report.Count()).
			WithSuggestion("Review the listed batches in the accounting system")
	}
	return nil
}
