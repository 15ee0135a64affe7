package cmd

import (
	"io"
	"time"

	"github.com/spf13/cobra"

	"bank-ledger-reconciler/internal/parsers"
	"bank-ledger-reconciler/internal/reconciler"
	"bank-ledger-reconciler/internal/reporter"
	"bank-ledger-reconciler/pkg/errors"
)

var (
	installmentFile string
	planFile        string
	bankAccount     string
	asOfDate        string
	applyMatches    bool
	installmentsOut string
	postingsOut     string
)

var installmentsCmd = &cobra.Command{
	Use:   "installments",
	Short: "Find the bank payments of open installments",
	Long: `Installments looks for the payment of every open installment among the
bank statement debits: the amount must match the installment value within
the value tolerance, or its total with interest and fines, and the payment
date must fall within the configured days of the due date.

With --apply the matched installments are marked as paid, their payments are
booked against the plan accounts and the plan summaries reflect the result.

Examples:
  reconciler installments --installments parcelas.csv --statements extrato.csv

  # Settle and export the updated schedule and the payment postings
  reconciler installments --installments parcelas.csv --plans parcelamentos.csv \
    --statements extrato.csv --apply \
    --installments-out parcelas_pagas.csv --postings-out pagamentos.csv`,

	PreRunE: validateInstallmentFlags,
	RunE:    runInstallments,
}

func init() {
	rootCmd.AddCommand(installmentsCmd)

	installmentsCmd.Flags().StringVar(&installmentFile, "installments", "", "installment schedule CSV or XLSX (required)")
	installmentsCmd.Flags().StringVar(&planFile, "plans", "", "installment plans with composition and ledger accounts")
	addStatementFlags(installmentsCmd)
	installmentsCmd.Flags().StringVar(&bankAccount, "account", "", "only look for payments on this account key")
	installmentsCmd.Flags().StringVar(&asOfDate, "as-of", "", "date of the plan summaries (default: today)")
	installmentsCmd.Flags().BoolVar(&applyMatches, "apply", false, "mark matched installments as paid and book their payments")
	installmentsCmd.Flags().StringVar(&installmentsOut, "installments-out", "", "write the updated schedule to this CSV")
	installmentsCmd.Flags().StringVar(&postingsOut, "postings-out", "", "write the payment postings to this CSV")
	addOutputFlags(installmentsCmd)
}

func validateInstallmentFlags(cmd *cobra.Command, args []string) error {
	if err := validateFileExists(installmentFile, "installment schedule"); err != nil {
		return err
	}
	if planFile != "" {
		if err := validateFileExists(planFile, "installment plans"); err != nil {
			return err
		}
	}
	if err := validateStatementFiles(); err != nil {
		return err
	}
	if !applyMatches && (installmentsOut != "" || postingsOut != "") {
		return errors.ValidationError(errors.CodeInvalidData, "apply", false, nil).
			WithSuggestion("--installments-out and --postings-out need --apply")
	}
	if postingsOut != "" && planFile == "" {
		return errors.ValidationError(errors.CodeMissingField, "plans", nil, nil).
			WithSuggestion("Payment postings need the plan accounts, provide --plans")
	}
	for _, path := range []string{installmentsOut, postingsOut, outputFile} {
		if err := validateOutputFile(path); err != nil {
			return err
		}
	}
	_, err := settings.ReportConfig(outputFormat)
	return err
}

func runInstallments(cmd *cobra.Command, args []string) error {
	asOf, err := parseDate("as-of", asOfDate)
	if err != nil {
		return err
	}
	var when time.Time
	if asOf != nil {
		when = *asOf
	}

	service, err := newService()
	if err != nil {
		return err
	}

	outcome, err := service.MatchInstallments(cmd.Context(), &reconciler.InstallmentRequest{
		InstallmentFile: installmentFile,
		PlanFile:        planFile,
		StatementFiles:  statementFiles,
		DefaultAccount:  defaultAccount,
		Account:         bankAccount,
		AsOf:            when,
		Apply:           applyMatches,
	})
	if err != nil {
		return err
	}
	reportSkippedRows(cmd, outcome.ParseStats)

	if installmentsOut != "" {
		err := writeCSVFile(installmentsOut, func(w *parsers.Writer, out io.Writer) error {
			return w.WriteInstallments(out, outcome.Installments)
		})
		if err != nil {
			return err
		}
	}
	if postingsOut != "" {
		err := writeCSVFile(postingsOut, func(w *parsers.Writer, out io.Writer) error {
			return w.WriteLedger(out, outcome.Postings)
		})
		if err != nil {
			return err
		}
	}

	return writeReport(cmd, &reporter.InstallmentReport{
		Proposals: outcome.Proposals,
		Unmatched: outcome.Unmatched,
		Summaries: outcome.Summaries,
	})
}
