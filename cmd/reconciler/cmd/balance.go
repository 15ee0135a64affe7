package cmd

import (
	"github.com/spf13/cobra"

	"bank-ledger-reconciler/internal/reconciler"
	"bank-ledger-reconciler/internal/reporter"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Compare bank and ledger closing balances per account",
	Long: `Balance projects every registered account from its bank statements and
from the postings of its primary ledger account, both starting at the
registry opening balance, and compares the closing balances of the period.

Examples:
  reconciler balance -r contas.csv -s extrato.csv -l razao.csv --start 2024-03-01 --end 2024-03-31
  reconciler balance -r contas.csv -s extrato.csv -l razao.csv --start 2024-03-01 --end 2024-03-31 \
    --accounts 2205642886 --output-format json`,

	PreRunE: func(cmd *cobra.Command, args []string) error {
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
	},
	RunE: runBalance,
}

func init() {
	rootCmd.AddCommand(balanceCmd)

	addRegistryFlag(balanceCmd)
	addStatementFlags(balanceCmd)
	addLedgerFlag(balanceCmd, "ledger export CSV or XLSX (required)")
	addAccountsFlag(balanceCmd)
	addPeriodFlags(balanceCmd, true)
	addOutputFlags(balanceCmd)
}

func runBalance(cmd *cobra.Command, args []string) error {
	start, end, err := parseWindow()
	if err != nil {
		return err
	}

	service, err := newService()
	if err != nil {
		return err
	}

	comparisons, err := service.CompareBalances(cmd.Context(), &reconciler.BalanceRequest{
		RegistryFile:   registryFile,
		StatementFiles: statementFiles,
		LedgerFile:     ledgerFile,
		DefaultAccount: defaultAccount,
		Accounts:       accountKeys,
		Start:          start,
		End:            end,
	})
	if err != nil {
		return err
	}

	return writeReport(cmd, &reporter.BalanceReport{Comparisons: comparisons})
}
