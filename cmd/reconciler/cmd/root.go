package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bank-ledger-reconciler/cmd/reconciler/config"
	"bank-ledger-reconciler/internal/reconciler"
	"bank-ledger-reconciler/pkg/errors"
	"bank-ledger-reconciler/pkg/logger"
)

var (
	cfgFile string
	verbose bool
	version = "dev"
	commit  = "unknown"
	date    = "unknown"

	// settings is loaded before every command runs
	settings *config.Settings
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "reconciler",
	Short: "Bank statement to ledger reconciliation tool",
	Long: `Reconciler matches bank statement exports against the accounting ledger,
proposes the entries that move negative bank balances into their contra
accounts and settles installment plans from the payments found on the
statements.

Examples:
  reconciler reconcile --registry contas.csv --statements extrato.csv --ledger razao.csv
  reconciler provision --registry contas.csv --statements extrato.csv --start 2024-03-01 --end 2024-03-31
  reconciler installments --installments parcelas.csv --statements extrato.csv --apply
  reconciler ledger-check --ledger razao.csv
  reconciler balance --registry contas.csv --statements extrato.csv --ledger razao.csv --start 2024-03-01 --end 2024-03-31`,
	Version:           getVersionString(),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	config.SetDefaults(viper.GetViper())

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (optional)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	flags.String("delimiter", ";", "input CSV delimiter: ';', ',', 'tab' or '|'")
	flags.String("encoding", "utf-8", "input encoding: utf-8 or latin1")
	flags.String("log-format", "text", "log format: text or json")

	viper.BindPFlag("verbose", flags.Lookup("verbose"))
	viper.BindPFlag("input.delimiter", flags.Lookup("delimiter"))
	viper.BindPFlag("input.encoding", flags.Lookup("encoding"))
	viper.BindPFlag("log.format", flags.Lookup("log-format"))
}

// initConfig reads in config file and ENV variables, then sets up the logger.
func initConfig(cmd *cobra.Command, args []string) error {
	viper.SetEnvPrefix("RECONCILER")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return errors.ConfigurationError(errors.CodeInvalidConfig, "config", cfgFile, err).
				WithSuggestion("Check the path and the YAML syntax of the config file")
		}
	}

	loaded, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	settings = loaded

	log, err := logger.NewLogger(settings.LoggerConfig(viper.GetBool("verbose")))
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "log", nil, err)
	}
	logger.SetGlobalLogger(log)

	if cfgFile != "" {
		log.WithField("config_file", viper.ConfigFileUsed()).Debug("using config file")
	}
	return nil
}

// newService builds the reconciliation service from the loaded settings
func newService() (*reconciler.ReconciliationService, error) {
	cfg, err := settings.ReconcilerConfig()
	if err != nil {
		return nil, err
	}
	return reconciler.NewReconciliationService(cfg)
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
