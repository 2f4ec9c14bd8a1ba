package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/autotrader/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage trader configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  trader config init -o trader.yaml
  trader config validate -f trader.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	RunE:  runConfigValidate,
}

var (
	configInitOutput   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "trader.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	configValidateCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Created default configuration: %s\n", configInitOutput)
	fmt.Fprintln(cmd.OutOrStdout(), "\nEdit the file and run with:")
	fmt.Fprintf(cmd.OutOrStdout(), "  trader run --config %s\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configValidatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Configuration valid: %s\n", configValidatePath)
	fmt.Fprintf(cmd.OutOrStdout(), "  Account: $%.2f\n", cfg.Account.InitialBalance)
	fmt.Fprintf(cmd.OutOrStdout(), "  Symbols: %v\n", cfg.Symbols)
	for _, s := range cfg.Strategies {
		name := s.Name
		if name == "" {
			name = s.Type
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  Strategy: %s (%s)\n", name, s.Type)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "  Risk: max %d positions, $%.2f-$%.2f per trade, daily loss %.1f%% (%s)\n",
		cfg.Risk.MaxOpenPositions, cfg.Risk.MinTradeUSD, cfg.Risk.MaxTradeUSD,
		cfg.Risk.MaxDailyLossPct, cfg.Risk.Timezone)
	if cfg.Journal.DSN != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "  Journal: %s\n", cfg.Journal.DSN)
	}
	return nil
}
