package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Dirstral/ragmcp/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configPrintCmd = &cobra.Command{
	Use:   "print",
	Short: "Print effective config as YAML",
	RunE:  runConfigPrint,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the config file",
	RunE:  runConfigValidate,
}

func init() {
	configCmd.AddCommand(configPrintCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigPrint(cmd *cobra.Command, _ []string) error {
	// print even when validation would fail, so the problem is visible
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}
	data, err := config.SnapshotYAML(cfg)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, false)
	if err != nil {
		return err
	}
	s := newStyles(cmd.OutOrStdout(), globalFlags.JSON)
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%d indices)\n", s.render(s.Success, "OK"), cfg.SourcePath, len(cfg.Indices))
	return nil
}
