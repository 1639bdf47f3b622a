package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Dirstral/ragmcp/internal/config"
	"github.com/Dirstral/ragmcp/internal/state"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists search tools in config file",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func runList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, false)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	writeToolList(out, cfg, newStyles(out, globalFlags.JSON))
	return nil
}

func writeToolList(w io.Writer, cfg *config.Config, s styles) {
	fmt.Fprintln(w, s.sectionHeader("TOOLS:"))
	fmt.Fprintln(w)
	for _, spec := range cfg.Indices {
		built := state.HasPersistedIndex(cfg, spec.ToolName)
		fmt.Fprintf(w, "%s %s\n", s.tool(spec.ToolName), s.indexStatus(built))
		fmt.Fprintf(w, "\tName - %s\n", spec.Name)
		fmt.Fprintf(w, "\tDescription = %s\n\n", spec.Description)
	}
}
