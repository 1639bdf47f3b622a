package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Dirstral/ragmcp/internal/provision"
	"github.com/Dirstral/ragmcp/internal/supervisor"
)

var installFlags struct {
	SkipBrew bool
}

var installCmd = &cobra.Command{
	Use:     "install",
	Aliases: []string{"osx-install"},
	Short:   "Installs ollama with brew and pulls the configured models",
	Args:    cobra.NoArgs,
	RunE:    runInstall,
}

func init() {
	installCmd.Flags().BoolVar(&installFlags.SkipBrew, "skip-brew", false, "assume ollama is installed; only pull the models")
}

func runInstall(cmd *cobra.Command, _ []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, false)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := newOllamaClient(cfg, logger)
	if err != nil {
		return withExitCode(ExitInstallFailure, err)
	}

	installer := &provision.Installer{
		Runner:     provision.ExecRunner{Stdout: cmd.OutOrStdout(), Stderr: cmd.ErrOrStderr()},
		Supervisor: supervisor.New(supervisor.Options{Logger: logger}),
		Client:     client,
		Logger:     logger,
		Out:        cmd.OutOrStdout(),
	}
	if err := installer.Install(ctx, cfg, provision.Options{SkipBrew: installFlags.SkipBrew}); err != nil {
		return withExitCode(ExitInstallFailure, err)
	}
	return nil
}
