package cli

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Dirstral/ragmcp/internal/mcp"
	"github.com/Dirstral/ragmcp/internal/supervisor"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts ollama and serves every built index as an MCP tool over stdio",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
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
		return withExitCode(ExitServeFailure, err)
	}

	sup := supervisor.New(supervisor.Options{Logger: logger})
	err = sup.Run(ctx, func(ctx context.Context) error {
		registry, err := mcp.BuildRegistry(ctx, cfg, mcp.RegistryDeps{
			Embedder:  client,
			Generator: client,
			Logger:    logger,
			Timeout:   cfg.RequestTimeout,
			K:         cfg.RetrievalK,
		})
		if err != nil {
			return err
		}
		defer registry.Close()

		names := registry.ToolNames()
		if len(names) == 0 {
			logger.Warn("No built indices found; run 'ragmcp build' first")
		} else {
			logger.WithField("tools", strings.Join(names, ",")).Info("Serving tools")
		}

		srv := mcp.NewServer(version, registry.Tools(), logger)
		return srv.ServeStdio(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
	})
	if err != nil {
		return withExitCode(ExitServeFailure, err)
	}
	return nil
}
