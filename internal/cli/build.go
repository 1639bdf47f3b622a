package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Dirstral/ragmcp/internal/build"
	"github.com/Dirstral/ragmcp/internal/chunking"
	"github.com/Dirstral/ragmcp/internal/cleanup"
	"github.com/Dirstral/ragmcp/internal/config"
	"github.com/Dirstral/ragmcp/internal/index"
	"github.com/Dirstral/ragmcp/internal/ingest"
	"github.com/Dirstral/ragmcp/internal/ollama"
)

var buildFlags struct {
	SkipClean bool
	Yes       bool
}

var buildCmd = &cobra.Command{
	Use:   "build [tools...]",
	Short: "Builds the document index for the given tools, or all of them",
	Long: `Builds the document index for each named tool, or for every tool in the
config when none is given. Indices in storage that the config no longer
names are removed first unless --skip-clean is set.`,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().BoolVar(&buildFlags.SkipClean, "skip-clean", false, "skip cleanup of indices not in the config")
	buildCmd.Flags().BoolVarP(&buildFlags.Yes, "yes", "y", false, "remove unused indices without asking")
}

func runBuild(cmd *cobra.Command, args []string) error {
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
		return withExitCode(ExitBuildFailure, err)
	}

	var progress *buildProgress
	if !globalFlags.JSON && term.IsTerminal(int(os.Stderr.Fd())) {
		progress = newBuildProgress(os.Stderr, logger)
		defer progress.Stop()
	}

	worker := &index.EmbeddingWorker{Embedder: client, Logger: logger}
	builder := &build.Builder{
		Config:   cfg,
		Loader:   ingest.NewService(logger),
		Splitter: chunking.DefaultSplitter(),
		Embedder: worker,
		Cleanup: cleanup.NewCoordinator(
			confirmPolicy(buildFlags.Yes, IsTTY(), cmd.InOrStdin(), cmd.OutOrStdout(), logger),
			logger,
		),
		Logger: logger,
	}
	if progress != nil {
		builder.Progress = progress.Handle
		worker.OnBatch = func(done, total int) {
			progress.Handle(build.Event{Stage: build.StageEmbedding, Done: done, Total: total})
		}
	}

	report, err := builder.Build(ctx, args, build.Options{Clean: !buildFlags.SkipClean})
	if progress != nil {
		progress.Stop()
	}
	out := cmd.OutOrStdout()
	writeBuildReport(out, report, newStyles(out, globalFlags.JSON))
	if err != nil {
		return withExitCode(ExitBuildFailure, err)
	}
	return nil
}

func newOllamaClient(cfg *config.Config, logger *logrus.Logger) (*ollama.Client, error) {
	return ollama.NewClient(ollama.Options{
		BaseURL:        cfg.OllamaURL,
		Timeout:        cfg.RequestTimeout,
		EmbeddingModel: cfg.Model.Embedding,
		LLMModel:       cfg.Model.LLM,
		Logger:         logger,
	})
}

func writeBuildReport(w io.Writer, report build.Report, s styles) {
	for _, name := range report.Cleanup.Removed {
		fmt.Fprintf(w, "%s %s\n", s.dim("removed"), name)
	}
	for _, name := range report.Cleanup.Kept {
		fmt.Fprintf(w, "%s %s\n", s.dim("kept"), name)
	}
	for _, tr := range report.Built {
		fmt.Fprintf(w, "%s %s %s %s %s\n",
			s.render(s.Success, "built"),
			s.tool(tr.ToolName),
			s.stat("documents", tr.Documents),
			s.stat("chunks", tr.Chunks),
			s.stat("took", tr.Duration.Round(time.Millisecond)),
		)
		for _, warning := range tr.Warnings {
			fmt.Fprintf(w, "  %s %s\n", s.warnPrefix(), warning)
		}
	}
}
