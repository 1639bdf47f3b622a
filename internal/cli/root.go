package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Dirstral/ragmcp/internal/build"
	"github.com/Dirstral/ragmcp/internal/cleanup"
	"github.com/Dirstral/ragmcp/internal/config"
	"github.com/Dirstral/ragmcp/internal/logging"
	"github.com/Dirstral/ragmcp/internal/protocol"
)

// Exit codes returned by the ragmcp binary.
const (
	ExitSuccess        = 0
	ExitGenericError   = 1
	ExitConfigInvalid  = 2
	ExitToolNotFound   = 3
	ExitBuildFailure   = 4
	ExitServeFailure   = 5
	ExitCleanupFailure = 6
	ExitInstallFailure = 7
)

const (
	envLogLevel     = "RAGMCP_LOG_LEVEL"
	defaultLogLevel = "info"
)

// GlobalFlags holds flags shared across all commands.
type GlobalFlags struct {
	ConfigPath  string
	LogLevel    string
	JSON        bool
	OllamaURL   string
	StoragePath string
}

var globalFlags GlobalFlags

var rootCmd = &cobra.Command{
	Use:           "ragmcp",
	Short:         "Build document indices and serve them as MCP retrieval tools",
	Long:          "ragmcp builds one vector index per configured tool and serves every built index as a retrieval-augmented MCP tool backed by Ollama.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalFlags.ConfigPath, "config", protocol.DefaultConfigPath, "config file path (.json, .yaml or .toml)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.LogLevel, "log-level", "", "log level: debug, info, warn, error (default info, or $"+envLogLevel+")")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.JSON, "json", false, "emit JSON log lines")
	rootCmd.PersistentFlags().StringVar(&globalFlags.OllamaURL, "ollama-url", "", "Ollama server URL (overrides config and environment)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.StoragePath, "storage-path", "", "index storage root (overrides config and environment)")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command. Use ExitCode to map the error.
func Execute() error {
	return rootCmd.Execute()
}

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// withExitCode attaches an exit code to err. Errors that match a known
// sentinel keep that sentinel's code instead of fallback.
func withExitCode(fallback int, err error) error {
	if err == nil {
		return nil
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return err
	}
	code := sentinelCode(err)
	if code == 0 {
		code = fallback
	}
	return &exitError{code: code, err: err}
}

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if code := sentinelCode(err); code != 0 {
		return code
	}
	return ExitGenericError
}

func sentinelCode(err error) int {
	switch {
	case errors.Is(err, config.ErrConfigInvalid):
		return ExitConfigInvalid
	case errors.Is(err, build.ErrToolNotFound):
		return ExitToolNotFound
	case errors.Is(err, cleanup.ErrDeletionFailed):
		return ExitCleanupFailure
	default:
		return 0
	}
}

// loadConfig loads the config named by --config with flag overrides applied.
func loadConfig(cmd *cobra.Command, skipValidate bool) (*config.Config, error) {
	var overrides config.Overrides
	flags := cmd.Flags()
	if flags.Changed("ollama-url") {
		v := globalFlags.OllamaURL
		overrides.OllamaURL = &v
	}
	if flags.Changed("storage-path") {
		v := globalFlags.StoragePath
		overrides.StoragePath = &v
	}
	cfg, err := config.Load(config.Options{
		ConfigPath:   globalFlags.ConfigPath,
		SkipValidate: skipValidate,
		Overrides:    &overrides,
	})
	if err != nil {
		return nil, withExitCode(ExitConfigInvalid, err)
	}
	return cfg, nil
}

// newLogger builds the logger for one command invocation. Logs go to
// stderr; stdout belongs to command output and the MCP transport.
func newLogger() (*logrus.Logger, error) {
	level := strings.TrimSpace(globalFlags.LogLevel)
	if level == "" {
		level = strings.TrimSpace(os.Getenv(envLogLevel))
	}
	if level == "" {
		level = defaultLogLevel
	}
	logger, err := logging.New(logging.Options{Level: level, JSON: globalFlags.JSON, Output: os.Stderr})
	if err != nil {
		return nil, withExitCode(ExitGenericError, err)
	}
	return logger, nil
}

// PrintError writes err to stderr with the styled error prefix.
func PrintError(err error) {
	s := newStyles(os.Stderr, globalFlags.JSON)
	fmt.Fprintln(os.Stderr, s.errPrefix(), err)
}
