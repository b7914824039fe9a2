package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/artpar/clusterdeploy/internal/shell/steps"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitDatabaseError   = 2
	ExitDeployFailed    = 3
	ExitProviderError   = 4
	ExitHTTPServerError = 5
)

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *ExitError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func exitError(op string, code int, err error) error {
	return &ExitError{Op: op, Err: err, ExitCode: code}
}

// =============================================================================
// Application
// =============================================================================

// app holds what every command needs once configuration is loaded.
type app struct {
	cfg    *Config
	logger *slog.Logger
	fs     afero.Fs
	out    io.Writer

	// connector overrides the SSH connector built from the cluster config.
	connector steps.Connector
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	a := &app{fs: afero.NewOsFs(), out: stdout}
	root := newRootCommand(a, stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode
		}
		return ExitConfigError
	}
	return ExitSuccess
}

func newRootCommand(a *app, logOutput io.Writer) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "clusterdeploy",
		Short:         "Deploy containers to a cluster and open their ports",
		Version:       fmt.Sprintf("%s (built %s)", Version, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return exitError("load config", ExitConfigError, err)
			}
			a.cfg = cfg
			a.logger = SetupLogger(cfg, logOutput)
			a.logger.Debug("configuration loaded", "config", configPath, "command", cmd.Name())
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")

	root.AddCommand(
		newDeployCommand(a),
		newPortsCommand(a),
		newPlanCommand(a),
		newHistoryCommand(a),
		newServeCommand(a),
		newCredentialsCommand(a),
		newKeyCommand(a),
		newVersionCommand(),
	)
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		// Loading configuration is not needed to print the version.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "clusterdeploy %s (built %s)\n", Version, BuildTime)
		},
	}
}
