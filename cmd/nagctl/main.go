// Package main is the CLI entry point for nagctl.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/nagctl/internal/config"
	"github.com/eliteGoblin/focusd/nagctl/internal/domain"
	"github.com/eliteGoblin/focusd/nagctl/internal/infra"
	"github.com/eliteGoblin/focusd/nagctl/internal/supervisor"
	"github.com/eliteGoblin/focusd/nagctl/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "nagctl",
	Short: "Configure and launch the nag worker",
	Long: `nagctl validates and stores the quiet-hours policy (blocked programs,
reminder messages, deterrent mode) and launches the nagd worker with it.

UI surfaces talk to nagctl through "nagctl serve"; every other subcommand
runs the same commands from the terminal.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	settingsPath string
	modeFlag     string
	dataDirFlag  string
	resourcesDir string
	appRootFlag  string
	verbose      bool
	jsonOutput   bool
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&settingsPath, "settings", "", "Settings file (default "+config.DefaultPath()+")")
	flags.StringVar(&modeFlag, "mode", "", "Packaging mode: packaged or development")
	flags.StringVar(&dataDirFlag, "data-dir", "", "Directory holding config.json and the log")
	flags.StringVar(&resourcesDir, "resources-dir", "", "Directory holding the packaged worker")
	flags.StringVar(&appRootFlag, "app-root", "", "Application root used to locate the worker")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log to the terminal instead of the log file")

	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(launchCmd)
	rootCmd.AddCommand(pickCmd)
	rootCmd.AddCommand(statusCmd)
}

// app bundles the wired components for one CLI invocation.
type app struct {
	settings   *config.Settings
	context    *infra.AppContext
	logger     *zap.Logger
	store      *infra.FileConfigStore
	dispatcher *usecase.Dispatcher
}

// newApp loads settings, applies flag overrides, and wires every component.
func newApp(cmd *cobra.Command) (*app, error) {
	settings, _, _, err := config.Read(settingsPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("mode") {
		settings.Mode = modeFlag
	}
	if flags.Changed("data-dir") {
		settings.DataDir = dataDirFlag
	}
	if flags.Changed("resources-dir") {
		settings.ResourcesDir = resourcesDir
	}
	if flags.Changed("app-root") {
		settings.AppRoot = appRootFlag
	}
	settings.Normalize()
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	appCtx := settings.AppContext()
	logger := createLogger(appCtx, settings.Level())

	store := infra.NewFileConfigStore(appCtx, logger)
	sup := supervisor.NewSupervisor(appCtx, infra.NewFileSystemManager(),
		supervisor.Config{DrainGrace: settings.DrainGrace()}, logger)
	picker := infra.NewDialogPicker(settings.PickerCommand, logger)
	dispatcher := usecase.NewDispatcher(store, sup, picker, infra.NewProcessManager(),
		usecase.DispatcherConfig{AllowConcurrentLaunches: settings.AllowConcurrentLaunches}, logger)

	logger.Debug("nagctl initialized",
		zap.String("mode", infra.DescribeMode(appCtx.Mode)),
		zap.String("worker", appCtx.WorkerPath()),
		zap.String("config", store.Path()))

	return &app{
		settings:   settings,
		context:    appCtx,
		logger:     logger,
		store:      store,
		dispatcher: dispatcher,
	}, nil
}

// run dispatches one command and converts a failure envelope into an error.
func (a *app) run(ctx context.Context, command domain.Command, payload json.RawMessage) (domain.CommandResponse, error) {
	resp := a.dispatcher.Dispatch(ctx, command.String(), payload)
	if !resp.Success {
		return resp, fmt.Errorf("%s failed (%s): %s", command, resp.Error.Kind, resp.Error.Message)
	}
	return resp, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

// createLogger writes JSON logs to the data directory. With --verbose on a
// terminal it logs human-readable lines to stderr instead. Stdout is never
// used because the stdio bridge owns it.
func createLogger(appCtx *infra.AppContext, level zapcore.Level) *zap.Logger {
	if verbose && (isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())) {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		cfg.OutputPaths = []string{"stderr"}
		if logger, err := cfg.Build(); err == nil {
			return logger
		}
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if err := os.MkdirAll(appCtx.DataDir, 0700); err == nil {
		cfg.OutputPaths = []string{appCtx.LogPath()}
	}

	logger, err := cfg.Build()
	if err != nil {
		// Fall back to stderr if the log file cannot be opened
		cfg.OutputPaths = []string{"stderr"}
		if logger, err = cfg.Build(); err != nil {
			return zap.NewNop()
		}
	}
	return logger
}

func runVersion(cmd *cobra.Command, args []string) {
	out := cmd.OutOrStdout()
	if jsonOutput {
		_ = json.NewEncoder(out).Encode(map[string]string{
			"version":    Version,
			"commit":     Commit,
			"build_time": BuildTime,
		})
		return
	}
	fmt.Fprintf(out, "nagctl %s (commit: %s, built: %s)\n", Version, Commit, BuildTime)
}
