// Package cmd provides the CLI commands for codegrip.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/codegrip/internal/config"
	"github.com/Aman-CERP/codegrip/internal/logging"
	"github.com/Aman-CERP/codegrip/internal/output"
	"github.com/Aman-CERP/codegrip/internal/profiling"
	"github.com/Aman-CERP/codegrip/pkg/version"
)

// app holds state shared by every subcommand of one invocation.
type app struct {
	debug      bool
	jsonOutput bool
	dir        string
	profile    profiling.Options

	cfg            *config.Config
	logger         *slog.Logger
	loggingCleanup func()
	profiler       *profiling.Session
}

// NewRootCmd creates the root command for the codegrip CLI.
func NewRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "codegrip",
		Short: "Code-aware search for agents and humans",
		Long: `codegrip searches source trees by keyword or by syntax-tree pattern
and returns whole functions, methods and classes sized to a token budget.

Configuration is read from ~/.config/codegrip/config.yaml, the project's
.codegrip.yaml and CODEGRIP_* environment variables.`,
		Version:           version.Short(),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return a.teardown()
		},
	}
	cmd.SetVersionTemplate("codegrip version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging to ~/.codegrip/logs/")
	cmd.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "Write results as JSON")
	cmd.PersistentFlags().StringVarP(&a.dir, "dir", "C", ".", "Project directory used to find .codegrip.yaml")
	cmd.PersistentFlags().StringVar(&a.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&a.profile.Mem, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&a.profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.AddCommand(newSearchCmd(a))
	cmd.AddCommand(newQueryCmd(a))
	cmd.AddCommand(newExtractCmd(a))
	cmd.AddCommand(newSymbolsCmd(a))
	cmd.AddCommand(newConfigCmd(a))
	cmd.AddCommand(newVersionCmd(a))

	return cmd
}

// setup loads configuration, then starts logging and profiling.
func (a *app) setup(_ *cobra.Command, _ []string) error {
	root, err := config.FindProjectRoot(a.dir)
	if err != nil {
		return err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logCfg := cfg.LoggingConfig(a.debug)
	if !a.debug {
		// Warnings go to the log file only, keeping stderr for results and errors.
		logCfg.WriteToStderr = false
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	a.logger = logger
	a.loggingCleanup = cleanup
	slog.SetDefault(logger)
	if a.debug {
		logger.Info("debug_logging_enabled",
			slog.String("log_file", logCfg.FilePath),
			slog.String("version", version.Short()),
			slog.String("project_root", root))
	}

	if a.profile.Enabled() {
		p, err := profiling.Start(a.profile)
		if err != nil {
			return err
		}
		a.profiler = p
	}
	return nil
}

// teardown stops profiling and flushes logs.
func (a *app) teardown() error {
	var err error
	if a.profiler != nil {
		err = a.profiler.Stop()
		if a.logger != nil {
			a.logger.Debug("profile_written", slog.String("heap_in_use", profiling.FormatBytes(profiling.HeapInUse())))
		}
		a.profiler = nil
	}
	if a.loggingCleanup != nil {
		a.loggingCleanup()
		a.loggingCleanup = nil
	}
	return err
}

// writer returns an output writer over cmd's stdout.
func (a *app) writer(cmd *cobra.Command) *output.Writer {
	format := output.FormatText
	if a.jsonOutput {
		format = output.FormatJSON
	}
	return output.New(cmd.OutOrStdout(), format)
}

// Execute runs the root command and reports any error on stderr.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	root.SetContext(ctx)
	cmd, err := root.ExecuteC()
	if err != nil {
		jsonOutput, _ := root.PersistentFlags().GetBool("json")
		debug, _ := root.PersistentFlags().GetBool("debug")
		format := output.FormatText
		if jsonOutput {
			format = output.FormatJSON
		}
		output.New(cmd.ErrOrStderr(), format).Error(err, debug)
		// Tear down when a command failed before its post-run hook.
		_ = closeOnError(root)
	}
	return err
}

// closeOnError flushes the default logger's writers when RunE failed and
// PersistentPostRunE was skipped.
func closeOnError(root *cobra.Command) error {
	if root.PersistentPostRunE == nil {
		return nil
	}
	return root.PersistentPostRunE(root, nil)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
