package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bdougie/jobtrace/internal/config"
	"github.com/bdougie/jobtrace/internal/logging"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	ConfigPath string
	LogLevel   string
	NoColor    bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "jobtrace",
		Short: "Track job-search activity from screen captures",
		Long: `jobtrace samples the screen at a fixed interval, and on request sends the
buffered frames to a vision model that extracts job-search actions
(applications, recruiter messages, interviews). Valid actions are appended
to the configured sinks.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().BoolVar(&opts.NoColor, "no-color", false, "disable colored log output")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newAnalyzeVideoCommand(opts))
	cmd.AddCommand(newInitDBCommand(opts))
	cmd.AddCommand(newSearchCommand(opts))

	return cmd
}

// load reads the configuration and builds the logger.
func (o *rootOptions) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}
	logger := logging.New(os.Stderr, level, o.NoColor)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
