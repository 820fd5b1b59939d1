package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/precambrien/alisbot/internal/app"
	"github.com/precambrien/alisbot/internal/config"
	"github.com/precambrien/alisbot/internal/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", config.AppName, err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var (
		files        []string
		dir          string
		settingsPath string
	)

	cmd := &cobra.Command{
		Use:   config.AppName,
		Short: "IRC channel search bot",
		Long: `alisbot connects to one or more IRC networks and answers private
"list" queries with the channels matching a name pattern, topic pattern
and user count range.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := config.LoadSettings(settingsPath, cmd.Flags())
			if err != nil {
				return err
			}
			if settings.UI.Enabled {
				routeLogsAwayFromTerminal(&settings.Log)
			}

			log, err := logger.New(logger.Config{
				Level:      settings.Log.Level,
				Format:     settings.Log.Format,
				Output:     settings.Log.Output,
				FilePath:   settings.Log.File,
				MaxSizeMB:  settings.Log.MaxSizeMB,
				MaxBackups: settings.Log.MaxBackups,
				NoColor:    settings.Log.NoColor,
			})
			if err != nil {
				return err
			}
			defer log.Close()

			instances, err := config.LoadInstances(config.Sources{Files: files, Dir: dir}, log.Logger)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			err = app.Run(ctx, app.Options{
				Instances: instances,
				Settings:  settings,
				Logger:    log.Logger,
				LogPath:   settings.Log.File,
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVarP(&files, "config", "c", nil, "instance config file (repeatable)")
	flags.StringVarP(&dir, "conf-dir", "d", "", "directory of instance config files (*.toml)")
	flags.StringVar(&settingsPath, "settings", "", "settings file (default: search /etc/alisbot, ~/.config/alisbot, .)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: pretty, text, json")
	flags.String("log-file", "", "rotated log file")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address")
	flags.Bool("tui", false, "show the terminal dashboard")
	cmd.MarkFlagsMutuallyExclusive("config", "conf-dir")

	return cmd
}

// routeLogsAwayFromTerminal keeps log output off the dashboard's terminal,
// writing to a file under the state directory when none is configured.
func routeLogsAwayFromTerminal(s *config.LogSettings) {
	s.Output = ""
	if s.File != "" {
		return
	}
	s.File = filepath.Join(stateDir(), config.AppName+".log")
}

func stateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, config.AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "state", config.AppName)
}
