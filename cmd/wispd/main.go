// Command wispd is the wisp runtime daemon: it binds a single Unix
// socket (spec.md §6.4) and hands each accepted connection to its own
// pkg/terminal.Terminal, backed by one shared pkg/kernel.Kernel.
//
// Restructured from the teacher's cmd/smog/main.go os.Args switch onto
// github.com/spf13/cobra per SPEC_FULL.md §0/§1: wispd and wisp
// (cmd/wisp) are both out-of-scope thin entry points over the in-scope
// runtime packages.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var socketFlag, logLevelFlag, configFlag string

	cmd := &cobra.Command{
		Use:   "wispd",
		Short: "wisp runtime daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configFlag != "" {
				v.SetConfigFile(configFlag)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("wispd: read config: %w", err)
				}
			}
			if socketFlag != "" {
				v.Set("socket", socketFlag)
			}
			if logLevelFlag != "" {
				v.Set("log_level", logLevelFlag)
			}

			cfg := loadConfig(v)

			level, err := logrus.ParseLevel(cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("wispd: invalid log level %q: %w", cfg.LogLevel, err)
			}
			logger := logrus.New()
			logger.SetLevel(level)
			log := logrus.NewEntry(logger)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return runDaemon(ctx, cfg, log)
		},
	}

	cmd.Flags().StringVar(&socketFlag, "socket", "", "unix socket path (default $XDG_RUNTIME_DIR/wisp.sock or ~/.wisp/wisp.sock)")
	cmd.Flags().StringVar(&logLevelFlag, "log-level", "", "log level (panic, fatal, error, warn, info, debug, trace)")
	cmd.Flags().StringVar(&configFlag, "config", "", "path to a TOML/YAML config file")

	return cmd
}
