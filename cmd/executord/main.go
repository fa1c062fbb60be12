// Package main is executord's entry point: a cobra root command with
// serve and version subcommands, bootstrapping a zap production (JSON) logger for
// CLI output alongside the internal categorized file logger used by
// every other package.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"executord/internal/config"
	"executord/internal/httpapi"
	"executord/internal/logging"
	"executord/internal/policy"
)

var (
	verbose    bool
	configPath string
	watch      bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "executord",
	Short: "executord runs untrusted code fragments against sandboxed git workspaces",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if cfg.Execution.AllowlistExtension != "" {
			extended, err := policy.ExtendAllowedCommands(cfg.Execution.AllowedCommands, cfg.Execution.AllowlistExtension)
			if err != nil {
				return fmt.Errorf("applying allowlist extension: %w", err)
			}
			cfg.Execution.AllowedCommands = extended
		}

		baseDir, err := os.Getwd()
		if err != nil {
			return err
		}
		if err := logging.Initialize(cfg.Logging, baseDir); err != nil {
			return fmt.Errorf("initializing logging: %w", err)
		}
		logging.Boot("executord starting, workspace_base=%s addr=%s", cfg.WorkspaceBase, cfg.HTTP.Addr)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if watch && configPath != "" {
			err := config.WatchReload(ctx, configPath, func(reloaded *config.Config) {
				if err := logging.Initialize(reloaded.Logging, baseDir); err != nil {
					logger.Warn("reload: failed to apply logging config", zap.Error(err))
					return
				}
				logging.Boot("configuration reloaded from %s", configPath)
			}, func(err error) {
				logger.Warn("config watch error", zap.Error(err))
			})
			if err != nil {
				logger.Warn("config hot-reload unavailable", zap.Error(err))
			}
		}

		srv := httpapi.New(cfg)
		return srv.ListenAndServe(ctx)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("executord dev")
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	serveCmd.Flags().BoolVar(&watch, "watch", false, "hot-reload configuration on change")

	rootCmd.AddCommand(serveCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
