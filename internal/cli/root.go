// Package cli provides the shopledger command line interface.
package cli

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/yhsiang/shopledger/internal/config"
	"github.com/yhsiang/shopledger/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	DataDir    string

	cfg *config.Config
}

// NewRootCommand creates the root command for the shopledger CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "shopledger",
		Short: "ShopLedger - offline-first ledger sync",
		Long:  "Keeps a local ShopLedger database and the remote shop store in sync.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			if opts.DataDir != "" {
				cfg.DataDir = opts.DataDir
			}
			opts.cfg = cfg
			initLogging(cfg.Log)
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to a shopledger.yaml config file")
	cmd.PersistentFlags().StringVar(&opts.DataDir, "data-dir", "", "override the data directory")

	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))

	return cmd
}

// initLogging wires the structured logger, rotating to a file when one
// is configured.
func initLogging(cfg config.LogConfig) {
	level := logging.LevelInfo
	switch strings.ToUpper(cfg.Level) {
	case "DEBUG":
		level = logging.LevelDebug
	case "WARN":
		level = logging.LevelWarn
	case "ERROR":
		level = logging.LevelError
	}

	if cfg.File == "" {
		logging.Init(os.Stdout, level)
		return
	}

	logging.Init(&lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}, level)
}
