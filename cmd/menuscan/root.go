package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kimhsiao/menuscan/backend/internal/config"
	"github.com/kimhsiao/menuscan/backend/internal/logging"
)

var (
	configFile string
	cfg        *config.Config
	logCloser  io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "menuscan",
	Short: "Offline-first menu capture backend",
	Long: `menuscan stores captured restaurant menus locally and replays every
write to the menu server once it can be reached.

Writes are queued in a local SQLite database and survive restarts. The
sync engine drains the queue in FIFO order whenever the server is online.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configFile, cmd.Flags())
		if err != nil {
			return err
		}
		cfg = loaded
		return initLogging(cfg.Log)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().String("data-dir", "./data", "directory holding menuscan.db")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
}

// initLogging sets up the global logger. Logs go to stderr unless a file is
// configured, in which case they are rotated.
func initLogging(lc config.LogConfig) error {
	level, err := logging.ParseLevel(lc.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	var out io.Writer = os.Stderr
	if lc.File != "" {
		w := logging.NewFileWriter(logging.FileOptions{
			Path:       lc.File,
			MaxSizeMB:  lc.MaxSizeMB,
			MaxBackups: lc.MaxBackups,
			MaxAgeDays: lc.MaxAgeDays,
		})
		logCloser = w
		out = w
	}
	logging.Init(out, level)
	return nil
}
