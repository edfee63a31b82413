// Package cli implements the rally command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rallylog/rallylog/internal/daemon"
)

// Version is set at build time.
var Version = "0.1.0"

var homeDir string

var rootCmd = &cobra.Command{
	Use:   "rally",
	Short: "Table-tennis point tracker",
	Long: `rally logs table-tennis points rally by rally, derives the score, serve
and game status from them, and keeps the point history in a local file that
syncs with a Supabase table when one is configured.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "Data and config directory (default: $RALLY_HOME or ~/.rally)")
	rootCmd.Version = Version
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func resolveHome() string {
	if homeDir != "" {
		return homeDir
	}
	return daemon.Home()
}

func loadConfig() (daemon.Config, error) {
	return daemon.Load(resolveHome())
}

// openApp loads config and opens the stores. The returned func drains the
// sync queue for a few seconds so remote writes from short-lived commands
// get a chance to land.
func openApp(cmd *cobra.Command) (*daemon.App, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	app, err := daemon.Open(cfg, cfg.NewLogger(cmd.ErrOrStderr()))
	if err != nil {
		return nil, nil, err
	}
	return app, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		app.Close(ctx)
	}, nil
}
