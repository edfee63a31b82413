package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rallylog/rallylog/internal/daemon"
	"github.com/rallylog/rallylog/internal/domain"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(syncCmd)

	serveCmd.Flags().IntP("port", "p", 0, "Override api.port")
	syncCmd.Flags().Bool("push", false, "Upload local points the remote is missing before merging")
}

// ─── serve ──────────────────────────────────────────────────────────────────

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local HTTP API",
	Long: `Run the local HTTP API used by a scoring UI. Sync status is streamed on
/api/sync/events and, when a remote is configured, the point log is
refreshed from it every sync.refresh_interval.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			cfg.API.Port = port
		}

		log := cfg.NewLogger(cmd.ErrOrStderr())
		app, err := daemon.Open(cfg, log)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		serveErr := daemon.Serve(ctx, app)

		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		app.Close(closeCtx)
		return serveErr
	},
}

// ─── sync ───────────────────────────────────────────────────────────────────

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Merge the remote point history into the local one",
	Long: `Fetch the remote point history and merge it into the local log. When the
same point exists on both sides the remote copy wins. With --push, local
points the remote has never seen (logged offline, or dropped from a full
sync queue) are uploaded first.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		push, _ := cmd.Flags().GetBool("push")

		app, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		res, err := app.Tracker.Sync(cmd.Context(), push)
		if errors.Is(err, domain.ErrRemoteDisabled) {
			return fmt.Errorf("%w: set [remote] url and key in %s or RALLY_SUPABASE_URL/RALLY_SUPABASE_KEY",
				err, daemon.ConfigFileName)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if push {
			fmt.Fprintf(out, "⬆️  Pushed %d points\n", res.Pushed)
		}
		fmt.Fprintf(out, "✅ Synced. %d points in history.\n", res.Records)
		return nil
	},
}
