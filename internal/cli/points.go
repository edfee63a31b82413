package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rallylog/rallylog/internal/domain"
)

func init() {
	rootCmd.AddCommand(pointCmd)
	rootCmd.AddCommand(undoCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)

	pointCmd.Flags().String("serve-type", "", "Serve type (informational)")
	pointCmd.Flags().String("receive-type", "", "Receive type (informational)")
	pointCmd.Flags().StringSlice("rally-type", nil, "Rally stroke types (informational, repeatable)")

	statusCmd.Flags().Bool("json", false, "Print as JSON")

	historyCmd.Flags().IntP("limit", "n", 20, "Number of points to show (0 = all)")
	historyCmd.Flags().Bool("json", false, "Print as JSON")
}

// ─── point ──────────────────────────────────────────────────────────────────

var pointCmd = &cobra.Command{
	Use:   "point OUTCOME [STROKE_TOKENS...]",
	Short: "Log a point",
	Long: `Log one point in the current game. OUTCOME is one of:
  myWinner, opponentError, myError, iMissed, unlucky, badServeReceive
Stroke tokens look like serve:pendulum, receive:push or rally:forehandLoop.
A match and game 1 are started automatically when none is active.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPoint,
}

func runPoint(cmd *cobra.Command, args []string) error {
	outcome, err := domain.ParseOutcome(args[0])
	if err != nil {
		return err
	}
	serveType, _ := cmd.Flags().GetString("serve-type")
	receiveType, _ := cmd.Flags().GetString("receive-type")
	rallyTypes, _ := cmd.Flags().GetStringSlice("rally-type")

	app, closeApp, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp()

	ctx := cmd.Context()
	rec, err := app.Tracker.LogPoint(ctx, domain.PointInput{
		Outcome:      outcome,
		StrokeTokens: args[1:],
		ServeType:    domain.StringPtr(serveType),
		ReceiveType:  domain.StringPtr(receiveType),
		RallyTypes:   rallyTypes,
	})
	if err != nil {
		return err
	}
	st, err := app.Tracker.Status(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✅ %s → %s\n", rec.Outcome, app.Tracker.Credits().CreditFor(rec.Outcome))
	printStatus(out, st)
	return nil
}

// ─── undo ───────────────────────────────────────────────────────────────────

var undoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Remove the last logged point",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		rec, err := app.Tracker.UndoLast(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if rec == nil {
			fmt.Fprintln(out, "Nothing to undo.")
			return nil
		}
		fmt.Fprintf(out, "↩️  Removed %s (%s)\n", rec.Outcome, rec.Timestamp.Local().Format("15:04:05"))

		st, err := app.Tracker.Status(cmd.Context())
		if err != nil {
			return err
		}
		printStatus(out, st)
		return nil
	},
}

// ─── status ─────────────────────────────────────────────────────────────────

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the scoreboard for the current game",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		app, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		st, err := app.Tracker.Status(cmd.Context())
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(cmd, st)
		}
		printStatus(cmd.OutOrStdout(), st)
		return nil
	},
}

// ─── history ────────────────────────────────────────────────────────────────

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List logged points, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		app, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		recs := app.Tracker.History(cmd.Context(), limit)
		if asJSON {
			return writeJSON(cmd, recs)
		}
		printHistory(cmd.OutOrStdout(), recs)
		return nil
	},
}

func writeJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
