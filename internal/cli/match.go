package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(gameCmd)
	gameCmd.AddCommand(gameNewCmd)

	rootCmd.AddCommand(matchCmd)
	matchCmd.AddCommand(matchResetCmd)
	matchCmd.AddCommand(matchEndCmd)
	matchCmd.AddCommand(matchListCmd)
	matchCmd.AddCommand(matchShowCmd)
	matchCmd.AddCommand(matchDeleteCmd)

	rootCmd.AddCommand(sidesCmd)
	sidesCmd.AddCommand(sidesToggleCmd)

	matchShowCmd.Flags().Bool("json", false, "Print as JSON")
	matchResetCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
}

// ─── game ───────────────────────────────────────────────────────────────────

var gameCmd = &cobra.Command{
	Use:   "game",
	Short: "Manage games within the current match",
}

var gameNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Close the current game and start the next one",
	Long: `Close the current game and start the next one. Games are never closed
automatically, even when the score says they are won. The first server
alternates from game to game.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		g, err := app.Tracker.StartNewGame(cmd.Context())
		if err != nil {
			return err
		}
		first := "you"
		if !g.PlayerServedFirst {
			first = "opponent"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "🏓 Game %d started. First serve: %s\n", g.GameNumber, first)
		return nil
	},
}

// ─── match ──────────────────────────────────────────────────────────────────

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Manage matches",
}

var matchResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the active match and all logged points, then start over",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return fmt.Errorf("reset clears every logged point, locally and remotely; rerun with --yes to confirm")
		}

		app, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		if err := app.Tracker.ResetMatch(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✅ Match reset. Game 1, you serve first.")
		return nil
	},
}

var matchEndCmd = &cobra.Command{
	Use:   "end",
	Short: "End the active match",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		st, err := app.Tracker.Status(cmd.Context())
		if err != nil {
			return err
		}
		if err := app.Tracker.EndMatch(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Match ended. Games %d–%d.\n", st.GamesWon, st.GamesLost)
		return nil
	},
}

var matchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List matches, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		list, err := app.Tracker.Matches(cmd.Context())
		if err != nil {
			return err
		}
		printMatches(cmd.OutOrStdout(), list)
		return nil
	},
}

var matchShowCmd = &cobra.Command{
	Use:   "show MATCH_ID",
	Short: "Show one match game by game",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		app, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		m, err := app.Tracker.Match(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(cmd, m)
		}
		printMatch(cmd.OutOrStdout(), m)
		return nil
	},
}

var matchDeleteCmd = &cobra.Command{
	Use:   "delete MATCH_ID",
	Short: "Delete a match with its games and points",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		if err := app.Tracker.DeleteMatch(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Match %s deleted.\n", args[0])
		return nil
	},
}

// ─── sides ──────────────────────────────────────────────────────────────────

var sidesCmd = &cobra.Command{
	Use:   "sides",
	Short: "Manage table sides",
}

var sidesToggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Swap the displayed table sides",
	Long: `Flip the manual side override. Ends swap on even games; the override
inverts that. The override lives in the serving process only, so this is
mainly useful against a running 'rally serve' via its API.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		override := app.Tracker.ToggleSides()
		st, err := app.Tracker.Status(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Override: %v, sides swapped: %v\n", override, st.SidesSwapped)
		return nil
	},
}
