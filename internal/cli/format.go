package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rallylog/rallylog/internal/app/tracker"
	"github.com/rallylog/rallylog/internal/domain"
)

func printStatus(w io.Writer, st tracker.Status) {
	server := "opponent"
	if st.IsPlayerServingNext {
		server = "you"
	}
	fmt.Fprintf(w, "Game %d  %d–%d  %s\n", st.GameNumber, st.PointsWon, st.PointsLost, st.StatusMessage)
	fmt.Fprintf(w, "Next serve: %s", server)
	if st.SidesSwapped {
		fmt.Fprint(w, "  (sides swapped)")
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Match: games %d–%d, %d points\n", st.GamesWon, st.GamesLost, st.PointCount)
}

func printHistory(w io.Writer, recs []domain.PointRecord) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "No points logged.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tGAME\tOUTCOME\tSTROKES\tID")
	for _, r := range recs {
		game := "-"
		if r.GameNumber != nil {
			game = fmt.Sprint(*r.GameNumber)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.Timestamp.Local().Format("2006-01-02 15:04:05"), game, r.Outcome,
			strings.Join(r.StrokeTokens, " "), shortID(r.ID))
	}
	tw.Flush()
}

func printMatches(w io.Writer, list []tracker.MatchSummary) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No matches.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tGAMES\tPOINTS\tSTATE")
	for _, m := range list {
		state := "active"
		if m.EndDate != nil {
			state = "ended"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d–%d\t%d\t%s\n",
			m.ID, m.StartDate.Local().Format("2006-01-02 15:04"), m.GamesWon, m.GamesLost, m.PointCount, state)
	}
	tw.Flush()
}

func printMatch(w io.Writer, m tracker.MatchSummary) {
	fmt.Fprintf(w, "Match %s\n", m.ID)
	fmt.Fprintf(w, "Started: %s\n", m.StartDate.Local().Format("2006-01-02 15:04"))
	if m.EndDate != nil {
		fmt.Fprintf(w, "Ended:   %s\n", m.EndDate.Local().Format("2006-01-02 15:04"))
	}
	if m.OpponentName != nil {
		fmt.Fprintf(w, "Opponent: %s\n", *m.OpponentName)
	}
	fmt.Fprintf(w, "Games %d–%d, %d points\n\n", m.GamesWon, m.GamesLost, m.PointCount)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GAME\tSCORE\tSTATUS\tFIRST SERVE")
	for _, g := range m.Games {
		first := "you"
		if !g.PlayerServedFirst {
			first = "opponent"
		}
		fmt.Fprintf(tw, "%d\t%d–%d\t%s\t%s\n", g.GameNumber, g.PointsWon, g.PointsLost, g.StatusMessage, first)
	}
	tw.Flush()
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
