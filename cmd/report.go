package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/evidence-cli/internal/export"
	"github.com/sells-group/evidence-cli/internal/tracker"
)

var reportCmd = &cobra.Command{
	Use:   "report [session-id]",
	Short: "Retry-effectiveness report for a stored session",
	Long: `Replays a persisted session through the retry tracker and prints
whether the retries were worthwhile, with tuning recommendations.

With --xlsx, exports every stored report as a spreadsheet instead.

Examples:
  # Report on one session
  report 3f1c9b2e-...

  # Export all stored reports for threshold tuning
  report --xlsx`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

func init() {
	f := reportCmd.Flags()
	f.Bool("xlsx", false, "export all stored reports to a spreadsheet")
	f.Int("limit", 100, "maximum reports to export with --xlsx")

	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx)
	if err != nil {
		return eris.Wrap(err, "report: open store")
	}
	if st == nil {
		return eris.New("report: requires store.driver in config")
	}
	defer st.Close()

	if xlsxOut, _ := cmd.Flags().GetBool("xlsx"); xlsxOut {
		limit, _ := cmd.Flags().GetInt("limit")
		reports, err := st.ListReports(ctx, limit)
		if err != nil {
			return err
		}
		if len(reports) == 0 {
			fmt.Println("No stored reports.")
			return nil
		}
		path, err := export.New(cfg.Export.Dir).WriteReportsXLSX(reports)
		if err != nil {
			return err
		}
		fmt.Printf("Exported %d report(s) to %s\n", len(reports), path)
		return nil
	}

	if len(args) == 0 {
		return eris.New("report: provide a session id or --xlsx")
	}

	sess, err := st.GetSession(ctx, args[0])
	if err != nil {
		return err
	}
	if len(sess.Attempts) == 0 {
		fmt.Println("Session has no attempts.")
		return nil
	}

	// Replay the persisted attempts so gap diffing is recomputed the same
	// way the live loop does it.
	trk := tracker.NewTracker()
	for _, a := range sess.Attempts {
		trk.RecordAttempt(sess.ID, a.Sequence, a.Breakdown, a.Verdict, a.Gaps, a.Feedback)
	}
	report := trk.GenerateReport(sess.ID, sess.Subject)

	printReport(report)
	return nil
}

func printReport(r tracker.Report) {
	fmt.Printf("Session:     %s\n", r.SessionID)
	fmt.Printf("Subject:     %s\n", r.Subject)
	fmt.Printf("Attempts:    %d\n", r.TotalAttempts)
	fmt.Printf("Confidence:  %.2f -> %.2f (delta %+.2f)\n",
		r.InitialConfidence, r.FinalConfidence, r.ConfidenceDelta)
	fmt.Printf("Gaps:        %d resolved of %d (rate %.2f)\n",
		r.GapsResolved, r.TotalGaps, r.ResolutionRate)
	fmt.Printf("Worthwhile:  %v\n", r.Worthwhile)

	if len(r.Recommendations) > 0 {
		fmt.Println("\nRecommendations:")
		for _, rec := range r.Recommendations {
			fmt.Printf("  - %s\n", rec)
		}
	}

	if len(r.Attempts) > 0 {
		fmt.Println("\nAttempt history:")
		fmt.Printf("  %-4s %-8s %-14s %s\n", "#", "Score", "Verdict", "Gaps")
		fmt.Printf("  %s\n", strings.Repeat("-", 60))
		for _, a := range r.Attempts {
			fmt.Printf("  %-4d %-8.2f %-14s %d\n",
				a.Sequence, a.Confidence(), a.Verdict, len(a.Gaps))
		}
	}
}
