package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/evidence-cli/internal/store"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect stored research sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions",
	RunE:  runSessionsList,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session and its attempts",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

func init() {
	f := sessionsListCmd.Flags()
	f.String("subject", "", "filter by subject")
	f.Int("limit", 50, "maximum sessions to list")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func runSessionsList(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx)
	if err != nil {
		return eris.Wrap(err, "sessions: open store")
	}
	if st == nil {
		return eris.New("sessions: requires store.driver in config")
	}
	defer st.Close()

	subject, _ := cmd.Flags().GetString("subject")
	limit, _ := cmd.Flags().GetInt("limit")

	sessions, err := st.ListSessions(ctx, store.SessionFilter{
		Subject: subject,
		Limit:   limit,
	})
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions.")
		return nil
	}

	fmt.Printf("%-38s %-24s %-20s %s\n", "ID", "Subject", "Created", "Question")
	fmt.Println(strings.Repeat("-", 110))
	for _, s := range sessions {
		question := s.Question
		if len(question) > 40 {
			question = question[:37] + "..."
		}
		subj := s.Subject
		if len(subj) > 24 {
			subj = subj[:21] + "..."
		}
		fmt.Printf("%-38s %-24s %-20s %s\n",
			s.ID, subj, s.CreatedAt.Format("2006-01-02 15:04:05"), question)
	}
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx)
	if err != nil {
		return eris.Wrap(err, "sessions: open store")
	}
	if st == nil {
		return eris.New("sessions: requires store.driver in config")
	}
	defer st.Close()

	if err := st.DeleteSession(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted session %s\n", args[0])
	return nil
}
