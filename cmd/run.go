package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/evidence-cli/internal/confidence"
	"github.com/sells-group/evidence-cli/internal/evidence"
	"github.com/sells-group/evidence-cli/internal/export"
	"github.com/sells-group/evidence-cli/internal/grounding"
	"github.com/sells-group/evidence-cli/internal/loop"
	"github.com/sells-group/evidence-cli/internal/reasoner"
	"github.com/sells-group/evidence-cli/internal/store"
	"github.com/sells-group/evidence-cli/internal/tracker"
	"github.com/sells-group/evidence-cli/pkg/anthropic"
	"github.com/sells-group/evidence-cli/pkg/tavily"
)

var runCmd = &cobra.Command{
	Use:   "run <subject>",
	Short: "Run the evidence loop for a subject",
	Long: `Gathers evidence for the subject, scores it, and retries with feedback
until the confidence threshold is met or attempts are exhausted, then
synthesizes an answer and validates its grounding.

Runs fully offline against the built-in dataset when no API keys are
configured.

Examples:
  # Single subject with the default question
  run "Apple"

  # Custom question
  run "Tesla" --question "How is the energy business performing?"

  # Batch mode: one subject per line
  run --batch subjects.txt

  # Tighter loop and strict grounding
  run "Apple" --threshold 7.5 --max-attempts 2 --strict-grounding`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLoop,
}

func init() {
	f := runCmd.Flags()
	f.String("question", "", "research question (default: recent performance and developments)")
	f.String("batch", "", "file with one subject per line; runs sessions in parallel")
	f.Bool("offline", false, "use the built-in dataset even when API keys are set")
	f.Float64("threshold", 0, "sufficiency threshold override (0=use config)")
	f.Int("max-attempts", 0, "attempt ceiling override (0=use config)")
	f.Bool("strict-grounding", false, "fail grounding on any ungrounded claim")
	f.String("profile", "", "path to a YAML scoring profile")
	f.String("format", "json", "export format: json, md, or none")
	f.Bool("save", false, "persist the session and report to the configured store")

	rootCmd.AddCommand(runCmd)
}

func runLoop(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	batchPath, _ := cmd.Flags().GetString("batch")
	if len(args) == 0 && batchPath == "" {
		return eris.New("run: provide a subject or --batch file")
	}

	question, _ := cmd.Flags().GetString("question")
	format, _ := cmd.Flags().GetString("format")
	save, _ := cmd.Flags().GetBool("save")
	if format != "json" && format != "md" && format != "none" {
		return eris.Errorf("run: --format must be json, md, or none (got %q)", format)
	}

	orch, trk, err := buildOrchestrator(cmd)
	if err != nil {
		return err
	}

	var st store.Store
	if save {
		st, err = openStore(ctx)
		if err != nil {
			return eris.Wrap(err, "run: open store")
		}
		if st == nil {
			return eris.New("run: --save requires store.driver in config")
		}
		defer st.Close()
	}

	if batchPath != "" {
		return runBatch(ctx, cmd, orch, trk, st, batchPath, question, format)
	}

	subject := strings.TrimSpace(args[0])
	result, err := runOne(ctx, orch, st, subject, question)
	if err != nil {
		return err
	}
	printResult(result)
	return exportResult(result, format)
}

// buildOrchestrator wires the loop from config and flags. The live stack
// needs API keys; anything missing degrades to offline or rule-only.
func buildOrchestrator(cmd *cobra.Command) (*loop.Orchestrator, *tracker.Tracker, error) {
	scoringCfg := cfg.Scoring
	if path, _ := cmd.Flags().GetString("profile"); path != "" {
		profile, err := confidence.LoadProfile(path)
		if err != nil {
			return nil, nil, err
		}
		scoringCfg = profile.Scoring
		zap.L().Info("run: using scoring profile", zap.String("name", profile.Name))
	}
	if err := scoringCfg.Validate(); err != nil {
		return nil, nil, err
	}

	loopCfg := cfg.Loop
	if v, _ := cmd.Flags().GetFloat64("threshold"); v > 0 {
		loopCfg.SufficiencyThreshold = v
	}
	if v, _ := cmd.Flags().GetInt("max-attempts"); v > 0 {
		loopCfg.MaxAttempts = v
	}
	if v, _ := cmd.Flags().GetBool("strict-grounding"); v {
		loopCfg.StrictGrounding = true
	}

	offline, _ := cmd.Flags().GetBool("offline")
	var source loop.Source
	if offline || cfg.Tavily.Key == "" {
		source = evidence.NewOfflineSource()
	} else {
		client := tavily.NewClient(cfg.Tavily.Key,
			tavily.WithBaseURL(cfg.Tavily.BaseURL),
			tavily.WithRateLimit(cfg.Tavily.RatePerSec),
		)
		source = evidence.NewTavilySource(client, cfg.Tavily)
	}

	var rsn loop.Reasoner
	if cfg.Anthropic.Key != "" {
		rsn = reasoner.New(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic)
	}

	trk := tracker.NewTracker()
	orch := loop.New(
		source,
		confidence.NewScorer(scoringCfg),
		grounding.NewValidator(cfg.Grounding),
		rsn,
		trk,
		loopCfg,
	)
	return orch, trk, nil
}

func runOne(ctx context.Context, orch *loop.Orchestrator, st store.Store, subject, question string) (*loop.Result, error) {
	if question == "" {
		question = fmt.Sprintf("What are %s's recent performance and key developments?", subject)
	}

	sessionID := uuid.New().String()
	if st != nil {
		sess, err := st.CreateSession(ctx, subject, question)
		if err != nil {
			return nil, eris.Wrap(err, "run: create session")
		}
		sessionID = sess.ID
	}

	result, err := orch.Run(ctx, sessionID, subject, question)
	if err != nil {
		return nil, eris.Wrapf(err, "run: %s", subject)
	}

	if st != nil {
		for _, att := range result.Attempts {
			if err := st.AppendAttempt(ctx, sessionID, att); err != nil {
				return nil, eris.Wrap(err, "run: persist attempt")
			}
		}
		if err := st.SaveReport(ctx, result.Report); err != nil {
			return nil, eris.Wrap(err, "run: persist report")
		}
	}

	return result, nil
}

func runBatch(ctx context.Context, cmd *cobra.Command, orch *loop.Orchestrator, trk *tracker.Tracker, st store.Store, path, question, format string) error {
	subjects, err := readSubjects(path)
	if err != nil {
		return err
	}
	if len(subjects) == 0 {
		return eris.Errorf("run: no subjects in %s", path)
	}

	log := zap.L().With(zap.String("command", "run"))
	log.Info("starting batch", zap.Int("subjects", len(subjects)))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	var mu sync.Mutex
	var results []*loop.Result

	for _, subject := range subjects {
		g.Go(func() error {
			result, err := runOne(gCtx, orch, st, subject, question)
			if err != nil {
				log.Warn("batch session failed",
					zap.String("subject", subject),
					zap.Error(err),
				)
				return nil
			}
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, r := range results {
		printResult(r)
		if err := exportResult(r, format); err != nil {
			return err
		}
	}
	printBatchSummary(results, trk)
	return nil
}

func readSubjects(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "run: open batch file %s", path)
	}
	defer f.Close()

	var subjects []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			subjects = append(subjects, line)
		}
	}
	return subjects, eris.Wrap(scanner.Err(), "run: read batch file")
}

func exportResult(result *loop.Result, format string) error {
	if format == "none" {
		return nil
	}

	exp := export.New(cfg.Export.Dir)
	var path string
	var err error
	switch format {
	case "md":
		path, err = exp.WriteMarkdown(result)
	default:
		path, err = exp.WriteJSON(result)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Exported to %s\n", path)
	return nil
}

func printResult(r *loop.Result) {
	fmt.Printf("Subject:    %s\n", r.Subject)
	fmt.Printf("Question:   %s\n", r.Question)
	fmt.Printf("Confidence: %.2f/10 (%d attempt(s)", r.FinalConfidence, r.AttemptsUsed)
	if r.ShortCircuited {
		fmt.Print(", short-circuited")
	}
	fmt.Println(")")

	b := r.Breakdown
	fmt.Printf("Factors:    completeness %.1f | freshness %.1f | relevance %.1f | specificity %.1f | sources %.1f\n",
		b.Completeness, b.Freshness, b.Relevance, b.Specificity, b.SourceQuality)
	if len(b.Gaps) > 0 {
		fmt.Println("Gaps:")
		for _, g := range b.Gaps {
			fmt.Printf("  - %s\n", g)
		}
	}

	verdict := "passed"
	if !r.Grounding.Grounded {
		verdict = "FAILED"
	}
	fmt.Printf("Grounding:  %s (ratio %.2f, %d claim(s) checked)\n",
		verdict, r.Grounding.Ratio, r.Grounding.CheckedClaimCount())
	for _, c := range r.Grounding.UngroundedClaims {
		fmt.Printf("  ungrounded %s: %s\n", c.Class, c.Text)
	}

	fmt.Println("\n" + r.Narrative + "\n")
}

func printBatchSummary(results []*loop.Result, trk *tracker.Tracker) {
	if len(results) == 0 {
		fmt.Println("No results.")
		return
	}

	var sumConf float64
	var grounded, worthwhile int
	for _, r := range results {
		sumConf += r.FinalConfidence
		if r.Grounding.Grounded {
			grounded++
		}
		if r.Report.Worthwhile {
			worthwhile++
		}
	}

	stats := trk.HistoricalStats()
	fmt.Printf("--- Batch summary ---\n")
	fmt.Printf("Sessions:           %d\n", len(results))
	fmt.Printf("Average confidence: %.2f\n", sumConf/float64(len(results)))
	fmt.Printf("Grounding passed:   %d/%d\n", grounded, len(results))
	fmt.Printf("Retries worthwhile: %d/%d\n", worthwhile, len(results))
	fmt.Printf("Average attempts:   %.1f\n", stats.AvgAttempts)
}
