package loop

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/evidence-cli/internal/config"
	"github.com/sells-group/evidence-cli/internal/grounding"
	"github.com/sells-group/evidence-cli/internal/model"
	"github.com/sells-group/evidence-cli/internal/tracker"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Fetch(ctx context.Context, subject, question, feedback string) (model.EvidenceBundle, error) {
	args := m.Called(ctx, subject, question, feedback)
	return args.Get(0).(model.EvidenceBundle), args.Error(1)
}

type mockScorer struct {
	mock.Mock
}

func (m *mockScorer) Score(bundle model.EvidenceBundle, question string, opinion *float64, rationale string) model.ConfidenceBreakdown {
	args := m.Called(bundle, question, opinion, rationale)
	return args.Get(0).(model.ConfidenceBreakdown)
}

type mockReasoner struct {
	mock.Mock
}

func (m *mockReasoner) Judge(ctx context.Context, bundle model.EvidenceBundle, question string) (float64, string, error) {
	args := m.Called(ctx, bundle, question)
	return args.Get(0).(float64), args.String(1), args.Error(2)
}

func (m *mockReasoner) JudgeSufficiency(ctx context.Context, bundle model.EvidenceBundle, question string, confidence float64) (model.Verdict, string, error) {
	args := m.Called(ctx, bundle, question, confidence)
	return args.Get(0).(model.Verdict), args.String(1), args.Error(2)
}

func (m *mockReasoner) Synthesize(ctx context.Context, bundle model.EvidenceBundle, question string, confidence float64, gaps []string) (string, error) {
	args := m.Called(ctx, bundle, question, confidence, gaps)
	return args.String(0), args.Error(1)
}

var (
	_ Source   = (*mockSource)(nil)
	_ Scorer   = (*mockScorer)(nil)
	_ Reasoner = (*mockReasoner)(nil)
)

const testQuestion = "What happened recently?"

func testBundle() model.EvidenceBundle {
	return model.EvidenceBundle{
		Subject:    "Acme",
		Summary:    "Steady quarterly growth reported.",
		Provenance: model.ProvenanceCached,
	}
}

func breakdown(score float64, gaps ...string) model.ConfidenceBreakdown {
	return model.ConfidenceBreakdown{
		RuleScore:  score,
		FinalScore: score,
		Gaps:       gaps,
	}
}

func newTestOrchestrator(src Source, sc Scorer, r Reasoner, cfg config.LoopConfig) (*Orchestrator, *tracker.Tracker) {
	trk := tracker.NewTracker()
	v := grounding.NewValidator(config.GroundingConfig{})
	return New(src, sc, v, r, trk, cfg), trk
}

func TestRun_ShortCircuitAboveThreshold(t *testing.T) {
	src := new(mockSource)
	src.On("Fetch", mock.Anything, "Acme", testQuestion, "").
		Return(testBundle(), nil).Once()

	sc := new(mockScorer)
	sc.On("Score", mock.Anything, testQuestion, (*float64)(nil), "").
		Return(breakdown(8.0)).Once()

	o, _ := newTestOrchestrator(src, sc, nil, config.LoopConfig{})
	result, err := o.Run(context.Background(), "s1", "Acme", testQuestion)

	require.NoError(t, err)
	assert.True(t, result.ShortCircuited)
	assert.Equal(t, 1, result.AttemptsUsed)
	assert.InDelta(t, 8.0, result.FinalConfidence, 1e-9)
	require.Len(t, result.Attempts, 1)
	assert.Equal(t, model.VerdictSufficient, result.Attempts[0].Verdict)
	assert.Equal(t, "Steady quarterly growth reported.", result.Narrative)
	assert.True(t, result.Grounding.Grounded)
	assert.Equal(t, 1, result.Report.TotalAttempts)

	src.AssertExpectations(t)
	sc.AssertExpectations(t)
}

func TestRun_ExhaustsMaxAttempts(t *testing.T) {
	src := new(mockSource)
	src.On("Fetch", mock.Anything, "Acme", testQuestion, "").
		Return(testBundle(), nil).Times(3)

	sc := new(mockScorer)
	sc.On("Score", mock.Anything, testQuestion, (*float64)(nil), "").
		Return(breakdown(3.0, "evidence is too generic")).Times(3)

	o, _ := newTestOrchestrator(src, sc, nil, config.LoopConfig{MaxAttempts: 3})
	result, err := o.Run(context.Background(), "s1", "Acme", testQuestion)

	require.NoError(t, err)
	assert.False(t, result.ShortCircuited)
	assert.Equal(t, 3, result.AttemptsUsed)
	require.Len(t, result.Attempts, 3)
	for i, att := range result.Attempts {
		assert.Equal(t, i+1, att.Sequence)
		// No reasoner means no sufficiency judgement below threshold.
		assert.Equal(t, model.VerdictInsufficient, att.Verdict)
	}
	assert.InDelta(t, 3.0, result.FinalConfidence, 1e-9)
	assert.NotEmpty(t, result.Narrative)

	src.AssertExpectations(t)
	sc.AssertExpectations(t)
}

func TestRun_FeedbackThreadsIntoRetry(t *testing.T) {
	src := new(mockSource)
	src.On("Fetch", mock.Anything, "Acme", testQuestion, "").
		Return(testBundle(), nil).Once()
	src.On("Fetch", mock.Anything, "Acme", testQuestion, "gather revenue metrics").
		Return(testBundle(), nil).Once()

	sc := new(mockScorer)
	sc.On("Score", mock.Anything, testQuestion, mock.Anything, mock.Anything).
		Return(breakdown(4.0)).Once()
	sc.On("Score", mock.Anything, testQuestion, mock.Anything, mock.Anything).
		Return(breakdown(5.0)).Once()

	r := new(mockReasoner)
	r.On("Judge", mock.Anything, mock.Anything, testQuestion).
		Return(4.5, "plausible but thin", nil).Times(2)
	r.On("JudgeSufficiency", mock.Anything, mock.Anything, testQuestion, 4.0).
		Return(model.VerdictInsufficient, "gather revenue metrics", nil).Once()
	r.On("JudgeSufficiency", mock.Anything, mock.Anything, testQuestion, 5.0).
		Return(model.VerdictSufficient, "", nil).Once()
	r.On("Synthesize", mock.Anything, mock.Anything, testQuestion, 5.0, mock.Anything).
		Return("Steady quarterly growth reported.", nil).Once()

	o, _ := newTestOrchestrator(src, sc, r, config.LoopConfig{MaxAttempts: 3})
	result, err := o.Run(context.Background(), "s1", "Acme", testQuestion)

	require.NoError(t, err)
	assert.Equal(t, 2, result.AttemptsUsed)
	require.Len(t, result.Attempts, 2)
	assert.Equal(t, model.VerdictInsufficient, result.Attempts[0].Verdict)
	assert.Equal(t, model.VerdictSufficient, result.Attempts[1].Verdict)
	// The second attempt records the feedback it was fetched with.
	assert.Equal(t, "gather revenue metrics", result.Attempts[1].Feedback)

	src.AssertExpectations(t)
	r.AssertExpectations(t)
}

func TestRun_FetchErrorDegradesToEmptyBundle(t *testing.T) {
	src := new(mockSource)
	src.On("Fetch", mock.Anything, "Acme", testQuestion, "").
		Return(model.EvidenceBundle{}, eris.New("network down")).Once()

	sc := new(mockScorer)
	sc.On("Score", mock.Anything, testQuestion, (*float64)(nil), "").
		Return(breakdown(7.0)).Once()

	o, _ := newTestOrchestrator(src, sc, nil, config.LoopConfig{})
	result, err := o.Run(context.Background(), "s1", "Acme", testQuestion)

	require.NoError(t, err)
	assert.Equal(t, 1, result.AttemptsUsed)
	assert.Equal(t, "No evidence was gathered for Acme.", result.Narrative)
	assert.True(t, result.Grounding.Grounded)

	src.AssertExpectations(t)
}

func TestRun_SufficiencyJudgeFailureRetries(t *testing.T) {
	src := new(mockSource)
	src.On("Fetch", mock.Anything, "Acme", testQuestion, mock.Anything).
		Return(testBundle(), nil).Times(2)

	sc := new(mockScorer)
	sc.On("Score", mock.Anything, testQuestion, mock.Anything, mock.Anything).
		Return(breakdown(4.0)).Times(2)

	r := new(mockReasoner)
	r.On("Judge", mock.Anything, mock.Anything, testQuestion).
		Return(0.0, "", eris.New("judge unavailable")).Times(2)
	r.On("JudgeSufficiency", mock.Anything, mock.Anything, testQuestion, 4.0).
		Return(model.Verdict(""), "", eris.New("judge unavailable")).Once()
	r.On("JudgeSufficiency", mock.Anything, mock.Anything, testQuestion, 4.0).
		Return(model.VerdictSufficient, "", nil).Once()
	r.On("Synthesize", mock.Anything, mock.Anything, testQuestion, 4.0, mock.Anything).
		Return("Steady quarterly growth reported.", nil).Once()

	o, _ := newTestOrchestrator(src, sc, r, config.LoopConfig{MaxAttempts: 3})
	result, err := o.Run(context.Background(), "s1", "Acme", testQuestion)

	require.NoError(t, err)
	require.Len(t, result.Attempts, 2)
	assert.Equal(t, model.VerdictNotEvaluated, result.Attempts[0].Verdict)
	assert.Equal(t, model.VerdictSufficient, result.Attempts[1].Verdict)

	r.AssertExpectations(t)
}

func TestRun_SynthesisFailureUsesTemplate(t *testing.T) {
	src := new(mockSource)
	src.On("Fetch", mock.Anything, "Acme", testQuestion, "").
		Return(testBundle(), nil).Once()

	sc := new(mockScorer)
	sc.On("Score", mock.Anything, testQuestion, mock.Anything, mock.Anything).
		Return(breakdown(8.0)).Once()

	r := new(mockReasoner)
	r.On("Judge", mock.Anything, mock.Anything, testQuestion).
		Return(8.0, "solid", nil).Once()
	r.On("Synthesize", mock.Anything, mock.Anything, testQuestion, 8.0, mock.Anything).
		Return("", eris.New("api overloaded")).Once()

	o, _ := newTestOrchestrator(src, sc, r, config.LoopConfig{})
	result, err := o.Run(context.Background(), "s1", "Acme", testQuestion)

	require.NoError(t, err)
	assert.Equal(t, "Steady quarterly growth reported.", result.Narrative)
	r.AssertExpectations(t)
}

func TestRun_CancelledBeforeFirstAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o, _ := newTestOrchestrator(new(mockSource), new(mockScorer), nil, config.LoopConfig{})
	_, err := o.Run(ctx, "s1", "Acme", testQuestion)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled before first attempt")
}

func TestTemplateNarrative(t *testing.T) {
	full := templateNarrative(model.EvidenceBundle{
		Subject:  "Acme",
		Summary:  "summary text",
		Metrics:  "metrics text",
		Timeline: "timeline text",
	}, 5.0)
	assert.Equal(t, "summary text\n\nmetrics text\n\ntimeline text", full)

	empty := templateNarrative(model.EvidenceBundle{Subject: "Acme"}, 0)
	assert.Equal(t, "No evidence was gathered for Acme.", empty)
}

func TestAccumulateFeedback(t *testing.T) {
	assert.Equal(t, "", accumulateFeedback("", ""))
	assert.Equal(t, "a", accumulateFeedback("", "a"))
	assert.Equal(t, "a", accumulateFeedback("a", "  "))
	assert.Equal(t, "a; b", accumulateFeedback("a", "b"))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "gathering", StateGathering.String())
	assert.Equal(t, "done", StateDone.String())
}
