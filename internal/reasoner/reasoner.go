package reasoner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/evidence-cli/internal/config"
	"github.com/sells-group/evidence-cli/internal/model"
	"github.com/sells-group/evidence-cli/pkg/anthropic"
)

const judgeSystemPrompt = `You assess the quality of research evidence. Given a subject, a question, and the evidence gathered, rate how well the evidence supports answering the question on a 0-10 scale. Be conservative: missing metrics, stale dates, or vague claims lower the score. Respond with a valid JSON object: {"score": <0.0-10.0>, "rationale": "<one sentence>"}`

const judgeUserPrompt = `Subject: %s
Question: %s

Evidence:
%s`

const sufficiencySystemPrompt = `You decide whether gathered evidence is sufficient to answer a research question. If insufficient, say what a retry should look for. Respond with a valid JSON object: {"verdict": "sufficient" or "insufficient", "feedback": "<what to search for next, empty if sufficient>"}`

const sufficiencyUserPrompt = `Subject: %s
Question: %s
Rule-based confidence: %.1f/10

Evidence:
%s`

const synthesisSystemPrompt = `You write concise research summaries grounded strictly in the provided evidence. Never state a number, date, quote, or name that does not appear in the evidence. If the evidence has gaps, acknowledge them rather than filling them in.`

const synthesisUserPrompt = `Subject: %s
Question: %s
Confidence: %.1f/10
Known gaps: %s

Evidence:
%s

Write a short narrative (2-4 paragraphs) answering the question from this evidence only.`

// Reasoner wraps the Anthropic client for the three LLM roles in the loop:
// opinion scoring, sufficiency judgment, and narrative synthesis.
type Reasoner struct {
	client anthropic.Client
	cfg    config.AnthropicConfig
}

// New creates a Reasoner backed by the given client.
func New(client anthropic.Client, cfg config.AnthropicConfig) *Reasoner {
	return &Reasoner{client: client, cfg: cfg}
}

// Judge returns an opinion score in [0,10] with a one-line rationale.
func (r *Reasoner) Judge(ctx context.Context, bundle model.EvidenceBundle, question string) (float64, string, error) {
	prompt := fmt.Sprintf(judgeUserPrompt, bundle.Subject, question, bundle.FlattenText())

	resp, err := r.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     r.cfg.JudgeModel,
		MaxTokens: 256,
		System:    []anthropic.SystemBlock{{Text: judgeSystemPrompt}},
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return 0, "", eris.Wrap(err, "reasoner: judge")
	}
	resp.Usage.LogCost(r.cfg.JudgeModel, "judge")

	var result struct {
		Score     float64 `json:"score"`
		Rationale string  `json:"rationale"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &result); err != nil {
		return 0, "", eris.Wrap(err, "reasoner: parse judge response")
	}

	zap.L().Debug("reasoner: opinion score",
		zap.String("subject", bundle.Subject),
		zap.Float64("score", result.Score),
	)
	return result.Score, result.Rationale, nil
}

// JudgeSufficiency asks whether the evidence can answer the question. The
// feedback string guides search query rewriting on retry.
func (r *Reasoner) JudgeSufficiency(ctx context.Context, bundle model.EvidenceBundle, question string, confidence float64) (model.Verdict, string, error) {
	prompt := fmt.Sprintf(sufficiencyUserPrompt, bundle.Subject, question, confidence, bundle.FlattenText())

	resp, err := r.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     r.cfg.JudgeModel,
		MaxTokens: 256,
		System:    []anthropic.SystemBlock{{Text: sufficiencySystemPrompt}},
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return model.VerdictNotEvaluated, "", eris.Wrap(err, "reasoner: judge sufficiency")
	}
	resp.Usage.LogCost(r.cfg.JudgeModel, "sufficiency")

	var result struct {
		Verdict  string `json:"verdict"`
		Feedback string `json:"feedback"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &result); err != nil {
		return model.VerdictNotEvaluated, "", eris.Wrap(err, "reasoner: parse sufficiency response")
	}

	verdict := model.VerdictInsufficient
	if strings.EqualFold(strings.TrimSpace(result.Verdict), string(model.VerdictSufficient)) {
		verdict = model.VerdictSufficient
	}
	return verdict, result.Feedback, nil
}

// Synthesize produces the final narrative from the accepted evidence.
func (r *Reasoner) Synthesize(ctx context.Context, bundle model.EvidenceBundle, question string, confidence float64, gaps []string) (string, error) {
	gapText := "none"
	if len(gaps) > 0 {
		gapText = strings.Join(gaps, "; ")
	}
	prompt := fmt.Sprintf(synthesisUserPrompt, bundle.Subject, question, confidence, gapText, bundle.FlattenText())

	resp, err := r.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     r.cfg.SynthModel,
		MaxTokens: r.cfg.MaxTokens,
		System:    []anthropic.SystemBlock{{Text: synthesisSystemPrompt}},
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "reasoner: synthesize")
	}
	resp.Usage.LogCost(r.cfg.SynthModel, "synthesis")

	narrative := strings.TrimSpace(resp.Text())
	if narrative == "" {
		return "", eris.New("reasoner: empty synthesis response")
	}
	return narrative, nil
}

// cleanJSON attempts to extract a JSON object from text that may contain
// markdown code fences or other wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
