// Package evidence gathers raw evidence bundles about a subject, either
// from the live Tavily search API or from a built-in offline dataset used
// for development and tests.
package evidence

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/evidence-cli/internal/config"
	"github.com/sells-group/evidence-cli/internal/model"
	"github.com/sells-group/evidence-cli/pkg/tavily"
)

// Source turns a subject and question into a raw evidence bundle. Feedback
// from a previous insufficient attempt, when present, steers the queries.
type Source interface {
	Fetch(ctx context.Context, subject, question, feedback string) (model.EvidenceBundle, error)
}

// TavilySource fetches evidence via the Tavily Search API, falling back to
// the offline dataset when the API fails.
type TavilySource struct {
	client   tavily.Client
	cfg      config.TavilyConfig
	fallback *OfflineSource
}

// NewTavilySource creates a live evidence source.
func NewTavilySource(client tavily.Client, cfg config.TavilyConfig) *TavilySource {
	return &TavilySource{
		client:   client,
		cfg:      cfg,
		fallback: NewOfflineSource(),
	}
}

// Fetch runs three searches (news, financial metrics, developments) and
// folds the hits into a bundle. Any API failure degrades to the offline
// dataset rather than erroring: an empty or stale bundle scores low and
// lets the loop decide what to do.
func (s *TavilySource) Fetch(ctx context.Context, subject, question, feedback string) (model.EvidenceBundle, error) {
	newsQuery := subject + " latest news developments"
	if feedback != "" && strings.Contains(strings.ToLower(feedback), "news") {
		newsQuery = subject + " breaking news recent updates"
	}

	devQuery := subject + " " + question
	if feedback != "" {
		devQuery = subject + " " + feedback
	}

	news, err := s.search(ctx, newsQuery, s.cfg.SearchDepth)
	if err != nil {
		zap.L().Warn("evidence: tavily search failed, using offline dataset",
			zap.String("subject", subject),
			zap.Error(err),
		)
		return s.fallback.Fetch(ctx, subject, question, feedback)
	}

	metrics, err := s.search(ctx, subject+" stock price financial performance", "basic")
	if err != nil {
		zap.L().Warn("evidence: metrics search failed",
			zap.String("subject", subject),
			zap.Error(err),
		)
	}

	developments, err := s.search(ctx, devQuery, s.cfg.SearchDepth)
	if err != nil {
		zap.L().Warn("evidence: developments search failed",
			zap.String("subject", subject),
			zap.Error(err),
		)
	}

	bundle := model.EvidenceBundle{
		Subject:    subject,
		Summary:    joinContents(news),
		Metrics:    joinContents(metrics),
		Timeline:   joinContents(developments),
		Provenance: model.ProvenanceLive,
		Citations:  collectURLs(news, metrics, developments),
		Attributes: map[string]any{
			"search_engine": "tavily",
			"question":      question,
		},
	}

	zap.L().Info("evidence: fetched live bundle",
		zap.String("subject", subject),
		zap.Int("citations", len(bundle.Citations)),
		zap.Int("primary_fields", bundle.PrimaryFieldCount()),
	)

	return bundle, nil
}

func (s *TavilySource) search(ctx context.Context, query, depth string) (*tavily.SearchResponse, error) {
	maxResults := s.cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 3
	}
	return s.client.Search(ctx, tavily.SearchRequest{
		Query:       query,
		SearchDepth: depth,
		MaxResults:  maxResults,
	})
}

func joinContents(resp *tavily.SearchResponse) string {
	if resp == nil {
		return ""
	}
	var parts []string
	for _, r := range resp.Results {
		content := r.Content
		if len(content) > 400 {
			content = content[:400]
		}
		if content != "" {
			parts = append(parts, content)
		}
	}
	return strings.Join(parts, " | ")
}

func collectURLs(responses ...*tavily.SearchResponse) []string {
	seen := make(map[string]bool)
	var urls []string
	for _, resp := range responses {
		if resp == nil {
			continue
		}
		for _, r := range resp.Results {
			if r.URL != "" && !seen[r.URL] {
				seen[r.URL] = true
				urls = append(urls, r.URL)
			}
		}
	}
	return urls
}
