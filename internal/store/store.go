package store

import (
	"context"

	"github.com/sells-group/evidence-cli/internal/model"
	"github.com/sells-group/evidence-cli/internal/tracker"
)

// SessionFilter specifies criteria for listing sessions.
type SessionFilter struct {
	Subject string `json:"subject,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Offset  int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for sessions and retry reports.
type Store interface {
	// Sessions
	CreateSession(ctx context.Context, subject, question string) (*model.Session, error)
	AppendAttempt(ctx context.Context, sessionID string, attempt model.Attempt) error
	GetSession(ctx context.Context, sessionID string) (*model.Session, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]model.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Reports
	SaveReport(ctx context.Context, report tracker.Report) error
	ListReports(ctx context.Context, limit int) ([]tracker.Report, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
