package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/evidence-cli/internal/model"
	"github.com/sells-group/evidence-cli/internal/tracker"
)

// Pool is the subset of pgxpool.Pool the store needs. pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: func() {}}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	subject    TEXT NOT NULL,
	question   TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS attempts (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(id),
	sequence   INTEGER NOT NULL,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (session_id, sequence)
);

CREATE TABLE IF NOT EXISTS reports (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	subject    TEXT NOT NULL,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_sessions_subject ON sessions(subject);
CREATE INDEX IF NOT EXISTS idx_attempts_session_id ON attempts(session_id);
CREATE INDEX IF NOT EXISTS idx_reports_session_id ON reports(session_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.closeFn()
	return nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, subject, question string) (*model.Session, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (id, subject, question, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, subject, question, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert session")
	}

	return &model.Session{
		ID:        id,
		Subject:   subject,
		Question:  question,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) AppendAttempt(ctx context.Context, sessionID string, attempt model.Attempt) error {
	payload, err := json.Marshal(attempt)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal attempt")
	}

	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO attempts (id, session_id, sequence, payload, created_at) VALUES ($1, $2, $3, $4, $5)`,
		uuid.New().String(), sessionID, attempt.Sequence, string(payload), now,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert attempt %d for session %s", attempt.Sequence, sessionID)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET updated_at = $1 WHERE id = $2`,
		now, sessionID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: touch session %s", sessionID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("session not found: %s", sessionID)
	}
	return nil
}

func (s *PostgresStore) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, subject, question, created_at, updated_at FROM sessions WHERE id = $1`,
		sessionID,
	)

	var sess model.Session
	err := row.Scan(&sess.ID, &sess.Subject, &sess.Question, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("session not found: %s", sessionID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan session")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM attempts WHERE session_id = $1 ORDER BY sequence ASC`,
		sessionID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list attempts")
	}
	defer rows.Close()

	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan attempt")
		}
		var att model.Attempt
		if err := json.Unmarshal(payload, &att); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal attempt")
		}
		sess.Attempts = append(sess.Attempts, att)
	}
	return &sess, eris.Wrap(rows.Err(), "postgres: attempts iterate")
}

func (s *PostgresStore) ListSessions(ctx context.Context, filter SessionFilter) ([]model.Session, error) {
	query := `SELECT id, subject, question, created_at, updated_at FROM sessions`
	var args []any

	if filter.Subject != "" {
		query += ` WHERE subject = $1`
		args = append(args, filter.Subject)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sessions")
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		var sess model.Session
		if err := rows.Scan(&sess.ID, &sess.Subject, &sess.Question, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan session")
		}
		sessions = append(sessions, sess)
	}
	return sessions, eris.Wrap(rows.Err(), "postgres: sessions iterate")
}

func (s *PostgresStore) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM attempts WHERE session_id = $1`, sessionID,
	); err != nil {
		return eris.Wrapf(err, "postgres: delete attempts for session %s", sessionID)
	}

	tag, err := s.pool.Exec(ctx,
		`DELETE FROM sessions WHERE id = $1`, sessionID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete session %s", sessionID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("session not found: %s", sessionID)
	}
	return nil
}

func (s *PostgresStore) SaveReport(ctx context.Context, report tracker.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal report")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO reports (id, session_id, subject, payload, created_at) VALUES ($1, $2, $3, $4, $5)`,
		uuid.New().String(), report.SessionID, report.Subject, string(payload), time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: insert report")
}

func (s *PostgresStore) ListReports(ctx context.Context, limit int) ([]tracker.Report, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM reports ORDER BY created_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list reports")
	}
	defer rows.Close()

	var reports []tracker.Report
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan report")
		}
		var r tracker.Report
		if err := json.Unmarshal(payload, &r); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal report")
		}
		reports = append(reports, r)
	}
	return reports, eris.Wrap(rows.Err(), "postgres: reports iterate")
}
