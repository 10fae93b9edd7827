package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/evidence-cli/internal/model"
	"github.com/sells-group/evidence-cli/internal/tracker"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	subject    TEXT NOT NULL,
	question   TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS attempts (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(id),
	sequence   INTEGER NOT NULL,
	payload    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (session_id, sequence)
);

CREATE TABLE IF NOT EXISTS reports (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	subject    TEXT NOT NULL,
	payload    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_sessions_subject ON sessions(subject);
CREATE INDEX IF NOT EXISTS idx_attempts_session_id ON attempts(session_id);
CREATE INDEX IF NOT EXISTS idx_reports_session_id ON reports(session_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateSession(ctx context.Context, subject, question string) (*model.Session, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, subject, question, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, subject, question, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert session")
	}

	return &model.Session{
		ID:        id,
		Subject:   subject,
		Question:  question,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) AppendAttempt(ctx context.Context, sessionID string, attempt model.Attempt) error {
	payload, err := json.Marshal(attempt)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal attempt")
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO attempts (id, session_id, sequence, payload, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), sessionID, attempt.Sequence, string(payload), now,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert attempt %d for session %s", attempt.Sequence, sessionID)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ? WHERE id = ?`,
		now, sessionID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: touch session %s", sessionID)
	}
	return checkRowsAffected(res, "session", sessionID)
}

func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, subject, question, created_at, updated_at FROM sessions WHERE id = ?`,
		sessionID,
	)

	var sess model.Session
	err := row.Scan(&sess.ID, &sess.Subject, &sess.Question, &sess.CreatedAt, &sess.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("session not found: %s", sessionID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan session")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM attempts WHERE session_id = ? ORDER BY sequence ASC`,
		sessionID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list attempts")
	}
	defer rows.Close()

	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan attempt")
		}
		var att model.Attempt
		if err := json.Unmarshal([]byte(payload), &att); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal attempt")
		}
		sess.Attempts = append(sess.Attempts, att)
	}
	return &sess, eris.Wrap(rows.Err(), "sqlite: attempts iterate")
}

func (s *SQLiteStore) ListSessions(ctx context.Context, filter SessionFilter) ([]model.Session, error) {
	query := `SELECT id, subject, question, created_at, updated_at FROM sessions WHERE 1=1`
	var args []any

	if filter.Subject != "" {
		query += ` AND subject = ?`
		args = append(args, filter.Subject)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sessions")
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		var sess model.Session
		if err := rows.Scan(&sess.ID, &sess.Subject, &sess.Question, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan session")
		}
		sessions = append(sessions, sess)
	}
	return sessions, eris.Wrap(rows.Err(), "sqlite: sessions iterate")
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM attempts WHERE session_id = ?`, sessionID,
	); err != nil {
		return eris.Wrapf(err, "sqlite: delete attempts for session %s", sessionID)
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = ?`, sessionID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete session %s", sessionID)
	}
	return checkRowsAffected(res, "session", sessionID)
}

func (s *SQLiteStore) SaveReport(ctx context.Context, report tracker.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal report")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (id, session_id, subject, payload, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), report.SessionID, report.Subject, string(payload), time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: insert report")
}

func (s *SQLiteStore) ListReports(ctx context.Context, limit int) ([]tracker.Report, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM reports ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list reports")
	}
	defer rows.Close()

	var reports []tracker.Report
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan report")
		}
		var r tracker.Report
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal report")
		}
		reports = append(reports, r)
	}
	return reports, eris.Wrap(rows.Err(), "sqlite: reports iterate")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
