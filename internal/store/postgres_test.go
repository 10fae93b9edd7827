package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/evidence-cli/internal/model"
	"github.com/sells-group/evidence-cli/internal/tracker"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	return NewPostgresWithPool(mock), mock
}

func TestPostgres_CreateSession(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO sessions").
		WithArgs(pgxmock.AnyArg(), "Acme", "q", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	sess, err := st.CreateSession(context.Background(), "Acme", "q")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "Acme", sess.Subject)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_AppendAttempt(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO attempts").
		WithArgs(pgxmock.AnyArg(), "s1", 1, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE sessions SET updated_at").
		WithArgs(pgxmock.AnyArg(), "s1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := st.AppendAttempt(context.Background(), "s1", model.Attempt{Sequence: 1})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_AppendAttemptUnknownSession(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO attempts").
		WithArgs(pgxmock.AnyArg(), "nope", 1, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE sessions SET updated_at").
		WithArgs(pgxmock.AnyArg(), "nope").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := st.AppendAttempt(context.Background(), "nope", model.Attempt{Sequence: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetSession(t *testing.T) {
	st, mock := newMockStore(t)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT id, subject, question, created_at, updated_at FROM sessions WHERE id").
		WithArgs("s1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "subject", "question", "created_at", "updated_at"}).
			AddRow("s1", "Acme", "q", now, now))

	payload, err := json.Marshal(model.Attempt{
		Sequence:  1,
		Breakdown: model.ConfidenceBreakdown{FinalScore: 4.2},
		Verdict:   model.VerdictInsufficient,
	})
	require.NoError(t, err)

	mock.ExpectQuery("SELECT payload FROM attempts WHERE session_id").
		WithArgs("s1").
		WillReturnRows(pgxmock.NewRows([]string{"payload"}).AddRow(payload))

	sess, err := st.GetSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", sess.Subject)
	require.Len(t, sess.Attempts, 1)
	assert.InDelta(t, 4.2, sess.Attempts[0].Breakdown.FinalScore, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetSessionNotFound(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, subject, question, created_at, updated_at FROM sessions WHERE id").
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, err := st.GetSession(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListSessionsWithFilter(t *testing.T) {
	st, mock := newMockStore(t)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT id, subject, question, created_at, updated_at FROM sessions WHERE subject").
		WithArgs("Acme", 100).
		WillReturnRows(pgxmock.NewRows([]string{"id", "subject", "question", "created_at", "updated_at"}).
			AddRow("s1", "Acme", "q", now, now))

	sessions, err := st.ListSessions(context.Background(), SessionFilter{Subject: "Acme"})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "s1", sessions[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_DeleteSession(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM attempts WHERE session_id").
		WithArgs("s1").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec("DELETE FROM sessions WHERE id").
		WithArgs("s1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, st.DeleteSession(context.Background(), "s1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_DeleteSessionNotFound(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM attempts WHERE session_id").
		WithArgs("nope").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("DELETE FROM sessions WHERE id").
		WithArgs("nope").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := st.DeleteSession(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Reports(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO reports").
		WithArgs(pgxmock.AnyArg(), "s1", "Acme", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	report := tracker.Report{SessionID: "s1", Subject: "Acme", Worthwhile: true}
	require.NoError(t, st.SaveReport(context.Background(), report))

	payload, err := json.Marshal(report)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT payload FROM reports ORDER BY created_at DESC LIMIT").
		WithArgs(10).
		WillReturnRows(pgxmock.NewRows([]string{"payload"}).AddRow(payload))

	reports, err := st.ListReports(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.True(t, reports[0].Worthwhile)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Migrate(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS sessions").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, st.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
