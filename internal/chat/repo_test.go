package chat_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowkit/internal/chat"
	"flowkit/internal/schema"
)

func TestPostgresRepo_Save(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := chat.NewPostgresRepo(db)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("Success", func(t *testing.T) {
		msg := &schema.Message{
			ID: "m1", SessionID: "s1", Sender: "Machine", SenderName: "AI", Text: "hello",
			Data: map[string]any{"k": "v"}, CreatedAt: now,
		}
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO messages")).
			WithArgs("m1", "s1", "Machine", "AI", "hello", []byte(`{"k":"v"}`), now).
			WillReturnResult(sqlmock.NewResult(1, 1))

		require.NoError(t, repo.Save(context.Background(), msg))
	})

	t.Run("NilData", func(t *testing.T) {
		msg := &schema.Message{ID: "m2", SessionID: "s1", CreatedAt: now}
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO messages")).
			WithArgs("m2", "s1", "", "", "", []byte(`{}`), now).
			WillReturnResult(sqlmock.NewResult(1, 1))

		require.NoError(t, repo.Save(context.Background(), msg))
	})

	t.Run("Error", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO messages")).WillReturnError(sqlmock.ErrCancelled)
		assert.Error(t, repo.Save(context.Background(), &schema.Message{ID: "m3"}))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_ListBySession(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := chat.NewPostgresRepo(db)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "session_id", "sender", "sender_name", "text", "data", "created_at"}).
		AddRow("m1", "s1", "User", "User", "hi", []byte(`{}`), now).
		AddRow("m2", "s1", "Machine", "AI", "hello", []byte(`{"source":"kb"}`), now.Add(time.Second))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, session_id, sender, sender_name, text, data, created_at FROM messages WHERE session_id = $1")).
		WithArgs("s1").
		WillReturnRows(rows)

	msgs, err := repo.ListBySession(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi", msgs[0].Text)
	assert.Equal(t, "kb", msgs[1].Data["source"])
}

func TestPostgresRepo_DeleteBySession(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM messages WHERE session_id = $1")).
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, chat.NewPostgresRepo(db).DeleteBySession(context.Background(), "s1"))
}

func TestPostgresRepo_Counts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM messages")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(DISTINCT session_id) FROM messages")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	repo := chat.NewPostgresRepo(db)
	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	s, err := repo.CountSessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, s)
	assert.NoError(t, mock.ExpectationsWereMet())
}
