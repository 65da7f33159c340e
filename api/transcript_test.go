package api

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func txContext(t *testing.T) (context.Context, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectBegin()
	tx, err := db.Begin()
	require.NoError(t, err)

	ctx := context.WithValue(context.Background(), TransactionKey, tx)
	return ctx, mock, func() {
		db.Close()
	}
}

func TestCreateTranscript(t *testing.T) {
	ctx, mock, done := txContext(t)
	defer done()

	date := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectExec("INSERT INTO transcript").
		WithArgs("req-1", "gemini", "gemini-2.0-flash", "hello", "Hi there", "completed", "", date).
		WillReturnResult(sqlmock.NewResult(42, 1))

	id, err := CreateTranscript(ctx, &Transcript{
		RequestID: "req-1",
		Provider:  "gemini",
		Model:     "gemini-2.0-flash",
		Prompt:    "hello",
		Reply:     "Hi there",
		Status:    TranscriptCompleted,
		Date:      date,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 42, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTranscriptValidation(t *testing.T) {
	ctx, mock, done := txContext(t)
	defer done()

	_, err := CreateTranscript(ctx, &Transcript{Status: TranscriptCompleted})
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, ErrorTypeUser, apiErr.Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTranscriptInsertError(t *testing.T) {
	ctx, mock, done := txContext(t)
	defer done()

	mock.ExpectExec("INSERT INTO transcript").WillReturnError(sql.ErrConnDone)

	_, err := CreateTranscript(ctx, &Transcript{RequestID: "req-1", Status: TranscriptFailed, Error: "boom"})
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, ErrorTypeServer, apiErr.Type)
	assert.True(t, errors.Is(err, sql.ErrConnDone))
}

func TestReadTranscripts(t *testing.T) {
	ctx, mock, done := txContext(t)
	defer done()

	date := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "request_id", "provider", "model", "prompt", "reply", "status", "error", "date"}).
		AddRow(2, "req-2", "mock", "mock", "hi", "Hello!", "completed", "", date).
		AddRow(1, "req-1", "gemini", "gemini-2.0-flash", "x", "", "failed", "Gemini API error", date)
	mock.ExpectQuery("SELECT (.+) FROM transcript").WithArgs(10).WillReturnRows(rows)

	transcripts, err := ReadTranscripts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, transcripts, 2)
	assert.Equal(t, "req-2", transcripts[0].RequestID)
	assert.Equal(t, TranscriptFailed, transcripts[1].Status)
	assert.Equal(t, "Gemini API error", transcripts[1].Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}
