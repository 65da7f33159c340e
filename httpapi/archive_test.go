package httpapi

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/korylprince/streamchat/chatbot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type anyTime struct{}

func (anyTime) Match(v driver.Value) bool {
	_, ok := v.(time.Time)
	return ok
}

func TestArchiveCompletedTurn(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transcript").
		WithArgs(sqlmock.AnyArg(), "mock", "mock", "hello",
			"Hello! I'm a mock assistant. How can I help you today?", "completed", "", anyTime{}).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	s := newTestServer(t, &Config{DB: db})
	rec := s.chat(`{"messages":[{"role":"user","content":"hello"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveFailedTurn(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transcript").
		WithArgs(sqlmock.AnyArg(), "fake", "fake-1", "hi", "Par", "failed", "connection reset", anyTime{}).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	s := newTestServer(t, &Config{DB: db, Upstream: &fakeUpstream{chunks: []chatbot.StreamChunk{
		{Content: "Par"},
		{Err: errors.New("connection reset")},
	}}})
	rec := s.chat(`{"messages":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveWriteFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transcript").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	s := newTestServer(t, &Config{DB: db})
	rec := s.chat(`{"messages":[{"role":"user","content":"hello"}]}`)

	//the client still receives the full stream
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, countFrames(rec.Body.String(), "data: [DONE]"))
	assert.NoError(t, mock.ExpectationsWereMet())

	var logged bool
	for _, e := range s.logs.AllEntries() {
		if e.Message == "Could not archive transcript" {
			logged = true
		}
	}
	assert.True(t, logged)
}

func TestReadTranscripts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	date := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM transcript ORDER BY id DESC LIMIT").
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "request_id", "provider", "model", "prompt", "reply", "status", "error", "date"}).
			AddRow(9, "req-9", "gemini", "gemini-2.0-flash", "hi", "Hello", "completed", "", date).
			AddRow(8, "req-8", "anthropic", "claude", "hey", "", "failed", "canceled by client", date))
	mock.ExpectCommit()

	s := newTestServer(t, &Config{DB: db})
	rec := s.do(http.MethodGet, "/api/transcripts/?limit=2", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := new(ReadTranscriptsResponse)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), resp))
	require.Len(t, resp.Transcripts, 2)
	assert.EqualValues(t, 9, resp.Transcripts[0].ID)
	assert.Equal(t, "canceled by client", resp.Transcripts[1].Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadTranscriptsInvalidLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := newTestServer(t, &Config{DB: db})
	for _, limit := range []string{"0", "501", "ten"} {
		mock.ExpectBegin()
		mock.ExpectRollback()

		rec := s.do(http.MethodGet, "/api/transcripts/?limit="+limit, "", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, limit)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadTranscriptsDisabled(t *testing.T) {
	s := newTestServer(t, &Config{})
	rec := s.do(http.MethodGet, "/api/transcripts/", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
