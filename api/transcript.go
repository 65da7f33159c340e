package api

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

//TranscriptStatus is the final state of an archived turn
type TranscriptStatus string

//TranscriptStatuses
const (
	TranscriptCompleted TranscriptStatus = "completed"
	TranscriptFailed    TranscriptStatus = "failed"
)

//Transcript is a finished chat turn as recorded in the archive. It expects a table like:
//
//	CREATE TABLE transcript (
//		id BIGINT AUTO_INCREMENT PRIMARY KEY,
//		request_id VARCHAR(36) NOT NULL,
//		provider VARCHAR(32) NOT NULL,
//		model VARCHAR(100) NOT NULL,
//		prompt TEXT NOT NULL,
//		reply MEDIUMTEXT NOT NULL,
//		status VARCHAR(16) NOT NULL,
//		error TEXT NOT NULL,
//		date DATETIME NOT NULL
//	);
type Transcript struct {
	ID        int64            `json:"id"`
	RequestID string           `json:"request_id"`
	Provider  string           `json:"provider"`
	Model     string           `json:"model"`
	Prompt    string           `json:"prompt"`
	Reply     string           `json:"reply"`
	Status    TranscriptStatus `json:"status"`
	Error     string           `json:"error,omitempty"`
	Date      time.Time        `json:"date"`
}

//Validate validates the given Transcript
func (t *Transcript) Validate() error {
	if t.RequestID == "" {
		return errors.New("request_id must not be empty")
	}
	if t.Status != TranscriptCompleted && t.Status != TranscriptFailed {
		return errors.New("status must be completed or failed")
	}
	return nil
}

//CreateTranscript inserts the given Transcript (ID is ignored and created) and returns its ID, or an error if one occurred
func CreateTranscript(ctx context.Context, t *Transcript) (id int64, err error) {
	tx := ctx.Value(TransactionKey).(*sql.Tx)

	if err = t.Validate(); err != nil {
		return 0, &Error{Description: "Could not validate Transcript", Type: ErrorTypeUser, Err: err}
	}

	if t.Date.IsZero() {
		t.Date = time.Now()
	}

	res, err := tx.ExecContext(ctx, "INSERT INTO transcript(request_id, provider, model, prompt, reply, status, error, date) VALUES(?, ?, ?, ?, ?, ?, ?, ?);",
		t.RequestID,
		t.Provider,
		t.Model,
		t.Prompt,
		t.Reply,
		string(t.Status),
		t.Error,
		t.Date,
	)
	if err != nil {
		return 0, &Error{Description: "Could not insert Transcript", Type: ErrorTypeServer, Err: err}
	}

	id, err = res.LastInsertId()
	if err != nil {
		return 0, &Error{Description: "Could not fetch Transcript id", Type: ErrorTypeServer, Err: err}
	}

	return id, nil
}

//ReadTranscripts returns the most recent Transcripts (up to limit), newest first, or an error if one occurred
func ReadTranscripts(ctx context.Context, limit int) ([]*Transcript, error) {
	tx := ctx.Value(TransactionKey).(*sql.Tx)

	if limit <= 0 {
		limit = 50
	}

	rows, err := tx.QueryContext(ctx, "SELECT id, request_id, provider, model, prompt, reply, status, error, date FROM transcript ORDER BY id DESC LIMIT ?;", limit)
	if err != nil {
		return nil, &Error{Description: "Could not query Transcripts", Type: ErrorTypeServer, Err: err}
	}
	defer rows.Close()

	var transcripts []*Transcript
	for rows.Next() {
		t := new(Transcript)
		var status string
		if err = rows.Scan(&t.ID, &t.RequestID, &t.Provider, &t.Model, &t.Prompt, &t.Reply, &status, &t.Error, &t.Date); err != nil {
			return nil, &Error{Description: "Could not scan Transcript row", Type: ErrorTypeServer, Err: err}
		}
		t.Status = TranscriptStatus(status)
		transcripts = append(transcripts, t)
	}

	if err = rows.Err(); err != nil {
		return nil, &Error{Description: "Could not scan Transcript rows", Type: ErrorTypeServer, Err: err}
	}

	return transcripts, nil
}
