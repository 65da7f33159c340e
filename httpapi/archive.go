package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/korylprince/streamchat/api"
)

//maxTranscripts bounds the limit parameter of GET /transcripts/
const maxTranscripts = 500

//archiveTurn records a finished turn in the transcript archive, if one is configured
func (s *server) archiveTurn(ctx context.Context, req *api.ChatTurnRequest, t *turn) {
	if s.db == nil {
		return
	}

	tr := &api.Transcript{
		RequestID: requestID(ctx),
		Provider:  s.upstream.Name(),
		Model:     s.upstream.Model(req),
		Prompt:    req.LastUserMessage(),
		Reply:     t.reply.String(),
		Status:    api.TranscriptCompleted,
	}
	if t.err != nil {
		tr.Status = api.TranscriptFailed
		tr.Error = t.err.Error()
		if errors.Is(t.err, context.Canceled) {
			tr.Error = "canceled by client"
		}
	}

	//the archive write outlives a disconnected client
	if err := s.writeTranscript(context.WithoutCancel(ctx), tr); err != nil {
		s.log.WithError(err).WithField("request_id", tr.RequestID).Error("Could not archive transcript")
	}
}

func (s *server) writeTranscript(ctx context.Context, tr *api.Transcript) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Could not begin transaction: %w", err)
	}

	if _, err = api.CreateTranscript(context.WithValue(ctx, api.TransactionKey, tx), tr); err != nil {
		if rErr := tx.Rollback(); rErr != nil {
			return fmt.Errorf("Could not rollback transaction: %v (after %w)", rErr, err)
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("Could not commit transaction: %w", err)
	}
	return nil
}

//GET /transcripts/
func handleReadTranscripts(w http.ResponseWriter, r *http.Request) *handlerResponse {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxTranscripts {
			return handleError(http.StatusBadRequest, fmt.Errorf("Invalid limit: %q", v))
		}
		limit = n
	}

	transcripts, err := api.ReadTranscripts(r.Context(), limit)
	if resp := checkAPIError(err); resp != nil {
		return resp
	}
	if transcripts == nil {
		transcripts = []*api.Transcript{}
	}

	return &handlerResponse{Code: http.StatusOK, Body: &ReadTranscriptsResponse{Transcripts: transcripts}}
}
