package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/korylprince/streamchat/api"
	"golang.org/x/sync/errgroup"
)

//maxRequestBytes bounds the size of a chat request body
const maxRequestBytes = 4 << 20

//turn is the result of streaming one reply
type turn struct {
	reply   strings.Builder
	deltas  int
	err     error
	started time.Time
}

func (t *turn) outcome(ctx context.Context) string {
	switch {
	case t.err == nil:
		return outcomeCompleted
	case ctx.Err() != nil:
		return outcomeCanceled
	default:
		return outcomeFailed
	}
}

//POST /chat
func handleChat(s *server) returnHandler {
	return func(w http.ResponseWriter, r *http.Request) *handlerResponse {
		provider := s.upstream.Name()

		req := new(api.ChatTurnRequest)
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(req); err != nil {
			s.metrics.rejected(provider)
			return handleError(http.StatusBadRequest, fmt.Errorf("Could not decode request: %v", err))
		}

		if err := req.Validate(); err != nil {
			s.metrics.rejected(provider)
			return checkAPIError(err)
		}

		enc, err := NewEncoder(w)
		if err != nil {
			return handleError(http.StatusInternalServerError, err)
		}

		s.metrics.activeStreams.Inc()
		t := s.stream(r.Context(), enc, req)
		s.metrics.activeStreams.Dec()

		s.metrics.finished(provider, t.outcome(r.Context()), t.started)
		s.metrics.deltas.WithLabelValues(provider).Add(float64(t.deltas))
		s.archiveTurn(r.Context(), req, t)

		return &handlerResponse{Code: http.StatusOK, Err: t.err, Streamed: true}
	}
}

//stream relays the upstream reply to enc, sending keepalive comments while it waits
func (s *server) stream(ctx context.Context, enc *Encoder, req *api.ChatTurnRequest) *turn {
	t := &turn{started: time.Now()}

	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	g.Go(func() error {
		defer close(done)
		t.err = s.relay(gctx, enc, req, t)
		return nil
	})

	if s.keepAlive > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(s.keepAlive)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return nil
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					if err := enc.WriteKeepAlive(); err != nil {
						return nil
					}
				}
			}
		})
	}

	g.Wait()
	return t
}

//relay writes every chunk of the upstream reply to enc and ends the stream. Failures after the
//headers are committed are reported in-stream.
func (s *server) relay(ctx context.Context, enc *Encoder, req *api.ChatTurnRequest, t *turn) error {
	ch, err := s.upstream.ChatStream(ctx, req)
	if err != nil {
		if ctx.Err() == nil {
			enc.Fail(err.Error())
		}
		return err
	}

	for chunk := range ch {
		var werr error
		switch {
		case chunk.Err != nil:
			enc.Fail(chunk.Err.Error())
			return chunk.Err
		case chunk.Sources != nil:
			werr = enc.WriteSources(chunk.Sources)
		case chunk.RelatedQuestions != nil:
			werr = enc.WriteRelatedQuestions(chunk.RelatedQuestions)
		default:
			t.reply.WriteString(chunk.Content)
			t.deltas++
			werr = enc.WriteDelta(chunk.Content)
		}
		if werr != nil {
			return fmt.Errorf("client write failed: %w", werr)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return enc.WriteDone()
}
