package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/korylprince/streamchat/api"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

//handlerResponse is the result of a handler. Streamed responses have already been written.
type handlerResponse struct {
	Code     int
	Body     interface{}
	Err      error
	Streamed bool
}

type returnHandler func(http.ResponseWriter, *http.Request) *handlerResponse

func logMiddleware(next returnHandler, log logrus.FieldLogger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		start := time.Now()
		resp := next(w, r.WithContext(context.WithValue(r.Context(), RequestIDKey, id)))

		entry := log.WithFields(logrus.Fields{
			"request_id": id,
			"method":     r.Method,
			"path":       r.URL.Path,
			"code":       resp.Code,
			"status":     http.StatusText(resp.Code),
			"duration":   time.Since(start).String(),
		})
		if r.URL.RawQuery != "" {
			entry = entry.WithField("query", r.URL.RawQuery)
		}
		if resp.Err != nil {
			entry = entry.WithError(resp.Err)
		}

		switch {
		case resp.Code >= 500:
			entry.Error("Request failed")
		case resp.Code >= 400 || resp.Err != nil:
			entry.Warn("Request rejected")
		default:
			entry.Info("Request served")
		}
	})
}

//jsonMiddleware requires a JSON body for requests other than GET and writes the response as JSON
func jsonMiddleware(next returnHandler) returnHandler {
	return writeJSON(func(w http.ResponseWriter, r *http.Request) *handlerResponse {
		if r.Method != http.MethodGet {
			mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil {
				return handleError(http.StatusBadRequest, errors.New("Could not parse Content-Type"))
			}
			if mediaType != "application/json" {
				return handleError(http.StatusBadRequest, errors.New("Content-Type not application/json"))
			}
		}
		return next(w, r)
	})
}

//writeJSON writes the handler's response Body as JSON unless the handler streamed its own response
func writeJSON(next returnHandler) returnHandler {
	return func(w http.ResponseWriter, r *http.Request) *handlerResponse {
		w.Header().Set("Content-Type", "application/json")
		resp := next(w, r)
		if resp.Streamed {
			return resp
		}

		w.WriteHeader(resp.Code)
		if err := json.NewEncoder(w).Encode(resp.Body); err != nil {
			return handleError(http.StatusInternalServerError, fmt.Errorf("Could not encode json: %v", err))
		}
		return resp
	}
}

func txMiddleware(next returnHandler, db *sql.DB) returnHandler {
	return func(w http.ResponseWriter, r *http.Request) *handlerResponse {
		tx, err := db.BeginTx(r.Context(), nil)
		if err != nil {
			return handleError(http.StatusInternalServerError, fmt.Errorf("Could not begin transaction: %v", err))
		}

		ctx := context.WithValue(r.Context(), api.TransactionKey, tx)
		resp := next(w, r.WithContext(ctx))

		if resp.Code >= 400 {
			if rErr := tx.Rollback(); rErr != nil && rErr != sql.ErrTxDone {
				return handleError(http.StatusInternalServerError, fmt.Errorf("Could not rollback transaction: %v", rErr))
			}
			return resp
		}

		if err = tx.Commit(); err != nil {
			if rErr := tx.Rollback(); rErr != nil && rErr != sql.ErrTxDone {
				return handleError(http.StatusInternalServerError, fmt.Errorf("Could not rollback transaction: %v", rErr))
			}
			return handleError(http.StatusInternalServerError, fmt.Errorf("Could not commit transaction: %v", err))
		}

		return resp
	}
}

//rateLimitMiddleware rejects requests with 429 Too Many Requests when limiter has no tokens
func rateLimitMiddleware(next returnHandler, limiter *rate.Limiter) returnHandler {
	if limiter == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) *handlerResponse {
		if !limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			return handleError(http.StatusTooManyRequests, errors.New("Rate limit exceeded"))
		}
		return next(w, r)
	}
}
