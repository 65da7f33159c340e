package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/korylprince/streamchat/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRetry = RetryOptions{BaseDelay: time.Millisecond}

func TestClientStreamTurn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req api.ChatTurnRequest
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			assert.Equal(t, "gpt", req.Model)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: \"Hel\"\n\n")
		w.(http.Flusher).Flush()
		fmt.Fprint(w, "data: \"lo\"\n\ndata: [DONE]\n\n")
	}))
	defer srv.Close()

	c := New(srv.URL + "/api/")
	c.Retry = testRetry

	var r recorder
	err := c.StreamTurn(context.Background(), &api.ChatTurnRequest{
		Messages: []api.ChatMessage{{Role: api.RoleUser, Content: "hi"}},
		Model:    "gpt",
	}, r.callbacks())
	require.NoError(t, err)
	assert.Equal(t, []string{"chunk:Hel", "chunk:lo", "done"}, r.calls)
}

func TestClientValidationError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"code":400,"error":"Bad Request","fields":{"messages":["is required"]}}`)
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.Retry = testRetry

	var r recorder
	err := c.StreamTurn(context.Background(), &api.ChatTurnRequest{}, r.callbacks())
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, []string{"error:" + err.Error(), "done"}, r.calls)
	assert.Contains(t, err.Error(), "(status 400)")
	assert.Contains(t, err.Error(), "Bad Request: messages is required")
}

func TestClientRetriesServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "data: \"ok\"\n\ndata: [DONE]\n\n")
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.Retry = testRetry

	var r recorder
	require.NoError(t, c.StreamTurn(context.Background(), &api.ChatTurnRequest{}, r.callbacks()))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []string{"chunk:ok", "done"}, r.calls)
}

func TestClientCanceledBeforeOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent")
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(srv.URL)
	var r recorder
	err := c.StreamTurn(ctx, &api.ChatTurnRequest{}, r.callbacks())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"done"}, r.calls)
}

func TestClientControllerEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: \"Hi\"\n\ndata: {\"relatedQuestions\":[{\"text\":\"Next?\"}]}\n\ndata: [DONE]\n\n")
	}))
	defer srv.Close()

	store := NewMemoryStore(1 << 20)
	conv := store.Create()
	ctrl := NewController(store, conv.ID, New(srv.URL), Settings{})

	require.NoError(t, ctrl.SendTurn(context.Background(), "hello"))
	assert.False(t, ctrl.IsStreaming())

	msgs, err := store.Messages(conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hi", msgs[1].Content)
	assert.Equal(t, []api.RelatedQuestion{{Text: "Next?"}}, msgs[1].RelatedQuestions)
}

func TestFieldErrors(t *testing.T) {
	assert.Equal(t, "messages must contain at least 1 items; systemPrompt must be at most 10000 characters; systemPrompt is odd",
		fieldErrors(map[string][]string{
			"systemPrompt": {"must be at most 10000 characters", "is odd"},
			"messages":     {"must contain at least 1 items"},
		}))
}
