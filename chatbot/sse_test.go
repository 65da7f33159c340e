package chatbot

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/korylprince/streamchat/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sseEvent struct {
	event string
	data  string
}

func readAllSSE(t *testing.T, r io.Reader) []sseEvent {
	t.Helper()
	var events []sseEvent
	err := readSSE(context.Background(), r, func(event string, data []byte) error {
		events = append(events, sseEvent{event, string(data)})
		return nil
	})
	require.NoError(t, err)
	return events
}

func TestReadSSE(t *testing.T) {
	body := ": comment\nevent: message_start\ndata: {\"a\":1}\n\ndata:{\"b\":2}\r\n\ndata: \n\nid: 7\ndata: {\"c\":3}"
	want := []sseEvent{
		{"message_start", `{"a":1}`},
		{"", `{"b":2}`},
		{"", `{"c":3}`},
	}

	assert.Equal(t, want, readAllSSE(t, strings.NewReader(body)))
	// one byte per read
	assert.Equal(t, want, readAllSSE(t, iotest.OneByteReader(strings.NewReader(body))))
}

func TestReadSSEStop(t *testing.T) {
	var n int
	err := readSSE(context.Background(), strings.NewReader("data: 1\n\ndata: 2\n\ndata: 3\n\n"), func(string, []byte) error {
		n++
		if n == 2 {
			return errStopStream
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestReadSSEReadError(t *testing.T) {
	r := io.MultiReader(strings.NewReader("data: 1\n"), iotest.ErrReader(errors.New("connection reset")))
	err := readSSE(context.Background(), r, func(string, []byte) error { return nil })
	assert.EqualError(t, err, "connection reset")
}

func TestPostJSONStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "secret", r.Header.Get("X-Test-Key"))
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := postJSON(context.Background(), srv.Client(), "Test", srv.URL, http.Header{"X-Test-Key": {"secret"}}, map[string]string{})

	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, api.ErrorTypeUpstream, apiErr.Type)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Contains(t, apiErr.Error(), "quota exceeded")
}

func TestPostJSONUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := postJSON(context.Background(), http.DefaultClient, "Test", url, nil, map[string]string{})

	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, api.ErrorTypeUpstream, apiErr.Type)
	assert.Equal(t, 0, apiErr.Status)
}
