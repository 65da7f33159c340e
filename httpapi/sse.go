package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/korylprince/streamchat/api"
)

//ErrStreamClosed is returned by Encoder writes after the terminal frame
var ErrStreamClosed = errors.New("stream closed")

//DoneMarker is the payload of the terminal frame
const DoneMarker = "[DONE]"

//SetSSEHeaders sets the response headers for an event stream
func SetSSEHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

//Encoder writes chat events to an HTTP response as "data: <payload>\n\n" frames, flushing each
//frame. It is safe for concurrent use.
type Encoder struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	closed  bool
}

//NewEncoder commits the event stream headers with a 200 status and returns an Encoder for w.
//It returns an error, without writing anything, if w can not be flushed.
func NewEncoder(w http.ResponseWriter) (*Encoder, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support flushing")
	}

	SetSSEHeaders(w.Header())
	w.WriteHeader(http.StatusOK)
	f.Flush()

	return &Encoder{w: w, flusher: f}, nil
}

//write writes raw frames. e.mu must be held.
func (e *Encoder) write(frames ...string) error {
	if e.closed {
		return ErrStreamClosed
	}
	for _, f := range frames {
		if _, err := io.WriteString(e.w, f); err != nil {
			return fmt.Errorf("could not write frame: %w", err)
		}
	}
	e.flusher.Flush()
	return nil
}

func dataFrame(payload []byte) string {
	return "data: " + string(payload) + "\n\n"
}

func (e *Encoder) writeJSON(v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("could not encode frame: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.write(dataFrame(payload))
}

//WriteDelta writes a text delta as a JSON string frame
func (e *Encoder) WriteDelta(text string) error {
	return e.writeJSON(text)
}

//WriteSources writes a {"sources":[...]} frame
func (e *Encoder) WriteSources(sources []api.SourceRef) error {
	return e.writeJSON(struct {
		Sources []api.SourceRef `json:"sources"`
	}{sources})
}

//WriteRelatedQuestions writes a {"relatedQuestions":[...]} frame
func (e *Encoder) WriteRelatedQuestions(questions []api.RelatedQuestion) error {
	return e.writeJSON(struct {
		RelatedQuestions []api.RelatedQuestion `json:"relatedQuestions"`
	}{questions})
}

type errorFrame struct {
	Error string `json:"error"`
}

//WriteError writes an {"error":msg} frame. The stream stays open.
func (e *Encoder) WriteError(msg string) error {
	return e.writeJSON(errorFrame{msg})
}

//WriteDone writes the terminal frame. Every later write returns ErrStreamClosed.
func (e *Encoder) WriteDone() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.write(dataFrame([]byte(DoneMarker)))
	e.closed = true
	return err
}

//Fail writes an error frame immediately followed by the terminal frame
func (e *Encoder) Fail(msg string) error {
	payload, err := json.Marshal(errorFrame{msg})
	if err != nil {
		return fmt.Errorf("could not encode frame: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	err = e.write(dataFrame(payload), dataFrame([]byte(DoneMarker)))
	e.closed = true
	return err
}

//WriteKeepAlive writes a comment frame that consumers ignore
func (e *Encoder) WriteKeepAlive() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.write(": ping\n\n")
}

//Closed reports whether the terminal frame has been written
func (e *Encoder) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}
