package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/korylprince/streamchat/api"
)

// DoneMarker is the payload of the terminal frame
const DoneMarker = "[DONE]"

// Callbacks receive decoded stream events. Nil callbacks are skipped.
type Callbacks struct {
	OnChunk            func(text string)
	OnSources          func(sources []api.SourceRef)
	OnRelatedQuestions func(questions []api.RelatedQuestion)
	OnError            func(msg string)
	OnDone             func()
}

// Decoder decodes a chat event stream written to it in arbitrary pieces. OnDone is called
// exactly once, on the terminal frame or on Close, whichever comes first.
type Decoder struct {
	cb   Callbacks
	buf  []byte
	done bool
}

// NewDecoder returns a Decoder that dispatches to cb
func NewDecoder(cb Callbacks) *Decoder {
	return &Decoder{cb: cb}
}

// Write buffers p and dispatches every complete line. It never returns an error; input after
// the terminal frame is discarded.
func (d *Decoder) Write(p []byte) (int, error) {
	if d.done {
		return len(p), nil
	}

	d.buf = append(d.buf, p...)
	for !d.done {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		line := d.buf[:i]
		d.buf = d.buf[i+1:]
		d.line(line)
	}

	if d.done {
		d.buf = nil
	} else if len(d.buf) == 0 {
		// reuse the backing array
		d.buf = d.buf[:0]
	}
	return len(p), nil
}

// Close processes a trailing unterminated line and completes the stream
func (d *Decoder) Close() error {
	if !d.done && len(d.buf) > 0 {
		line := d.buf
		d.buf = nil
		d.line(line)
	}
	d.finish()
	return nil
}

// Done reports whether the stream has completed
func (d *Decoder) Done() bool {
	return d.done
}

func (d *Decoder) finish() {
	if d.done {
		return
	}
	d.done = true
	if d.cb.OnDone != nil {
		d.cb.OnDone()
	}
}

type eventPayload struct {
	Sources          *[]api.SourceRef       `json:"sources"`
	RelatedQuestions *[]api.RelatedQuestion `json:"relatedQuestions"`
	Error            *string                `json:"error"`
}

func (d *Decoder) line(line []byte) {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	if !bytes.HasPrefix(line, []byte("data:")) {
		return
	}

	payload := bytes.TrimSpace(line[len("data:"):])
	if len(payload) == 0 {
		return
	}
	if string(payload) == DoneMarker {
		d.finish()
		return
	}

	switch payload[0] {
	case '"':
		var text string
		if err := json.Unmarshal(payload, &text); err != nil {
			return
		}
		if d.cb.OnChunk != nil {
			d.cb.OnChunk(text)
		}
	case '{':
		var ev eventPayload
		if err := json.Unmarshal(payload, &ev); err != nil {
			return
		}
		switch {
		case ev.Error != nil:
			if d.cb.OnError != nil {
				d.cb.OnError(*ev.Error)
			}
		case ev.Sources != nil:
			if d.cb.OnSources != nil {
				d.cb.OnSources(*ev.Sources)
			}
		case ev.RelatedQuestions != nil:
			if d.cb.OnRelatedQuestions != nil {
				d.cb.OnRelatedQuestions(*ev.RelatedQuestions)
			}
		}
	}
}

// readBufSize is the size of each read from the response body
const readBufSize = 4096

// Consume reads a chat event stream from body until the terminal frame, end of stream, a read
// failure, or cancellation of ctx. body is closed when ctx is canceled to unblock a pending read.
// Read failures are reported with OnError; cancellation is not. OnDone is always called once.
// The returned error is nil on completion, ctx.Err() on cancellation, or the read error.
func Consume(ctx context.Context, body io.ReadCloser, cb Callbacks) error {
	defer body.Close()
	stop := context.AfterFunc(ctx, func() { body.Close() })
	defer stop()

	dec := NewDecoder(cb)
	buf := make([]byte, readBufSize)
	for !dec.Done() {
		n, err := body.Read(buf)
		if ctxErr := ctx.Err(); ctxErr != nil {
			dec.finish()
			return ctxErr
		}
		if n > 0 {
			dec.Write(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if cb.OnError != nil && !dec.Done() {
				cb.OnError(err.Error())
			}
			dec.finish()
			return err
		}
	}

	return dec.Close()
}
