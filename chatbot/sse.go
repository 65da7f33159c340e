package chatbot

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/korylprince/streamchat/api"
)

// maxLineBytes bounds a single upstream SSE line
const maxLineBytes = 4 * 1024 * 1024

// errStopStream is returned by an event callback to end reading without error
var errStopStream = errors.New("stop stream")

// readSSE reads an upstream Server-Sent-Events body and calls fn with the current event name
// and the payload of every complete "data:" line. The body is not aligned to line boundaries;
// partial lines are buffered until their terminator arrives.
func readSSE(ctx context.Context, body io.Reader, fn func(event string, data []byte) error) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var event string
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Bytes()
		switch {
		case len(line) == 0:
			// blank line ends the event
			event = ""
			continue
		case bytes.HasPrefix(line, []byte("event:")):
			event = string(bytes.TrimSpace(line[len("event:"):]))
			continue
		case !bytes.HasPrefix(line, []byte("data:")):
			continue
		}

		data := bytes.TrimSpace(line[len("data:"):])
		if len(data) == 0 {
			continue
		}

		if err := fn(event, data); err != nil {
			if errors.Is(err, errStopStream) {
				return nil
			}
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

// maxErrorBody bounds how much of a failed upstream response is kept in the error
const maxErrorBody = 4096

// postJSON sends body to url and returns the response if the upstream accepted the request.
// Transport failures and non-2xx statuses are returned as *api.Error values of type ErrorTypeUpstream.
func postJSON(ctx context.Context, client *http.Client, provider, url string, header http.Header, body interface{}) (*http.Response, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, api.UpstreamError(fmt.Sprintf("Could not reach %s API", provider), 0, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, api.UpstreamError(
			fmt.Sprintf("%s API error", provider),
			resp.StatusCode,
			errors.New(strings.TrimSpace(string(respBody))),
		)
	}

	return resp, nil
}
