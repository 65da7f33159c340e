package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/korylprince/streamchat/api"
)

// maxErrorBody bounds how much of an error response is read
const maxErrorBody = 4096

// Client sends chat turns to a streamchat server
type Client struct {
	// BaseURL is the server URL including the API prefix, e.g. http://localhost:3000/api
	BaseURL    string
	HTTPClient *http.Client
	Retry      RetryOptions
}

// New returns a Client for baseURL
func New(baseURL string) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTPClient: &http.Client{}}
}

// StreamTurn posts req and consumes the reply stream into cb. Opening the stream is retried
// for transient failures; an open stream is never retried. Failures are reported with OnError
// unless ctx was canceled, and OnDone is always called once. StreamTurn blocks until the
// stream ends and returns the error that ended it, if any.
func (c *Client) StreamTurn(ctx context.Context, req *api.ChatTurnRequest, cb Callbacks) error {
	body, err := json.Marshal(req)
	if err != nil {
		return c.fail(ctx, cb, fmt.Errorf("failed to marshal request: %w", err))
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := WithRetry(ctx, func() (*http.Response, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		r.Header.Set("Content-Type", "application/json")
		r.Header.Set("Accept", "text/event-stream")

		resp, err := httpClient.Do(r)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			defer resp.Body.Close()
			return nil, responseError(resp)
		}
		return resp, nil
	}, c.Retry)
	if err != nil {
		return c.fail(ctx, cb, err)
	}

	return Consume(ctx, resp.Body, cb)
}

func (c *Client) fail(ctx context.Context, cb Callbacks, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	} else if cb.OnError != nil {
		cb.OnError(err.Error())
	}
	if cb.OnDone != nil {
		cb.OnDone()
	}
	return err
}

// responseError builds an *api.Error from a non-200 response. JSON error bodies are reduced to
// their message and any field errors.
func responseError(resp *http.Response) error {
	buf, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(buf))

	var body struct {
		Error  string              `json:"error"`
		Fields map[string][]string `json:"fields"`
	}
	if json.Unmarshal(buf, &body) == nil && body.Error != "" {
		msg = body.Error
		if len(body.Fields) > 0 {
			msg += ": " + fieldErrors(body.Fields)
		}
	}

	return &api.Error{
		Description: "API error",
		Type:        api.ErrorTypeServer,
		Status:      resp.StatusCode,
		Err:         errors.New(msg),
	}
}

// fieldErrors formats validation messages as "field msg; field msg" ordered by field
func fieldErrors(fields map[string][]string) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var parts []string
	for _, name := range names {
		for _, m := range fields[name] {
			parts = append(parts, name+" "+m)
		}
	}
	return strings.Join(parts, "; ")
}
