package chatbot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/korylprince/streamchat/api"
	"github.com/sirupsen/logrus"
)

// Anthropic defaults
const (
	DefaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	DefaultAnthropicModel   = "claude-sonnet-4-20250514"
	anthropicAPIVersion     = "2023-06-01"
	anthropicMaxTokens      = 4096
)

// Anthropic stream event types
const (
	anthropicEventDelta = "content_block_delta"
	anthropicEventStop  = "message_stop"
	anthropicEventError = "error"
)

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string                   `json:"model"`
	MaxTokens int                      `json:"max_tokens"`
	System    string                   `json:"system,omitempty"`
	Messages  []anthropicMessage       `json:"messages"`
	Tools     []map[string]interface{} `json:"tools,omitempty"`
	Stream    bool                     `json:"stream"`
}

type anthropicEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type     string `json:"type"`
		Text     string `json:"text"`
		Citation *struct {
			URL       string `json:"url"`
			Title     string `json:"title"`
			CitedText string `json:"cited_text"`
		} `json:"citation"`
	} `json:"delta"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// AnthropicClient streams replies from the Anthropic Messages API
type AnthropicClient struct {
	apiKey       string
	model        string
	systemPrompt string
	baseURL      string
	httpClient   *http.Client
	log          logrus.FieldLogger
}

// NewAnthropicClient returns an AnthropicClient for cfg
func NewAnthropicClient(cfg Config) *AnthropicClient {
	c := &AnthropicClient{
		apiKey:       cfg.APIKey,
		model:        pick(cfg.Model, DefaultAnthropicModel),
		systemPrompt: cfg.SystemPrompt,
		baseURL:      strings.TrimRight(pick(cfg.BaseURL, DefaultAnthropicBaseURL), "/"),
		httpClient:   cfg.HTTPClient,
		log:          cfg.Logger,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	return c
}

// Name implements Upstream
func (c *AnthropicClient) Name() string {
	return ProviderAnthropic
}

// Model implements Upstream
func (c *AnthropicClient) Model(req *api.ChatTurnRequest) string {
	return pick(req.Model, c.model)
}

func (c *AnthropicClient) request(req *api.ChatTurnRequest) *anthropicRequest {
	body := &anthropicRequest{
		Model:     c.Model(req),
		MaxTokens: anthropicMaxTokens,
		System:    SystemPrompt(req.SystemPrompt, c.systemPrompt),
		Stream:    true,
	}
	for _, m := range alternatingTurns(req.Messages) {
		body.Messages = append(body.Messages, anthropicMessage{Role: string(m.Role), Content: m.Content})
	}
	if req.Tools {
		body.Tools = []map[string]interface{}{{
			"type":     "web_search_20250305",
			"name":     "web_search",
			"max_uses": 5,
		}}
	}
	return body
}

// ChatStream implements Upstream
func (c *AnthropicClient) ChatStream(ctx context.Context, req *api.ChatTurnRequest) (<-chan StreamChunk, error) {
	body := c.request(req)

	c.log.WithFields(logrus.Fields{"provider": ProviderAnthropic, "model": body.Model, "messages": len(body.Messages)}).Debug("Calling upstream")

	header := http.Header{}
	header.Set("x-api-key", c.apiKey)
	header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := postJSON(ctx, c.httpClient, "Anthropic", c.baseURL+"/messages", header, body)
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamChunk, 100)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		var sources sourceSet
		err := readSSE(ctx, resp.Body, func(event string, data []byte) error {
			var ev anthropicEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				c.log.WithError(err).Debug("Skipping malformed Anthropic event")
				return nil
			}
			if ev.Type == "" {
				ev.Type = event
			}

			switch ev.Type {
			case anthropicEventError:
				msg := "unknown error"
				if ev.Error != nil {
					msg = ev.Error.Message
				}
				return api.UpstreamError("Anthropic API error", 0, errors.New(msg))
			case anthropicEventStop:
				return errStopStream
			case anthropicEventDelta:
			default:
				return nil
			}

			switch ev.Delta.Type {
			case "text_delta":
				if ev.Delta.Text != "" && !send(ctx, ch, StreamChunk{Content: ev.Delta.Text}) {
					return ctx.Err()
				}
			case "citations_delta":
				if cit := ev.Delta.Citation; cit != nil {
					sources.Add(cit.URL, cit.Title, cit.CitedText)
				}
			}
			return nil
		})

		if err != nil {
			if ctx.Err() == nil {
				send(ctx, ch, StreamChunk{Err: streamError("Anthropic", err)})
			}
			return
		}

		if s := sources.Sources(); len(s) > 0 {
			send(ctx, ch, StreamChunk{Sources: s})
		}
	}()

	return withRelatedQuestions(ctx, ch), nil
}
