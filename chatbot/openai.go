package chatbot

import (
	"context"
	"errors"
	"io"

	"github.com/korylprince/streamchat/api"
	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// DefaultOpenAIModel is used when no model is configured
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIClient streams replies from an OpenAI-compatible chat completions API
type OpenAIClient struct {
	client       *openai.Client
	model        string
	systemPrompt string
	log          logrus.FieldLogger
}

// NewOpenAIClient returns an OpenAIClient for cfg. cfg.BaseURL selects a compatible endpoint.
func NewOpenAIClient(cfg Config) *OpenAIClient {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}

	c := &OpenAIClient{
		client:       openai.NewClientWithConfig(oc),
		model:        pick(cfg.Model, DefaultOpenAIModel),
		systemPrompt: cfg.SystemPrompt,
		log:          cfg.Logger,
	}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	return c
}

// Name implements Upstream
func (c *OpenAIClient) Name() string {
	return ProviderOpenAI
}

// Model implements Upstream
func (c *OpenAIClient) Model(req *api.ChatTurnRequest) string {
	return pick(req.Model, c.model)
}

func (c *OpenAIClient) request(req *api.ChatTurnRequest) openai.ChatCompletionRequest {
	msgs := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt(req.SystemPrompt, c.systemPrompt)},
	}
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		if m.Role == api.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return openai.ChatCompletionRequest{
		Model:    c.Model(req),
		Messages: msgs,
		Stream:   true,
	}
}

// ChatStream implements Upstream
func (c *OpenAIClient) ChatStream(ctx context.Context, req *api.ChatTurnRequest) (<-chan StreamChunk, error) {
	creq := c.request(req)

	c.log.WithFields(logrus.Fields{"provider": ProviderOpenAI, "model": creq.Model, "messages": len(req.Messages)}).Debug("Calling upstream")

	stream, err := c.client.CreateChatCompletionStream(ctx, creq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, api.UpstreamError("OpenAI API error", openAIStatus(err), err)
	}

	ch := make(chan StreamChunk, 100)
	go func() {
		defer close(ch)
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				if ctx.Err() == nil {
					send(ctx, ch, StreamChunk{Err: api.UpstreamError("OpenAI stream failed", openAIStatus(err), err)})
				}
				return
			}

			if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
				continue
			}
			if !send(ctx, ch, StreamChunk{Content: resp.Choices[0].Delta.Content}) {
				return
			}
		}
	}()

	return withRelatedQuestions(ctx, ch), nil
}

func openAIStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
