package chatbot

import (
	"context"
	"errors"
	"iter"
	"strings"

	"github.com/korylprince/streamchat/api"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

// DefaultGeminiModel is used when neither the config nor the request names a model
const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiClient streams replies from the Gemini API
type GeminiClient struct {
	client       *genai.Client
	model        string
	systemPrompt string
	log          logrus.FieldLogger
}

// NewGeminiClient returns a GeminiClient for cfg. cfg.BaseURL overrides the API endpoint.
func NewGeminiClient(ctx context.Context, cfg Config) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  cfg.HTTPClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, api.UpstreamError("Could not create Gemini client", 0, err)
	}

	c := &GeminiClient{
		client:       client,
		model:        pick(cfg.Model, DefaultGeminiModel),
		systemPrompt: cfg.SystemPrompt,
		log:          cfg.Logger,
	}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	return c, nil
}

// Name implements Upstream
func (c *GeminiClient) Name() string {
	return ProviderGemini
}

// Model implements Upstream
func (c *GeminiClient) Model(req *api.ChatTurnRequest) string {
	return pick(req.Model, c.model)
}

// contents converts the history to Gemini contents. Gemini rejects empty parts, so blank turns
// are dropped.
func (c *GeminiClient) contents(req *api.ChatTurnRequest) ([]*genai.Content, *genai.GenerateContentConfig) {
	var contents []*genai.Content
	for _, m := range alternatingTurns(req.Messages) {
		role := genai.RoleUser
		if m.Role == api.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemPrompt(req.SystemPrompt, c.systemPrompt), genai.RoleUser),
	}
	if req.Tools {
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	return contents, config
}

// geminiError converts a genai failure to an upstream *api.Error carrying the HTTP status
func geminiError(description string, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return api.UpstreamError(description, apiErr.Code, errors.New(apiErr.Message))
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return api.UpstreamError(description, apiErrPtr.Code, errors.New(apiErrPtr.Message))
	}
	return api.UpstreamError(description, 0, err)
}

// ChatStream implements Upstream. The request is sent when the first response is pulled, so
// connection and status failures are returned before the channel is created.
func (c *GeminiClient) ChatStream(ctx context.Context, req *api.ChatTurnRequest) (<-chan StreamChunk, error) {
	model := c.Model(req)
	contents, config := c.contents(req)

	c.log.WithFields(logrus.Fields{"provider": ProviderGemini, "model": model, "messages": len(contents)}).Debug("Calling upstream")

	next, stop := iter.Pull2(c.client.Models.GenerateContentStream(ctx, model, contents, config))
	first, err, ok := next()
	if err != nil {
		stop()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, geminiError("Gemini API error", err)
	}

	ch := make(chan StreamChunk, 100)
	go func() {
		defer close(ch)
		defer stop()

		var sources sourceSet
		for resp := first; ok; resp, err, ok = next() {
			if err != nil {
				if ctx.Err() == nil {
					send(ctx, ch, StreamChunk{Err: geminiError("Gemini stream failed", err)})
				}
				return
			}
			if text := c.collect(resp, &sources); text != "" {
				if !send(ctx, ch, StreamChunk{Content: text}) {
					return
				}
			}
		}

		if s := sources.Sources(); len(s) > 0 {
			send(ctx, ch, StreamChunk{Sources: s})
		}
	}()

	return withRelatedQuestions(ctx, ch), nil
}

// collect returns the visible text of resp and adds its grounding sources to sources
func (c *GeminiClient) collect(resp *genai.GenerateContentResponse, sources *sourceSet) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return ""
	}
	cand := resp.Candidates[0]

	if gm := cand.GroundingMetadata; gm != nil {
		for _, gc := range gm.GroundingChunks {
			if gc != nil && gc.Web != nil {
				sources.Add(gc.Web.URI, gc.Web.Title, "")
			}
		}
	}

	if cand.Content == nil {
		return ""
	}
	var text strings.Builder
	for _, p := range cand.Content.Parts {
		if p != nil && !p.Thought {
			text.WriteString(p.Text)
		}
	}
	return text.String()
}
