package chatbot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/korylprince/streamchat/api"
	"github.com/sirupsen/logrus"
)

// StreamChunk is one unit of a normalized upstream stream. Exactly one field is set.
type StreamChunk struct {
	Content          string                // text delta
	Sources          []api.SourceRef       // citation set for the reply
	RelatedQuestions []api.RelatedQuestion // suggested follow-ups
	Err              error                 // terminal mid-stream failure
}

// Upstream streams an assistant reply for a chat turn.
//
// ChatStream returns an error, and no channel, if the upstream could not be reached or
// refused the request. Otherwise the returned channel yields chunks in emission order and is
// closed when the reply is complete, after a chunk with Err set, or when ctx is canceled.
type Upstream interface {
	Name() string
	Model(req *api.ChatTurnRequest) string
	ChatStream(ctx context.Context, req *api.ChatTurnRequest) (<-chan StreamChunk, error)
}

// Providers
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
	ProviderOpenAI    = "openai"
	ProviderMock      = "mock"
)

// Config selects and configures an Upstream
type Config struct {
	Provider     string
	APIKey       string // credential for the selected provider; empty selects the mock
	Model        string // default model, overridden per request
	SystemPrompt string // default system prompt, overridden per request
	BaseURL      string // override for the provider endpoint
	Region       string // AWS region for bedrock
	MockDelay    time.Duration
	HTTPClient   *http.Client
	Logger       logrus.FieldLogger
}

// New returns the Upstream for cfg. With no credential configured it returns a MockResponder.
func New(cfg Config) (Upstream, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case ProviderGemini, ProviderAnthropic, ProviderBedrock, ProviderOpenAI:
	case ProviderMock:
		return NewMockResponder(cfg.MockDelay), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}

	if cfg.APIKey == "" {
		cfg.Logger.WithField("provider", provider).Warn("No upstream credential configured, using mock responder")
		return NewMockResponder(cfg.MockDelay), nil
	}

	switch provider {
	case ProviderGemini:
		c, err := NewGeminiClient(context.Background(), cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	case ProviderAnthropic:
		return NewAnthropicClient(cfg), nil
	case ProviderBedrock:
		c, err := NewBedrockClient(context.Background(), cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return NewOpenAIClient(cfg), nil
	}
}

func pick(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}

// alternatingTurns drops empty messages and merges consecutive messages with the same role,
// as required by upstreams that enforce strict user/assistant alternation.
func alternatingTurns(msgs []api.ChatMessage) []api.ChatMessage {
	out := make([]api.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == m.Role {
			out[n-1].Content += "\n\n" + m.Content
			continue
		}
		out = append(out, m)
	}
	return out
}

// streamError wraps a mid-stream read failure unless it is already an upstream error
func streamError(provider string, err error) error {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return err
	}
	return api.UpstreamError(fmt.Sprintf("%s stream failed", provider), 0, err)
}

// send delivers chunk unless ctx is done first
func send(ctx context.Context, ch chan<- StreamChunk, chunk StreamChunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
