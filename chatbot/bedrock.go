package chatbot

import (
	"context"
	"errors"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/korylprince/streamchat/api"
	"github.com/sirupsen/logrus"
)

// Bedrock defaults
const (
	DefaultBedrockRegion = "us-east-1"
	DefaultBedrockModel  = "us.anthropic.claude-sonnet-4-20250514-v1:0"
	bedrockMaxTokens     = 4096
)

// EventStream is the event stream of a Bedrock ConverseStream call
type EventStream interface {
	Events() <-chan brtypes.ConverseStreamOutput
	Close() error
	Err() error
}

// BedrockClient streams replies from the Bedrock ConverseStream API
type BedrockClient struct {
	model        string
	systemPrompt string
	log          logrus.FieldLogger
	openStream   func(ctx context.Context, in *bedrockruntime.ConverseStreamInput) (EventStream, error)
}

// bearerTransport authenticates requests with a Bedrock API key instead of SigV4
type bearerTransport struct {
	token string
	next  http.RoundTripper
}

func (t *bearerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("Authorization", "Bearer "+t.token)
	return t.next.RoundTrip(r)
}

// NewBedrockClient returns a BedrockClient for cfg. cfg.APIKey is a Bedrock API key sent as a
// bearer token.
func NewBedrockClient(ctx context.Context, cfg Config) (*BedrockClient, error) {
	next := http.DefaultTransport
	if cfg.HTTPClient != nil && cfg.HTTPClient.Transport != nil {
		next = cfg.HTTPClient.Transport
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(pick(cfg.Region, DefaultBedrockRegion)),
		config.WithCredentialsProvider(aws.AnonymousCredentials{}),
		config.WithHTTPClient(&http.Client{Transport: &bearerTransport{token: cfg.APIKey, next: next}}),
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, api.UpstreamError("Could not load AWS configuration", 0, err)
	}

	var clientOpts []func(*bedrockruntime.Options)
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, func(o *bedrockruntime.Options) {
			o.BaseEndpoint = aws.String(cfg.BaseURL)
		})
	}
	client := bedrockruntime.NewFromConfig(awsCfg, clientOpts...)

	c := &BedrockClient{
		model:        pick(cfg.Model, DefaultBedrockModel),
		systemPrompt: cfg.SystemPrompt,
		log:          cfg.Logger,
		openStream: func(ctx context.Context, in *bedrockruntime.ConverseStreamInput) (EventStream, error) {
			out, err := client.ConverseStream(ctx, in)
			if err != nil {
				return nil, err
			}
			return out.GetStream(), nil
		},
	}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	return c, nil
}

// Name implements Upstream
func (c *BedrockClient) Name() string {
	return ProviderBedrock
}

// Model implements Upstream
func (c *BedrockClient) Model(req *api.ChatTurnRequest) string {
	return pick(req.Model, c.model)
}

func (c *BedrockClient) input(req *api.ChatTurnRequest) *bedrockruntime.ConverseStreamInput {
	in := &bedrockruntime.ConverseStreamInput{
		ModelId: aws.String(c.Model(req)),
		System: []brtypes.SystemContentBlock{
			&brtypes.SystemContentBlockMemberText{Value: SystemPrompt(req.SystemPrompt, c.systemPrompt)},
		},
		InferenceConfig: &brtypes.InferenceConfiguration{MaxTokens: aws.Int32(bedrockMaxTokens)},
	}
	for _, m := range alternatingTurns(req.Messages) {
		role := brtypes.ConversationRoleUser
		if m.Role == api.RoleAssistant {
			role = brtypes.ConversationRoleAssistant
		}
		in.Messages = append(in.Messages, brtypes.Message{
			Role:    role,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: m.Content}},
		})
	}
	return in
}

// ChatStream implements Upstream
func (c *BedrockClient) ChatStream(ctx context.Context, req *api.ChatTurnRequest) (<-chan StreamChunk, error) {
	in := c.input(req)

	c.log.WithFields(logrus.Fields{"provider": ProviderBedrock, "model": *in.ModelId, "messages": len(in.Messages)}).Debug("Calling upstream")

	stream, err := c.openStream(ctx, in)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		status := 0
		var re *awshttp.ResponseError
		if errors.As(err, &re) {
			status = re.HTTPStatusCode()
		}
		return nil, api.UpstreamError("Bedrock API error", status, err)
	}

	ch := make(chan StreamChunk, 100)
	go func() {
		defer close(ch)
		defer stream.Close()

		events := stream.Events()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-events:
				if !ok {
					if err := stream.Err(); err != nil && ctx.Err() == nil {
						send(ctx, ch, StreamChunk{Err: streamError("Bedrock", err)})
					}
					return
				}

				v, ok := event.(*brtypes.ConverseStreamOutputMemberContentBlockDelta)
				if !ok {
					continue
				}
				delta, ok := v.Value.Delta.(*brtypes.ContentBlockDeltaMemberText)
				if !ok || delta.Value == "" {
					continue
				}
				if !send(ctx, ch, StreamChunk{Content: delta.Value}) {
					return
				}
			}
		}
	}()

	return withRelatedQuestions(ctx, ch), nil
}
