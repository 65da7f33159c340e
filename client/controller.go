package client

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/korylprince/streamchat/api"
	"github.com/sirupsen/logrus"
)

// SendTurn rejections
var (
	ErrEmptyTurn    = errors.New("turn is empty")
	ErrStreamActive = errors.New("a stream is already active")
)

// Streamer streams the reply to a chat turn into callbacks, blocking until the stream ends
type Streamer interface {
	StreamTurn(ctx context.Context, req *api.ChatTurnRequest, cb Callbacks) error
}

// Settings are sent with every turn
type Settings struct {
	Model        string `yaml:"model"`
	SystemPrompt string `yaml:"systemPrompt"`
	Tools        bool   `yaml:"tools"`
}

// Controller runs chat turns for one conversation, allowing at most one active stream
type Controller struct {
	store    Store
	convID   string
	streamer Streamer
	settings Settings
	log      logrus.FieldLogger

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc // non-nil while a stream is active
}

// NewController returns a Controller for the conversation convID in store
func NewController(store Store, convID string, streamer Streamer, settings Settings) *Controller {
	return &Controller{
		store:    store,
		convID:   convID,
		streamer: streamer,
		settings: settings,
		log:      logrus.WithField("conversation", convID),
	}
}

// ConversationID returns the ID of the controlled conversation
func (c *Controller) ConversationID() string {
	return c.convID
}

// IsStreaming reports whether a stream is active
func (c *Controller) IsStreaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

// SendTurn adds text as a user message and streams the assistant's reply into a new message,
// blocking until the stream completes or is aborted. It returns ErrEmptyTurn or ErrStreamActive,
// without changing the store, if text is blank or a stream is already active. Stream failures
// are recorded inline in the assistant message.
func (c *Controller) SendTurn(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyTurn
	}

	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return ErrStreamActive
	}

	now := time.Now()
	if err := c.store.AddMessage(c.convID, Message{ID: uuid.NewString(), Role: api.RoleUser, Content: text, Date: now}); err != nil {
		c.mu.Unlock()
		return err
	}
	history, err := c.store.Messages(c.convID)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	assistantID := uuid.NewString()
	if err := c.store.AddMessage(c.convID, Message{ID: assistantID, Role: api.RoleAssistant, Date: now}); err != nil {
		c.mu.Unlock()
		return err
	}
	if err := c.store.SetStreaming(c.convID, true); err != nil {
		c.log.WithError(err).Warn("Could not set streaming flag")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.gen++
	gen := c.gen
	c.cancel = cancel
	c.mu.Unlock()

	req := &api.ChatTurnRequest{
		Messages:     requestMessages(history),
		Model:        c.settings.Model,
		SystemPrompt: c.settings.SystemPrompt,
		Tools:        c.settings.Tools,
	}

	err = c.streamer.StreamTurn(ctx, req, Callbacks{
		OnChunk: func(text string) {
			c.apply(gen, func() error { return c.store.AppendContent(c.convID, assistantID, text) })
		},
		OnSources: func(sources []api.SourceRef) {
			c.apply(gen, func() error { return c.store.SetSources(c.convID, assistantID, sources) })
		},
		OnRelatedQuestions: func(questions []api.RelatedQuestion) {
			c.apply(gen, func() error { return c.store.SetRelatedQuestions(c.convID, assistantID, questions) })
		},
		OnError: func(msg string) {
			c.apply(gen, func() error { return c.store.AppendContent(c.convID, assistantID, "\n[Error: "+msg+"]") })
		},
		OnDone: func() {
			c.finish(gen)
		},
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		c.log.WithError(err).Debug("Stream ended with error")
	}

	c.finish(gen)
	return nil
}

// apply runs a store mutation for stream gen unless that stream is no longer active
func (c *Controller) apply(gen uint64, fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.cancel == nil {
		return
	}
	if err := fn(); err != nil {
		c.log.WithError(err).Warn("Could not update conversation")
	}
}

// finish ends stream gen if it is still active
func (c *Controller) finish(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.cancel == nil {
		return
	}
	c.end()
}

// end cancels and clears the active stream. c.mu must be held.
func (c *Controller) end() {
	c.cancel()
	c.cancel = nil
	if err := c.store.SetStreaming(c.convID, false); err != nil {
		c.log.WithError(err).Warn("Could not clear streaming flag")
	}
}

// AbortCurrentStream cancels the active stream, if any. The streaming flag is cleared immediately
// and the aborted stream makes no further changes to the store.
func (c *Controller) AbortCurrentStream() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.end()
	}
}

// requestMessages converts stored history to request messages, keeping the most recent
// api.MaxMessages. Blank messages, such as the placeholder of a reply aborted before its first
// chunk, are skipped.
func requestMessages(history []Message) []api.ChatMessage {
	msgs := make([]api.ChatMessage, 0, len(history))
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		msgs = append(msgs, api.ChatMessage{Role: m.Role, Content: m.Content})
	}
	if len(msgs) > api.MaxMessages {
		msgs = msgs[len(msgs)-api.MaxMessages:]
	}
	return msgs
}
