package chatbot

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/korylprince/streamchat/api"
)

// DefaultMockDelay is the pacing between mock word chunks
const DefaultMockDelay = 30 * time.Millisecond

// mockEchoLen is the number of characters of the user's message echoed by the template reply
const mockEchoLen = 50

// MockResponder streams canned replies. It is used when no upstream credential is configured.
type MockResponder struct {
	delay time.Duration
}

// NewMockResponder returns a MockResponder that waits delay between word chunks.
// A zero delay streams without pacing.
func NewMockResponder(delay time.Duration) *MockResponder {
	if delay < 0 {
		delay = 0
	}
	return &MockResponder{delay: delay}
}

// Name implements Upstream
func (m *MockResponder) Name() string {
	return ProviderMock
}

// Model implements Upstream
func (m *MockResponder) Model(req *api.ChatTurnRequest) string {
	return ProviderMock
}

// ChatStream implements Upstream. It never returns an error.
func (m *MockResponder) ChatStream(ctx context.Context, req *api.ChatTurnRequest) (<-chan StreamChunk, error) {
	words := splitWords(MockReply(req.Messages))

	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)

		var timer *time.Timer
		if m.delay > 0 {
			timer = time.NewTimer(m.delay)
			defer timer.Stop()
		}

		for i, w := range words {
			if i > 0 && timer != nil {
				timer.Reset(m.delay)
				select {
				case <-timer.C:
				case <-ctx.Done():
					return
				}
			}
			if !send(ctx, ch, StreamChunk{Content: w}) {
				return
			}
		}
	}()

	return ch, nil
}

// MockReply selects the canned reply for a conversation
func MockReply(history []api.ChatMessage) string {
	var (
		last  string
		first string
		turns int
	)
	for _, m := range history {
		if m.Role != api.RoleUser {
			continue
		}
		if turns == 0 {
			first = m.Content
		}
		last = m.Content
		turns++
	}

	words := strings.FieldsFunc(strings.ToLower(last), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	has := func(keys ...string) bool {
		for _, w := range words {
			for _, k := range keys {
				if w == k {
					return true
				}
			}
		}
		return false
	}

	switch {
	case has("hello", "hi", "hey"):
		return "Hello! I'm a mock assistant. How can I help you today?"
	case has("name"):
		return "I'm a mock assistant standing in for a language model. Configure an upstream credential for real responses."
	case has("remember", "said"):
		if turns > 1 {
			return fmt.Sprintf("From our conversation, your first message was: %q. I keep track of our full conversation history.", first)
		}
		return "This is the start of our conversation, so there's nothing to recall yet!"
	}

	echo := []rune(last)
	if len(echo) > mockEchoLen {
		echo = echo[:mockEchoLen]
	}
	return fmt.Sprintf("Mock reply to: %q. This is turn #%d. Configure an upstream credential for real responses.", string(echo), turns)
}

// splitWords splits s into chunks of leading whitespace plus one word. Concatenating the result
// yields s exactly.
func splitWords(s string) []string {
	var (
		chunks []string
		start  int
		inWord bool
	)
	for i, r := range s {
		space := unicode.IsSpace(r)
		if space && inWord {
			chunks = append(chunks, s[start:i])
			start = i
		}
		inWord = !space
	}
	if start < len(s) {
		chunks = append(chunks, s[start:])
	}
	return chunks
}
