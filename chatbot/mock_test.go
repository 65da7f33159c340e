package chatbot

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/korylprince/streamchat/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userTurns(texts ...string) []api.ChatMessage {
	var msgs []api.ChatMessage
	for i, t := range texts {
		if i > 0 {
			msgs = append(msgs, api.ChatMessage{Role: api.RoleAssistant, Content: "ok"})
		}
		msgs = append(msgs, api.ChatMessage{Role: api.RoleUser, Content: t})
	}
	return msgs
}

func TestMockReply(t *testing.T) {
	tests := []struct {
		name     string
		history  []api.ChatMessage
		contains string
	}{
		{"greeting", userTurns("hello"), "Hello!"},
		{"greeting punctuation", userTurns("Hey, there"), "Hello!"},
		{"identity", userTurns("What is your name?"), "mock assistant"},
		{"recall", userTurns("I like Go", "What did I say first? Do you remember?"), `"I like Go"`},
		{"recall first turn", userTurns("remember this"), "nothing to recall"},
		{"template", userTurns("first", "explain goroutines"), `Mock reply to: "explain goroutines". This is turn #2.`},
		{"no substring greeting", userTurns("this is thin"), "Mock reply to:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, MockReply(tt.history), tt.contains)
		})
	}
}

func TestMockReplyTruncatesEcho(t *testing.T) {
	long := strings.Repeat("가", 80)
	reply := MockReply(userTurns(long))
	assert.Contains(t, reply, `"`+strings.Repeat("가", 50)+`"`)
	assert.NotContains(t, reply, strings.Repeat("가", 51))
}

func TestSplitWords(t *testing.T) {
	for _, s := range []string{"", "one", "  lead and  double  spaces ", "line\nbreak\ttab"} {
		assert.Equal(t, s, strings.Join(splitWords(s), ""))
	}
	assert.Equal(t, []string{"Hello!", " How", " are", " you?"}, splitWords("Hello! How are you?"))
}

func TestMockResponderStream(t *testing.T) {
	m := NewMockResponder(0)
	assert.Equal(t, ProviderMock, m.Name())

	req := &api.ChatTurnRequest{Messages: userTurns("hello")}
	ch, err := m.ChatStream(context.Background(), req)
	require.NoError(t, err)

	res := collect(t, ch)
	require.NoError(t, res.err)
	assert.Greater(t, len(res.deltas), 1)
	assert.Equal(t, MockReply(req.Messages), res.text)
}

func TestMockResponderCancel(t *testing.T) {
	m := NewMockResponder(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := m.ChatStream(ctx, &api.ChatTurnRequest{Messages: userTurns("hello")})
	require.NoError(t, err)

	first := <-ch
	assert.Equal(t, "Hello!", first.Content)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("stream did not stop after cancel")
	}
}
