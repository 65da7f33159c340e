package chatbot

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/korylprince/streamchat/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const replyWithRelated = "Go channels are typed conduits.\n\n<<<RELATED>>>\n- What is a buffered channel?\n- How do I close a channel?\n\n-   When should I use select?  \n"

func TestExtractRelated(t *testing.T) {
	visible, related := ExtractRelated(replyWithRelated)
	assert.Equal(t, "Go channels are typed conduits.", visible)
	assert.Equal(t, []api.RelatedQuestion{
		{Text: "What is a buffered channel?"},
		{Text: "How do I close a channel?"},
		{Text: "When should I use select?"},
	}, related)
}

func TestExtractRelatedNoMarker(t *testing.T) {
	text := "Plain reply with trailing space  \n"
	visible, related := ExtractRelated(text)
	assert.Equal(t, text, visible)
	assert.Nil(t, related)
}

func TestExtractRelatedIgnoresNonListLines(t *testing.T) {
	visible, related := ExtractRelated("Answer<<<RELATED>>>\nSome preamble\n- Only question\n-\n")
	assert.Equal(t, "Answer", visible)
	assert.Equal(t, []api.RelatedQuestion{{Text: "Only question"}}, related)
}

func feedAll(parts []string) (string, []api.RelatedQuestion) {
	var (
		sp  relatedSplitter
		out strings.Builder
	)
	for _, p := range parts {
		out.WriteString(sp.Feed(p))
	}
	rest, related := sp.Close()
	out.WriteString(rest)
	return out.String(), related
}

func TestRelatedSplitterMatchesExtractAtEverySplit(t *testing.T) {
	inputs := []string{
		replyWithRelated,
		"No marker here, just text ending in <<<REL",
		"Angle brackets << in < the <<< middle",
		"trailing whitespace   \n\t",
		"<<<RELATED>>>- only questions",
	}

	for _, in := range inputs {
		wantVisible, wantRelated := ExtractRelated(in)
		for i := 0; i <= len(in); i++ {
			visible, related := feedAll([]string{in[:i], in[i:]})
			assert.Equal(t, wantVisible, visible, "split at %d of %q", i, in)
			assert.Equal(t, wantRelated, related, "split at %d of %q", i, in)
		}
	}
}

func TestRelatedSplitterByteAtATime(t *testing.T) {
	var parts []string
	for i := 0; i < len(replyWithRelated); i++ {
		parts = append(parts, replyWithRelated[i:i+1])
	}
	visible, related := feedAll(parts)
	wantVisible, wantRelated := ExtractRelated(replyWithRelated)
	assert.Equal(t, wantVisible, visible)
	assert.Equal(t, wantRelated, related)
}

func TestRelatedSplitterNeverShowsMarker(t *testing.T) {
	var sp relatedSplitter
	for _, p := range []string{"Answer ", "<<", "<REL", "ATED>>>", "\n- Next?"} {
		assert.NotContains(t, sp.Feed(p), "<")
	}
}

func TestWithRelatedQuestions(t *testing.T) {
	in := make(chan StreamChunk, 10)
	for _, p := range []string{"Answer", " text\n", "<<<RELA", "TED>>>\n- One?\n", "- Two?"} {
		in <- StreamChunk{Content: p}
	}
	in <- StreamChunk{Sources: []api.SourceRef{{URL: "https://go.dev"}}}
	close(in)

	res := collect(t, withRelatedQuestions(context.Background(), in))
	require.NoError(t, res.err)
	assert.Equal(t, "Answer text", res.text)
	assert.Equal(t, []api.SourceRef{{URL: "https://go.dev"}}, res.sources)
	assert.Equal(t, []api.RelatedQuestion{{Text: "One?"}, {Text: "Two?"}}, res.related)
}

func TestWithRelatedQuestionsFlushesBeforeError(t *testing.T) {
	in := make(chan StreamChunk, 10)
	in <- StreamChunk{Content: "partial answer <<"}
	in <- StreamChunk{Err: errors.New("boom")}
	close(in)

	var chunks []StreamChunk
	for c := range withRelatedQuestions(context.Background(), in) {
		chunks = append(chunks, c)
	}
	require.Len(t, chunks, 3)
	assert.Equal(t, "partial answer", chunks[0].Content)
	assert.Equal(t, " <<", chunks[1].Content)
	assert.EqualError(t, chunks[2].Err, "boom")
}

type collected struct {
	text    string
	deltas  []string
	sources []api.SourceRef
	related []api.RelatedQuestion
	err     error
}

func collect(t *testing.T, ch <-chan StreamChunk) collected {
	t.Helper()
	var res collected
	var b strings.Builder
	for c := range ch {
		switch {
		case c.Err != nil:
			require.Nil(t, res.err, "more than one error chunk")
			res.err = c.Err
		case c.Sources != nil:
			res.sources = append(res.sources, c.Sources...)
		case c.RelatedQuestions != nil:
			res.related = append(res.related, c.RelatedQuestions...)
		default:
			require.Nil(t, res.err, "delta after error chunk")
			res.deltas = append(res.deltas, c.Content)
			b.WriteString(c.Content)
		}
	}
	res.text = b.String()
	return res
}
