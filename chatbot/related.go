package chatbot

import (
	"context"
	"strings"
	"unicode"

	"github.com/korylprince/streamchat/api"
)

// RelatedMarker separates the visible reply from an in-band list of follow-up questions.
// Everything after the marker is a newline-delimited list, one "- question" per line.
const RelatedMarker = "<<<RELATED>>>"

// ExtractRelated splits a complete reply into its visible text and the related questions
// listed after RelatedMarker. Replies without the marker are returned unchanged.
func ExtractRelated(text string) (string, []api.RelatedQuestion) {
	idx := strings.Index(text, RelatedMarker)
	if idx < 0 {
		return text, nil
	}
	visible := strings.TrimRightFunc(text[:idx], unicode.IsSpace)
	return visible, parseRelatedList(text[idx+len(RelatedMarker):])
}

func parseRelatedList(list string) []api.RelatedQuestion {
	var questions []api.RelatedQuestion
	for _, line := range strings.Split(list, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "-") {
			continue
		}
		text := strings.TrimSpace(strings.TrimLeft(line, "-"))
		if text == "" {
			continue
		}
		questions = append(questions, api.RelatedQuestion{Text: text})
	}
	return questions
}

// relatedSplitter applies ExtractRelated incrementally. Text that could be the start of the
// marker, and whitespace that would precede it, is held back until it is disambiguated, so the
// concatenation of everything Feed and Close return equals the visible text of ExtractRelated.
type relatedSplitter struct {
	held  string
	tail  strings.Builder
	found bool
}

// Feed consumes a delta and returns the text that is safe to show now
func (s *relatedSplitter) Feed(delta string) string {
	if s.found {
		s.tail.WriteString(delta)
		return ""
	}

	buf := s.held + delta
	if idx := strings.Index(buf, RelatedMarker); idx >= 0 {
		s.found = true
		s.held = ""
		s.tail.WriteString(buf[idx+len(RelatedMarker):])
		return strings.TrimRightFunc(buf[:idx], unicode.IsSpace)
	}

	keep := len(buf) - markerPrefixLen(buf)
	cut := len(strings.TrimRightFunc(buf[:keep], unicode.IsSpace))
	s.held = buf[cut:]
	return buf[:cut]
}

// Close returns any held visible text and the parsed questions
func (s *relatedSplitter) Close() (string, []api.RelatedQuestion) {
	if !s.found {
		rest := s.held
		s.held = ""
		return rest, nil
	}
	return "", parseRelatedList(s.tail.String())
}

// markerPrefixLen returns the length of the longest suffix of s that is a proper prefix of RelatedMarker
func markerPrefixLen(s string) int {
	n := len(RelatedMarker) - 1
	if len(s) < n {
		n = len(s)
	}
	for ; n > 0; n-- {
		if strings.HasSuffix(s, RelatedMarker[:n]) {
			return n
		}
	}
	return 0
}

// withRelatedQuestions strips the in-band related-questions section from a stream and emits
// it as a RelatedQuestions chunk after the last visible delta.
func withRelatedQuestions(ctx context.Context, in <-chan StreamChunk) <-chan StreamChunk {
	out := make(chan StreamChunk, cap(in))
	go func() {
		defer close(out)

		var sp relatedSplitter
		for chunk := range in {
			if chunk.Content == "" {
				if chunk.Err != nil {
					//show what was held before reporting the failure
					if rest, _ := sp.Close(); rest != "" && !send(ctx, out, StreamChunk{Content: rest}) {
						return
					}
				}
				if !send(ctx, out, chunk) {
					return
				}
				if chunk.Err != nil {
					return
				}
				continue
			}

			if visible := sp.Feed(chunk.Content); visible != "" {
				if !send(ctx, out, StreamChunk{Content: visible}) {
					return
				}
			}
		}

		if ctx.Err() != nil {
			return
		}

		rest, questions := sp.Close()
		if rest != "" && !send(ctx, out, StreamChunk{Content: rest}) {
			return
		}
		if len(questions) > 0 {
			send(ctx, out, StreamChunk{RelatedQuestions: questions})
		}
	}()
	return out
}
