package chatbot

import (
	"net/url"
	"strings"

	"github.com/korylprince/streamchat/api"
)

const faviconURL = "https://www.google.com/s2/favicons?sz=32&domain="

// sourceSet collects citations for one reply, keeping the first occurrence of each URL
type sourceSet struct {
	seen    map[string]struct{}
	sources []api.SourceRef
}

// Add adds a citation. Entries without a URL or already seen are ignored.
func (s *sourceSet) Add(rawURL, title, snippet string) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return
	}
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[rawURL]; ok {
		return
	}
	s.seen[rawURL] = struct{}{}

	domain := sourceDomain(rawURL, title)
	ref := api.SourceRef{
		URL:     rawURL,
		Title:   strings.TrimSpace(title),
		Domain:  domain,
		Snippet: strings.TrimSpace(snippet),
	}
	if ref.Title == "" {
		ref.Title = domain
	}
	if domain != "" {
		ref.Favicon = faviconURL + url.QueryEscape(domain)
	}
	s.sources = append(s.sources, ref)
}

// Sources returns the collected citations in first-seen order
func (s *sourceSet) Sources() []api.SourceRef {
	return s.sources
}

// sourceDomain returns the host of rawURL without a "www." prefix. Grounding redirect URLs
// carry no useful host, so the title, which holds the origin domain for them, is used instead.
func sourceDomain(rawURL, title string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return strings.TrimSpace(title)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if strings.HasPrefix(host, "vertexaisearch.") && strings.TrimSpace(title) != "" {
		return strings.TrimSpace(title)
	}
	return host
}
