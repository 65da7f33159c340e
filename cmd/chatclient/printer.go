package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/korylprince/streamchat/api"
	"github.com/korylprince/streamchat/client"
)

// printingStore echoes assistant output to w as the controller writes it to the store
type printingStore struct {
	*client.MemoryStore
	w io.Writer
}

func (p *printingStore) AppendContent(convID, msgID, text string) error {
	if err := p.MemoryStore.AppendContent(convID, msgID, text); err != nil {
		return err
	}
	fmt.Fprint(p.w, text)
	return nil
}

func (p *printingStore) SetSources(convID, msgID string, sources []api.SourceRef) error {
	if err := p.MemoryStore.SetSources(convID, msgID, sources); err != nil {
		return err
	}
	if len(sources) == 0 {
		return nil
	}

	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, color.CyanString("Sources:"))
	for i, s := range sources {
		fmt.Fprintf(p.w, "  [%d] %s %s\n", i+1, s.Title, color.New(color.Faint).Sprint(s.URL))
	}
	return nil
}

func (p *printingStore) SetRelatedQuestions(convID, msgID string, questions []api.RelatedQuestion) error {
	if err := p.MemoryStore.SetRelatedQuestions(convID, msgID, questions); err != nil {
		return err
	}
	if len(questions) == 0 {
		return nil
	}

	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, color.CyanString("Related:"))
	for _, q := range questions {
		fmt.Fprintf(p.w, "  - %s\n", q.Text)
	}
	return nil
}
