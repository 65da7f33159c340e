package main

import (
	"sync"

	"github.com/korylprince/streamchat/client"
)

// session holds the controller for the conversation the REPL is currently in
type session struct {
	client   *client.Client
	store    *printingStore
	settings client.Settings

	mu   sync.Mutex
	ctrl *client.Controller
}

func newSession(c *client.Client, store *printingStore, settings client.Settings) *session {
	s := &session{client: c, store: store, settings: settings}
	s.reset()
	return s
}

func (s *session) current() *client.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl
}

// reset aborts any active reply and starts a new conversation
func (s *session) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctrl != nil {
		s.ctrl.AbortCurrentStream()
	}
	s.ctrl = client.NewController(s.store, s.store.Create().ID, s.client, s.settings)
}
