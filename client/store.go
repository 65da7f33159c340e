package client

import (
	"container/list"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/korylprince/streamchat/api"
)

// Store errors
var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
)

// titleLen is the number of characters of the first user message used as a conversation title
const titleLen = 30

// Message is a stored chat message
type Message struct {
	ID               string
	Role             api.Role
	Content          string
	Sources          []api.SourceRef
	RelatedQuestions []api.RelatedQuestion
	Date             time.Time
}

// Conversation is a stored conversation
type Conversation struct {
	ID        string
	Title     string
	Messages  []Message
	Streaming bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store holds conversations. All mutations address messages by ID.
type Store interface {
	AddMessage(convID string, msg Message) error
	AppendContent(convID, msgID, text string) error
	SetSources(convID, msgID string, sources []api.SourceRef) error
	SetRelatedQuestions(convID, msgID string, questions []api.RelatedQuestion) error
	SetStreaming(convID string, streaming bool) error
	Messages(convID string) ([]Message, error)
}

// MemoryStore is an in-memory Store that evicts least recently used conversations once the
// approximate size of all conversations exceeds a limit
type MemoryStore struct {
	mu       sync.Mutex
	maxBytes int
	curBytes int
	cache    map[string]*list.Element
	lru      *list.List
}

type cacheEntry struct {
	conv  *Conversation
	bytes int
}

// NewMemoryStore returns a MemoryStore holding up to about maxBytes of message text
func NewMemoryStore(maxBytes int) *MemoryStore {
	return &MemoryStore{
		maxBytes: maxBytes,
		cache:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

func messageBytes(m *Message) int {
	n := len(m.ID) + len(m.Role) + len(m.Content)
	for _, s := range m.Sources {
		n += len(s.URL) + len(s.Title) + len(s.Domain) + len(s.Snippet) + len(s.Favicon)
	}
	for _, q := range m.RelatedQuestions {
		n += len(q.Text)
	}
	return n
}

// Create creates a new, empty conversation
func (s *MemoryStore) Create() *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	conv := &Conversation{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
	entry := &cacheEntry{conv: conv, bytes: len(conv.ID)}
	s.cache[conv.ID] = s.lru.PushFront(entry)
	s.curBytes += entry.bytes
	s.evictIfNeeded()

	c := *conv
	return &c
}

// Get returns a copy of the conversation with the given ID
func (s *MemoryStore) Get(convID string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.entry(convID)
	if err != nil {
		return nil, err
	}
	c := *entry.conv
	c.Messages = copyMessages(entry.conv.Messages)
	return &c, nil
}

// entry returns the entry for convID and marks it recently used. s.mu must be held.
func (s *MemoryStore) entry(convID string) (*cacheEntry, error) {
	elem, ok := s.cache[convID]
	if !ok {
		return nil, ErrConversationNotFound
	}
	s.lru.MoveToFront(elem)
	return elem.Value.(*cacheEntry), nil
}

// update applies fn to the message msgID of convID and accounts for its size change
func (s *MemoryStore) update(convID, msgID string, fn func(m *Message)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.entry(convID)
	if err != nil {
		return err
	}
	for i := range entry.conv.Messages {
		m := &entry.conv.Messages[i]
		if m.ID != msgID {
			continue
		}
		old := messageBytes(m)
		fn(m)
		s.resize(entry, messageBytes(m)-old)
		return nil
	}
	return ErrMessageNotFound
}

func (s *MemoryStore) resize(entry *cacheEntry, delta int) {
	entry.bytes += delta
	s.curBytes += delta
	entry.conv.UpdatedAt = time.Now()
	s.evictIfNeeded()
}

// AddMessage implements Store. The first user message sets the conversation title.
func (s *MemoryStore) AddMessage(convID string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.entry(convID)
	if err != nil {
		return err
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Date.IsZero() {
		msg.Date = time.Now()
	}
	if entry.conv.Title == "" && msg.Role == api.RoleUser {
		entry.conv.Title = Title(msg.Content)
	}

	entry.conv.Messages = append(entry.conv.Messages, msg)
	s.resize(entry, messageBytes(&msg))
	return nil
}

// AppendContent implements Store
func (s *MemoryStore) AppendContent(convID, msgID, text string) error {
	return s.update(convID, msgID, func(m *Message) {
		m.Content += text
	})
}

// SetSources implements Store
func (s *MemoryStore) SetSources(convID, msgID string, sources []api.SourceRef) error {
	return s.update(convID, msgID, func(m *Message) {
		m.Sources = append([]api.SourceRef(nil), sources...)
	})
}

// SetRelatedQuestions implements Store
func (s *MemoryStore) SetRelatedQuestions(convID, msgID string, questions []api.RelatedQuestion) error {
	return s.update(convID, msgID, func(m *Message) {
		m.RelatedQuestions = append([]api.RelatedQuestion(nil), questions...)
	})
}

// SetStreaming implements Store
func (s *MemoryStore) SetStreaming(convID string, streaming bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.entry(convID)
	if err != nil {
		return err
	}
	entry.conv.Streaming = streaming
	return nil
}

// Messages implements Store. It returns a copy of the conversation's messages.
func (s *MemoryStore) Messages(convID string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.entry(convID)
	if err != nil {
		return nil, err
	}
	return copyMessages(entry.conv.Messages), nil
}

// DeleteMessage removes a message from a conversation
func (s *MemoryStore) DeleteMessage(convID, msgID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.entry(convID)
	if err != nil {
		return err
	}
	for i := range entry.conv.Messages {
		if entry.conv.Messages[i].ID != msgID {
			continue
		}
		size := messageBytes(&entry.conv.Messages[i])
		entry.conv.Messages = append(entry.conv.Messages[:i], entry.conv.Messages[i+1:]...)
		s.resize(entry, -size)
		return nil
	}
	return ErrMessageNotFound
}

// evictIfNeeded drops least recently used conversations until the store fits. The most recently
// used conversation and conversations that are streaming are never evicted. s.mu must be held.
func (s *MemoryStore) evictIfNeeded() {
	for elem := s.lru.Back(); elem != nil && elem != s.lru.Front() && s.curBytes > s.maxBytes; {
		prev := elem.Prev()
		entry := elem.Value.(*cacheEntry)
		if !entry.conv.Streaming {
			s.lru.Remove(elem)
			delete(s.cache, entry.conv.ID)
			s.curBytes -= entry.bytes
		}
		elem = prev
	}
}

func copyMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// Title returns a conversation title for its first user message
func Title(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= titleLen {
		return text
	}
	return string(r[:titleLen]) + "..."
}
