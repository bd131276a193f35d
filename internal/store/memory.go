// Package store: in-memory implementation used for tests and for running
// without a configured database.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/caredesk/caredesk/internal/models"
)

// InMemoryStore keeps all records in process memory behind a mutex.
type InMemoryStore struct {
	mu            sync.RWMutex
	users         map[string]models.User
	conversations map[string]models.Conversation
	messages      []models.Message
	orders        map[string]models.Order
	knowledge     []models.KnowledgeEntry
	events        []models.BehaviorEvent
	nextEventID   int64
	prompts       map[string]models.ProactivePrompt
	products      []models.Product
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:         make(map[string]models.User),
		conversations: make(map[string]models.Conversation),
		orders:        make(map[string]models.Order),
		prompts:       make(map[string]models.ProactivePrompt),
		nextEventID:   1,
	}
}

func (s *InMemoryStore) GetUser(id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}

func (s *InMemoryStore) SaveUser(u models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

func (s *InMemoryStore) CreateConversation(c models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[c.ID] = c
	return nil
}

func (s *InMemoryStore) GetConversation(id string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.conversations[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (s *InMemoryStore) MarkConversationEscalated(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.conversations[id]; ok {
		c.Escalated = true
		s.conversations[id] = c
	}
	return nil
}

func (s *InMemoryStore) ListEscalations(limit int) ([]models.EscalationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var escalated []models.Conversation
	for _, c := range s.conversations {
		if c.Escalated {
			escalated = append(escalated, c)
		}
	}
	sort.Slice(escalated, func(i, j int) bool {
		return escalated[i].CreatedAt.After(escalated[j].CreatedAt)
	})
	if limit > 0 && len(escalated) > limit {
		escalated = escalated[:limit]
	}
	summaries := make([]models.EscalationSummary, 0, len(escalated))
	for _, c := range escalated {
		last := ""
		for _, m := range s.messages {
			if m.ConversationID == c.ID {
				last = m.Content
			}
		}
		summaries = append(summaries, models.EscalationSummary{
			ID:          c.ID,
			Escalated:   c.Escalated,
			CreatedAt:   c.CreatedAt,
			LastMessage: last,
		})
	}
	return summaries, nil
}

func (s *InMemoryStore) AddMessage(m models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
	return nil
}

func (s *InMemoryStore) GetMessages(conversationID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Message
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	// Stable sort keeps insertion order for equal timestamps.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) SaveOrder(o models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
	return nil
}

func (s *InMemoryStore) GetOrder(id string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if o, ok := s.orders[id]; ok {
		return &o, nil
	}
	return nil, nil
}

func (s *InMemoryStore) ListRecentOrders(userID string, limit int) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) AddKnowledgeEntry(e models.KnowledgeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.knowledge = append(s.knowledge, e)
	return nil
}

func (s *InMemoryStore) GetKnowledgeEntries() ([]models.KnowledgeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.KnowledgeEntry, len(s.knowledge))
	copy(out, s.knowledge)
	return out, nil
}

func (s *InMemoryStore) AddBehaviorEvent(e models.BehaviorEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.nextEventID
	s.nextEventID++
	s.events = append(s.events, e)
	return nil
}

func (s *InMemoryStore) GetBehaviorEventsSince(userID string, since time.Time, limit int) ([]models.BehaviorEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.BehaviorEvent
	for _, e := range s.events {
		if e.UserID == userID && !e.CreatedAt.Before(since) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) DeleteBehaviorEventsBefore(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.events[:0]
	var deleted int64
	for _, e := range s.events {
		if e.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	s.events = kept
	return deleted, nil
}

func (s *InMemoryStore) AddProactivePrompt(p models.ProactivePrompt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts[p.ID] = p
	return nil
}

func (s *InMemoryStore) GetProactivePrompt(id string) (*models.ProactivePrompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.prompts[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (s *InMemoryStore) GetLatestPromptSince(userID string, classification models.Classification, since time.Time) (*models.ProactivePrompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.ProactivePrompt
	for id := range s.prompts {
		p := s.prompts[id]
		if p.UserID != userID || p.Classification != classification || p.CreatedAt.Before(since) {
			continue
		}
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
			cp := p
			latest = &cp
		}
	}
	return latest, nil
}

func (s *InMemoryStore) SetPromptEngagement(promptID string, engaged bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.prompts[promptID]; ok {
		p.Engaged = &engaged
		s.prompts[promptID] = p
	}
	return nil
}

func (s *InMemoryStore) AddProduct(p models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.products {
		if existing.SKU == p.SKU {
			s.products[i] = p
			return nil
		}
	}
	s.products = append(s.products, p)
	return nil
}

func (s *InMemoryStore) ListProducts(limit int) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Product, len(s.products))
	copy(out, s.products)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
