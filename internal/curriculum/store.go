package curriculum

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Store persists curricula. Every method is all-or-nothing.
type Store interface {
	// CommitCurriculum inserts c with its topics, documents, assets and progress.
	// With replaceExisting, curricula sharing c.SourceID are deleted in the same transaction.
	CommitCurriculum(ctx context.Context, c *Curriculum, replaceExisting bool) error
	GetCurriculum(ctx context.Context, id string) (*Curriculum, error)
	// FindCurriculumBySourceID returns the most recently created match.
	FindCurriculumBySourceID(ctx context.Context, sourceID string) (*Curriculum, error)
	// ListCurricula returns curricula without their topics, newest first.
	ListCurricula(ctx context.Context) ([]*Curriculum, error)
	DeleteCurriculum(ctx context.Context, id string) error
	// SaveTopic updates a topic's mastery and replaces its progress, documents and assets.
	SaveTopic(ctx context.Context, t *Topic) error
}

// validateOrder checks that topic order indices are exactly 0..n-1 in slice order.
func validateOrder(c *Curriculum) error {
	for i, t := range c.Topics {
		if t.OrderIndex != i {
			return fmt.Errorf("%w: topic %q has index %d at position %d", ErrInvalidTopicOrder, t.Title, t.OrderIndex, i)
		}
	}
	return nil
}

func sortTopics(topics []*Topic) {
	sort.SliceStable(topics, func(i, j int) bool { return topics[i].OrderIndex < topics[j].OrderIndex })
}

// MemoryStore is an in-memory Store for tests and ephemeral sessions.
type MemoryStore struct {
	curricula map[string]*Curriculum
	mu        sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		curricula: make(map[string]*Curriculum),
	}
}

func (s *MemoryStore) CommitCurriculum(_ context.Context, c *Curriculum, replaceExisting bool) error {
	if err := validateOrder(c); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if replaceExisting {
		for id, existing := range s.curricula {
			if existing.SourceID == c.SourceID {
				delete(s.curricula, id)
			}
		}
	}
	s.curricula[c.ID] = cloneCurriculum(c)
	return nil
}

func (s *MemoryStore) GetCurriculum(_ context.Context, id string) (*Curriculum, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.curricula[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCurriculumNotFound, id)
	}
	return cloneCurriculum(c), nil
}

func (s *MemoryStore) FindCurriculumBySourceID(_ context.Context, sourceID string) (*Curriculum, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *Curriculum
	for _, c := range s.curricula {
		if c.SourceID != sourceID {
			continue
		}
		if found == nil || c.CreatedAt.After(found.CreatedAt) {
			found = c
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: source %s", ErrCurriculumNotFound, sourceID)
	}
	return cloneCurriculum(found), nil
}

func (s *MemoryStore) ListCurricula(_ context.Context) ([]*Curriculum, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Curriculum, 0, len(s.curricula))
	for _, c := range s.curricula {
		cp := *c
		cp.Topics = nil
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) DeleteCurriculum(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.curricula[id]; !ok {
		return fmt.Errorf("%w: %s", ErrCurriculumNotFound, id)
	}
	delete(s.curricula, id)
	return nil
}

func (s *MemoryStore) SaveTopic(_ context.Context, t *Topic) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.curricula[t.CurriculumID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCurriculumNotFound, t.CurriculumID)
	}
	_, i, ok := c.TopicByID(t.ID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrTopicNotFound, t.ID)
	}
	c.Topics[i] = cloneTopic(t)
	c.UpdatedAt = time.Now()
	return nil
}
