package curriculum

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EngineConfig holds dependencies for the curriculum engine.
type EngineConfig struct {
	Store    Store
	Embedder Embedder    // optional; retrieval returns nothing without one
	Events   EventLogger // optional
}

// Engine holds the active curriculum and topic cursor. All state changes go
// through its mutex; calls to the embedder are made without holding it.
type Engine struct {
	store    Store
	embedder Embedder
	tracker  *Tracker

	mu      sync.Mutex
	active  *Curriculum
	current int
}

// NewEngine creates a new curriculum engine.
func NewEngine(cfg EngineConfig) *Engine {
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	events := cfg.Events
	if events == nil {
		events = NopEventLogger{}
	}
	return &Engine{
		store:    store,
		embedder: cfg.Embedder,
		tracker:  NewTracker(store, events),
		current:  -1,
	}
}

// Activate loads a curriculum and points the cursor at its first topic.
func (e *Engine) Activate(ctx context.Context, curriculumID string) error {
	c, err := e.store.GetCurriculum(ctx, curriculumID)
	if err != nil {
		return fmt.Errorf("activate curriculum: %w", err)
	}
	sortTopics(c.Topics)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.active = c
	e.current = -1
	if len(c.Topics) > 0 {
		e.current = 0
	}

	slog.Info("curriculum activated", "curriculum_id", c.ID, "topics", len(c.Topics))
	return nil
}

// Active returns a copy of the active curriculum.
func (e *Engine) Active() (*Curriculum, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return nil, false
	}
	return cloneCurriculum(e.active), true
}

// Topics returns copies of the active curriculum's topics in order.
func (e *Engine) Topics() []*Topic {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return nil
	}
	out := make([]*Topic, len(e.active.Topics))
	for i, t := range e.active.Topics {
		out[i] = cloneTopic(t)
	}
	return out
}

// CurrentTopic returns a copy of the topic under the cursor.
func (e *Engine) CurrentTopic() (*Topic, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.topicAt(e.current)
}

// SelectTopic moves the cursor to the topic with the given id.
func (e *Engine) SelectTopic(topicID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active == nil {
		return ErrNoActiveCurriculum
	}
	_, i, ok := e.active.TopicByID(topicID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrTopicNotFound, topicID)
	}
	e.current = i
	return nil
}

// NextTopic advances the cursor and returns the new current topic.
// At the end of the list it returns false and the cursor stays put.
func (e *Engine) NextTopic() (*Topic, bool) {
	return e.step(1)
}

// PreviousTopic moves the cursor back. At the start it returns false.
func (e *Engine) PreviousTopic() (*Topic, bool) {
	return e.step(-1)
}

func (e *Engine) step(delta int) (*Topic, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active == nil || e.current < 0 {
		return nil, false
	}
	t, ok := e.topicAt(e.current + delta)
	if ok {
		e.current += delta
	}
	return t, ok
}

// topicAt must be called with e.mu held.
func (e *Engine) topicAt(i int) (*Topic, bool) {
	if e.active == nil || i < 0 || i >= len(e.active.Topics) {
		return nil, false
	}
	return cloneTopic(e.active.Topics[i]), true
}

// SuggestNext returns the first topic in order that is not completed.
func (e *Engine) SuggestNext() (*Topic, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active == nil {
		return nil, false
	}
	for _, t := range e.active.Topics {
		if DeriveStatus(t) != StatusCompleted {
			return cloneTopic(t), true
		}
	}
	return nil, false
}

// TopicStatus derives the status of a topic in the active curriculum.
func (e *Engine) TopicStatus(topicID string) (Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.findLocked(topicID)
	if err != nil {
		return "", err
	}
	return DeriveStatus(t), nil
}

// AddStudyTime records seconds spent on a topic.
func (e *Engine) AddStudyTime(ctx context.Context, topicID string, seconds float64) error {
	return e.withTopic(topicID, func(t *Topic) error {
		return e.tracker.AddTime(ctx, t, seconds)
	})
}

// SetMastery stores a topic's mastery.
func (e *Engine) SetMastery(ctx context.Context, topicID string, level float64) error {
	return e.withTopic(topicID, func(t *Topic) error {
		return e.tracker.SetMastery(ctx, t, level)
	})
}

// CompleteTopic marks a topic completed at level (raised to the completion threshold).
func (e *Engine) CompleteTopic(ctx context.Context, topicID string, level float64) error {
	return e.withTopic(topicID, func(t *Topic) error {
		return e.tracker.MarkCompleted(ctx, t, level)
	})
}

// RecordQuizScore appends a quiz result to a topic's progress.
func (e *Engine) RecordQuizScore(ctx context.Context, topicID string, score float64) error {
	return e.withTopic(topicID, func(t *Topic) error {
		return e.tracker.RecordQuizScore(ctx, t, score)
	})
}

// AttachDocument adds or replaces a processed document on a topic and persists it.
func (e *Engine) AttachDocument(ctx context.Context, topicID string, doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", ErrDocumentNotFound)
	}
	return e.withTopic(topicID, func(t *Topic) error {
		next := cloneTopic(t)
		d := cloneDocument(doc)
		d.TopicID = t.ID

		replaced := false
		for i, existing := range next.Documents {
			if existing.ID == d.ID {
				next.Documents[i] = d
				replaced = true
				break
			}
		}
		if !replaced {
			next.Documents = append(next.Documents, d)
		}

		if err := e.store.SaveTopic(ctx, next); err != nil {
			return fmt.Errorf("%w: %w", ErrSave, err)
		}
		*t = *next

		slog.Debug("document attached", "topic_id", t.ID, "document_id", d.ID, "chunks", len(d.Chunks))
		return nil
	})
}

func (e *Engine) withTopic(topicID string, fn func(t *Topic) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.findLocked(topicID)
	if err != nil {
		return err
	}
	return fn(t)
}

// findLocked must be called with e.mu held.
func (e *Engine) findLocked(topicID string) (*Topic, error) {
	if e.active == nil {
		return nil, ErrNoActiveCurriculum
	}
	t, _, ok := e.active.TopicByID(topicID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTopicNotFound, topicID)
	}
	return t, nil
}
