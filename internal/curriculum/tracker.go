package curriculum

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is a topic's derived learning state.
type Status string

const (
	StatusNotStarted Status = "notStarted"
	StatusInProgress Status = "inProgress"
	StatusCompleted  Status = "completed"
	// StatusReviewing is set by external collaborators; DeriveStatus never returns it.
	StatusReviewing Status = "reviewing"
)

// CompletionThreshold is the mastery at which a studied topic counts as completed.
const CompletionThreshold = 0.8

// DeriveStatus computes a topic's status from its mastery and progress.
func DeriveStatus(t *Topic) Status {
	p := t.Progress
	switch {
	case p == nil:
		return StatusNotStarted
	case t.Mastery >= CompletionThreshold && p.TimeSpent > 0:
		return StatusCompleted
	case p.TimeSpent > 0:
		return StatusInProgress
	default:
		return StatusNotStarted
	}
}

// AverageQuizScore is the mean of recorded scores, 0 when there are none.
func (p *TopicProgress) AverageQuizScore() float64 {
	if p == nil || len(p.QuizScores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range p.QuizScores {
		sum += s
	}
	return sum / float64(len(p.QuizScores))
}

// Tracker mutates topic progress and persists each change.
// A change is applied to the caller's topic only after the store accepts it.
type Tracker struct {
	store  Store
	events EventLogger
	now    func() time.Time
	mu     sync.Mutex
}

// NewTracker creates a tracker. A nil store keeps changes in memory only.
func NewTracker(store Store, events EventLogger) *Tracker {
	if events == nil {
		events = NopEventLogger{}
	}
	return &Tracker{
		store:  store,
		events: events,
		now:    time.Now,
	}
}

// CreateProgress ensures t has a progress record and returns it.
func (tr *Tracker) CreateProgress(ctx context.Context, t *Topic) (*TopicProgress, error) {
	if err := tr.update(ctx, t, func(*Topic) {}); err != nil {
		return nil, err
	}
	return t.Progress, nil
}

// AddTime adds study time. Negative durations are ignored so time never decreases.
func (tr *Tracker) AddTime(ctx context.Context, t *Topic, seconds float64) error {
	return tr.update(ctx, t, func(next *Topic) {
		if seconds > 0 && !math.IsInf(seconds, 0) {
			next.Progress.TimeSpent += seconds
		}
	})
}

// SetMastery stores level clamped to [0, 1].
func (tr *Tracker) SetMastery(ctx context.Context, t *Topic, level float64) error {
	return tr.update(ctx, t, func(next *Topic) {
		next.Mastery = clamp01(level)
	})
}

// MarkCompleted raises mastery to at least the completion threshold. It never lowers it.
func (tr *Tracker) MarkCompleted(ctx context.Context, t *Topic, level float64) error {
	err := tr.update(ctx, t, func(next *Topic) {
		next.Mastery = math.Max(next.Mastery, math.Max(clamp01(level), CompletionThreshold))
	})
	if err != nil {
		return err
	}
	logEvent(tr.events, Event{
		CurriculumID: t.CurriculumID,
		TopicID:      t.ID,
		EventType:    EventTopicCompleted,
		Data:         map[string]any{"mastery": t.Mastery},
	})
	return nil
}

// RecordQuizScore appends score clamped to [0, 1].
func (tr *Tracker) RecordQuizScore(ctx context.Context, t *Topic, score float64) error {
	score = clamp01(score)
	err := tr.update(ctx, t, func(next *Topic) {
		next.Progress.QuizScores = append(next.Progress.QuizScores, score)
	})
	if err != nil {
		return err
	}
	logEvent(tr.events, Event{
		CurriculumID: t.CurriculumID,
		TopicID:      t.ID,
		EventType:    EventQuizRecorded,
		Data: map[string]any{
			"score":   score,
			"average": t.Progress.AverageQuizScore(),
		},
	})
	return nil
}

func (tr *Tracker) update(ctx context.Context, t *Topic, fn func(next *Topic)) error {
	if t == nil {
		return ErrTopicNotFound
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()

	next := cloneTopic(t)
	if next.Progress == nil {
		next.Progress = &TopicProgress{ID: uuid.NewString(), TopicID: t.ID}
	}
	fn(next)
	next.Progress.LastAccessed = tr.now().UTC()

	if tr.store != nil {
		if err := tr.store.SaveTopic(ctx, next); err != nil {
			return fmt.Errorf("%w: %w", ErrSave, err)
		}
	}
	*t = *next
	return nil
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
