package curriculum_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/sirfifer/voicelearn-ios-sub011/internal/curriculum"
)

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name    string
		mastery float64
		prog    *curriculum.TopicProgress
		want    curriculum.Status
	}{
		{"no progress", 0.9, nil, curriculum.StatusNotStarted},
		{"progress without time", 0.9, &curriculum.TopicProgress{}, curriculum.StatusNotStarted},
		{"studying", 0.3, &curriculum.TopicProgress{TimeSpent: 60}, curriculum.StatusInProgress},
		{"just below threshold", 0.79, &curriculum.TopicProgress{TimeSpent: 60}, curriculum.StatusInProgress},
		{"at threshold", 0.8, &curriculum.TopicProgress{TimeSpent: 60}, curriculum.StatusCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topic := &curriculum.Topic{Mastery: tt.mastery, Progress: tt.prog}
			if got := curriculum.DeriveStatus(topic); got != tt.want {
				t.Errorf("DeriveStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAverageQuizScore(t *testing.T) {
	var nilProgress *curriculum.TopicProgress
	if got := nilProgress.AverageQuizScore(); got != 0 {
		t.Errorf("nil progress average = %v", got)
	}
	p := &curriculum.TopicProgress{QuizScores: []float64{0.5, 1, 0.75}}
	if got := p.AverageQuizScore(); got != 0.75 {
		t.Errorf("AverageQuizScore() = %v, want 0.75", got)
	}
}

func TestTracker_SetMasteryClamps(t *testing.T) {
	tr := curriculum.NewTracker(nil, nil)
	tests := []struct {
		in, want float64
	}{
		{-0.5, 0},
		{0.42, 0.42},
		{1.5, 1},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		topic := &curriculum.Topic{ID: "t"}
		if err := tr.SetMastery(context.Background(), topic, tt.in); err != nil {
			t.Fatalf("SetMastery(%v) error = %v", tt.in, err)
		}
		if topic.Mastery != tt.want {
			t.Errorf("SetMastery(%v) mastery = %v, want %v", tt.in, topic.Mastery, tt.want)
		}
		if topic.Progress == nil || topic.Progress.LastAccessed.IsZero() {
			t.Errorf("SetMastery(%v) did not touch progress", tt.in)
		}
	}
}

func TestTracker_MarkCompleted(t *testing.T) {
	tests := []struct {
		name         string
		prior, level float64
		want         float64
	}{
		{"raised to threshold", 0.2, 0.5, 0.8},
		{"level above threshold", 0.2, 0.95, 0.95},
		{"never lowers", 0.9, 0.5, 0.9},
		{"clamped", 0, 3, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := curriculum.NewMemoryEventLogger()
			tr := curriculum.NewTracker(nil, events)
			topic := &curriculum.Topic{ID: "t", CurriculumID: "c", Mastery: tt.prior}

			if err := tr.MarkCompleted(context.Background(), topic, tt.level); err != nil {
				t.Fatalf("MarkCompleted() error = %v", err)
			}
			if topic.Mastery != tt.want {
				t.Errorf("Mastery = %v, want %v", topic.Mastery, tt.want)
			}
			got := events.Events()
			if len(got) != 1 || got[0].EventType != curriculum.EventTopicCompleted || got[0].TopicID != "t" {
				t.Errorf("events = %+v", got)
			}
		})
	}
}

func TestTracker_AddTime(t *testing.T) {
	ctx := context.Background()
	tr := curriculum.NewTracker(nil, nil)
	topic := &curriculum.Topic{ID: "t"}

	for _, s := range []float64{30, -10, 0, math.Inf(1), 15} {
		if err := tr.AddTime(ctx, topic, s); err != nil {
			t.Fatalf("AddTime(%v) error = %v", s, err)
		}
	}
	if topic.Progress.TimeSpent != 45 {
		t.Errorf("TimeSpent = %v, want 45", topic.Progress.TimeSpent)
	}
	if got := curriculum.DeriveStatus(topic); got != curriculum.StatusInProgress {
		t.Errorf("status = %q, want inProgress", got)
	}
}

func TestTracker_RecordQuizScore(t *testing.T) {
	ctx := context.Background()
	events := curriculum.NewMemoryEventLogger()
	tr := curriculum.NewTracker(nil, events)
	topic := &curriculum.Topic{ID: "t", CurriculumID: "c"}

	tr.RecordQuizScore(ctx, topic, 0.5)
	tr.RecordQuizScore(ctx, topic, 2)

	if got := topic.Progress.QuizScores; len(got) != 2 || got[1] != 1 {
		t.Errorf("QuizScores = %v, want [0.5 1]", got)
	}
	got := events.Events()
	if len(got) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(got))
	}
	if got[1].Data["average"] != 0.75 {
		t.Errorf("average = %v, want 0.75", got[1].Data["average"])
	}
}

func TestTracker_CreateProgressIsIdempotent(t *testing.T) {
	ctx := context.Background()
	tr := curriculum.NewTracker(nil, nil)
	topic := &curriculum.Topic{ID: "t"}

	first, err := tr.CreateProgress(ctx, topic)
	if err != nil {
		t.Fatalf("CreateProgress() error = %v", err)
	}
	second, _ := tr.CreateProgress(ctx, topic)
	if first.ID != second.ID {
		t.Errorf("progress id changed: %s -> %s", first.ID, second.ID)
	}
	if first.TopicID != "t" {
		t.Errorf("TopicID = %q", first.TopicID)
	}
}

func TestTracker_SaveFailureLeavesTopicUnchanged(t *testing.T) {
	ctx := context.Background()
	mem := curriculum.NewMemoryStore()
	c := fixtureCurriculum("cur-1", "physics", fixedTime)
	mem.CommitCurriculum(ctx, c, false)

	store := &failingStore{Store: mem, failSave: true}
	tr := curriculum.NewTracker(store, nil)
	topic := c.Topics[1]

	err := tr.SetMastery(ctx, topic, 0.7)
	if !errors.Is(err, curriculum.ErrSave) || !errors.Is(err, errStoreDown) {
		t.Fatalf("SetMastery() error = %v, want ErrSave wrapping the store error", err)
	}
	if topic.Mastery != 0 || topic.Progress != nil {
		t.Errorf("topic changed after failed save: mastery=%v progress=%+v", topic.Mastery, topic.Progress)
	}
}

func TestTracker_PersistsToStore(t *testing.T) {
	ctx := context.Background()
	store := curriculum.NewMemoryStore()
	c := fixtureCurriculum("cur-1", "physics", fixedTime)
	store.CommitCurriculum(ctx, c, false)

	tr := curriculum.NewTracker(store, nil)
	if err := tr.RecordQuizScore(ctx, c.Topics[1], 0.9); err != nil {
		t.Fatalf("RecordQuizScore() error = %v", err)
	}

	got, _ := store.GetCurriculum(ctx, "cur-1")
	p := got.Topics[1].Progress
	if p == nil || len(p.QuizScores) != 1 || p.QuizScores[0] != 0.9 {
		t.Errorf("stored progress = %+v", p)
	}
}
