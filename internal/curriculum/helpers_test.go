package curriculum_test

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirfifer/voicelearn-ios-sub011/internal/curriculum"
	"github.com/sirfifer/voicelearn-ios-sub011/internal/umcf"
)

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func objectives(statements ...string) []umcf.LearningObjective {
	out := make([]umcf.LearningObjective, len(statements))
	for i, s := range statements {
		out[i] = umcf.LearningObjective{Statement: s}
	}
	return out
}

// scenarioDocument is a grouping root with two topics, the first of which has a subtopic.
func scenarioDocument() *umcf.Document {
	pause := 0.5
	return &umcf.Document{
		FormatIdentifier: umcf.FormatIdentifier,
		ID:               umcf.Identifier{Value: "physics-101"},
		Title:            "Physics 101",
		Description:      "Introductory mechanics",
		Content: []umcf.ContentNode{
			{
				ID:                 umcf.Identifier{Value: "root"},
				Title:              "Mechanics",
				Type:               "module",
				LearningObjectives: objectives("A"),
				Children: []umcf.ContentNode{
					{
						ID:                 umcf.Identifier{Value: "kinematics"},
						Title:              "Kinematics",
						Type:               "topic",
						Description:        "Motion without forces.",
						LearningObjectives: objectives("B"),
						Children: []umcf.ContentNode{
							{
								ID:                 umcf.Identifier{Value: "velocity"},
								Title:              "Velocity",
								Type:               "subtopic",
								LearningObjectives: objectives("B_child"),
								TutoringConfig:     &umcf.TutoringConfig{ContentDepth: "Advanced"},
								Transcript: &umcf.Transcript{
									Segments: []umcf.TranscriptSegment{
										{ID: "s0", Content: "Velocity is displacement over time.",
											SpeakingNotes: &umcf.SpeakingNotes{Pace: "slow", PauseAfter: &pause}},
										{ID: "s1", Content: "It has a direction."},
									},
									PronunciationGuide: map[string]umcf.PronunciationEntry{
										"velocity": {IPA: "vəˈlɒsɪti"},
									},
								},
								Media: &umcf.MediaCollection{
									Embedded: []umcf.MediaAsset{{
										ID:            "img/vector.png",
										Type:          "diagram",
										Alt:           "A velocity vector",
										SegmentTiming: &umcf.SegmentTiming{StartSegment: 1, EndSegment: 3, DisplayMode: "persistent"},
									}},
									Reference: []umcf.MediaAsset{{ID: "ref-chart", Type: "chart", URL: "https://example.com/chart.png"}},
								},
							},
						},
					},
					{
						ID:                 umcf.Identifier{Value: "dynamics"},
						Title:              "Dynamics",
						Type:               "topic",
						LearningObjectives: objectives("C"),
					},
				},
			},
		},
	}
}

// keywordEmbedder maps text onto a fixed vocabulary so similarity is predictable.
type keywordEmbedder struct {
	vocab []string
	err   error
	calls int
}

func newKeywordEmbedder(vocab ...string) *keywordEmbedder {
	return &keywordEmbedder{vocab: vocab}
}

func (k *keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	k.calls++
	if k.err != nil {
		return nil, k.err
	}
	lower := strings.ToLower(text)
	v := make([]float32, len(k.vocab))
	for i, w := range k.vocab {
		v[i] = float32(strings.Count(lower, w))
	}
	return v, nil
}

// failingStore wraps a store and fails selected writes.
type failingStore struct {
	curriculum.Store
	failCommit bool
	failSave   bool
}

var errStoreDown = errors.New("store unavailable")

func (s *failingStore) CommitCurriculum(ctx context.Context, c *curriculum.Curriculum, replace bool) error {
	if s.failCommit {
		return errStoreDown
	}
	return s.Store.CommitCurriculum(ctx, c, replace)
}

func (s *failingStore) SaveTopic(ctx context.Context, t *curriculum.Topic) error {
	if s.failSave {
		return errStoreDown
	}
	return s.Store.SaveTopic(ctx, t)
}
