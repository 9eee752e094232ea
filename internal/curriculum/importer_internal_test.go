package curriculum

import (
	"testing"

	"github.com/sirfifer/voicelearn-ios-sub011/internal/umcf"
)

func deepDocument() *umcf.Document {
	return &umcf.Document{
		FormatIdentifier: umcf.FormatIdentifier,
		Title:            "Waves",
		Content: []umcf.ContentNode{{
			Title:              "Unit",
			Type:               "module",
			LearningObjectives: []umcf.LearningObjective{{Statement: "top"}},
			Children: []umcf.ContentNode{{
				Title:              "Oscillation",
				Type:               "topic",
				LearningObjectives: []umcf.LearningObjective{{Statement: "middle"}},
				Children: []umcf.ContentNode{{
					Title:              "Damping",
					Type:               "subtopic",
					LearningObjectives: []umcf.LearningObjective{{Statement: "leaf"}},
				}},
			}},
		}},
	}
}

func TestFlatten_ObjectivesFromImmediateParentOnly(t *testing.T) {
	next, topics := flatten(deepDocument().Content, nil, "cur", 0)
	if next != 2 || len(topics) != 2 {
		t.Fatalf("flatten() = %d topics, next %d", len(topics), next)
	}
	if got := topics[0].Objectives; len(got) != 2 || got[0] != "middle" || got[1] != "top" {
		t.Errorf("topic objectives = %v, want [middle top]", got)
	}
	last := topics[1]
	if len(last.Objectives) != 2 || last.Objectives[0] != "leaf" || last.Objectives[1] != "middle" {
		t.Errorf("leaf objectives = %v, want [leaf middle]", last.Objectives)
	}
}

func TestFlatten_SourceIDFallsBackToTitle(t *testing.T) {
	c, err := NewImporter(NewMemoryStore()).Build(deepDocument())
	if err != nil {
		t.Fatal(err)
	}
	if c.SourceID != "Waves" {
		t.Errorf("SourceID = %q, want the title", c.SourceID)
	}
	for _, topic := range c.Topics {
		if topic.CurriculumID != c.ID {
			t.Errorf("topic %q not linked to curriculum", topic.Title)
		}
	}
}

func TestBriefSection_LimitsObjectives(t *testing.T) {
	got := briefSection(HeaderUpcoming, &Topic{Title: "Waves", Objectives: []string{"a", "b", "c"}})
	want := HeaderUpcoming + "\nTopic: Waves\nObjectives: a; b"
	if got != want {
		t.Errorf("briefSection() = %q, want %q", got, want)
	}
}
