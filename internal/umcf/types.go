// Package umcf reads and writes UMCF curriculum documents in their plain (.umcf) and
// compressed (.umcfz) encodings, including the multi-asset archive layout.
package umcf

import (
	"encoding/json"
	"strings"
)

// FormatIdentifier is the value of the top-level formatIdentifier field.
const FormatIdentifier = "umcf"

// Document is a hierarchical UMCF curriculum document.
type Document struct {
	FormatIdentifier string        `json:"formatIdentifier"`
	FormatVersion    string        `json:"formatVersion,omitempty"`
	ID               Identifier    `json:"id"`
	Title            string        `json:"title"`
	Description      string        `json:"description,omitempty"`
	Version          *Version      `json:"version,omitempty"`
	Educational      *Educational  `json:"educational,omitempty"`
	Content          []ContentNode `json:"content"`
	Glossary         *Glossary     `json:"glossary,omitempty"`

	// Extra holds top-level members not modelled above, such as metadata.
	Extra map[string]json.RawMessage `json:"-"`
}

// Identifier is a UMCF id. It decodes from either {"value": "..."} or a bare string.
type Identifier struct {
	Value   string `json:"value"`
	Catalog string `json:"catalog,omitempty"`
}

// UnmarshalJSON accepts both the object and the bare-string forms.
func (id *Identifier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		id.Value = s
		id.Catalog = ""
		return nil
	}
	type plain Identifier
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*id = Identifier(p)
	return nil
}

// Version holds the document version number.
type Version struct {
	Number string `json:"number"`
}

// Educational holds audience metadata.
type Educational struct {
	Difficulty          string `json:"difficulty,omitempty"`
	TypicalAgeRange     string `json:"typicalAgeRange,omitempty"`
	TypicalLearningTime string `json:"typicalLearningTime,omitempty"`
}

// Glossary lists terms defined by the curriculum.
type Glossary struct {
	Terms []GlossaryTerm `json:"terms,omitempty"`
}

// GlossaryTerm is one glossary entry.
type GlossaryTerm struct {
	Term          string `json:"term"`
	Definition    string `json:"definition"`
	Pronunciation string `json:"pronunciation,omitempty"`
}

// Node kinds that produce topics on import. Other kinds only group children.
const (
	NodeTopic    = "topic"
	NodeSubtopic = "subtopic"
	NodeLesson   = "lesson"
)

// ContentNode is one node of the content tree.
type ContentNode struct {
	ID                 Identifier          `json:"id"`
	Title              string              `json:"title"`
	Type               string              `json:"type,omitempty"`
	OrderIndex         *int                `json:"orderIndex,omitempty"`
	Description        string              `json:"description,omitempty"`
	LearningObjectives []LearningObjective `json:"learningObjectives,omitempty"`
	TimeEstimates      map[string]string   `json:"timeEstimates,omitempty"`
	TutoringConfig     *TutoringConfig     `json:"tutoringConfig,omitempty"`
	Transcript         *Transcript         `json:"transcript,omitempty"`
	Media              *MediaCollection    `json:"media,omitempty"`
	Children           []ContentNode       `json:"children,omitempty"`

	// Extra holds node members not modelled above, such as assessments and extensions.
	Extra map[string]json.RawMessage `json:"-"`
}

// ProducesTopic reports whether the node kind maps to a Topic record.
func (n ContentNode) ProducesTopic() bool {
	switch strings.ToLower(strings.TrimSpace(n.Type)) {
	case NodeTopic, NodeSubtopic, NodeLesson:
		return true
	}
	return false
}

// ObjectiveStatements returns the non-empty objective statements in order.
func (n ContentNode) ObjectiveStatements() []string {
	out := make([]string, 0, len(n.LearningObjectives))
	for _, o := range n.LearningObjectives {
		if s := strings.TrimSpace(o.Statement); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// LearningObjective is a single objective statement.
type LearningObjective struct {
	ID         *Identifier `json:"id,omitempty"`
	Statement  string      `json:"statement"`
	Text       string      `json:"text,omitempty"`
	BloomLevel string      `json:"bloomLevel,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON accepts the object form and a bare statement string. Enriched
// documents name the statement "text"; it fills Statement when that is empty.
func (o *LearningObjective) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*o = LearningObjective{Statement: s}
		return nil
	}
	type plain LearningObjective
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := unknownMembers(data, objectiveFields)
	if err != nil {
		return err
	}
	p.Extra = extra
	if strings.TrimSpace(p.Statement) == "" {
		p.Statement = p.Text
	}
	*o = LearningObjective(p)
	return nil
}

// TutoringConfig carries per-node tutoring hints.
type TutoringConfig struct {
	ContentDepth   string `json:"contentDepth,omitempty"`
	InteractionTip string `json:"interactionTip,omitempty"`
}

// Transcript is the spoken content of a node.
type Transcript struct {
	Segments           []TranscriptSegment           `json:"segments,omitempty"`
	PronunciationGuide map[string]PronunciationEntry `json:"pronunciationGuide,omitempty"`
	TotalDuration      string                        `json:"totalDuration,omitempty"`
}

// Text joins the segment contents with blank lines.
func (t *Transcript) Text() string {
	if t == nil {
		return ""
	}
	parts := make([]string, 0, len(t.Segments))
	for _, s := range t.Segments {
		if c := strings.TrimSpace(s.Content); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, "\n\n")
}

// TranscriptSegment is one spoken segment.
type TranscriptSegment struct {
	ID            string         `json:"id"`
	Type          string         `json:"type,omitempty"`
	Content       string         `json:"content"`
	SpeakingNotes *SpeakingNotes `json:"speakingNotes,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// SpeakingNotes are pacing and tone annotations for text-to-speech.
type SpeakingNotes struct {
	Pace          string   `json:"pace,omitempty"`
	EmotionalTone string   `json:"emotionalTone,omitempty"`
	Emphasis      []string `json:"emphasis,omitempty"`
	PauseAfter    *float64 `json:"pauseAfter,omitempty"`
}

// PronunciationEntry describes how to say a term.
type PronunciationEntry struct {
	IPA        string `json:"ipa,omitempty"`
	Respelling string `json:"respelling,omitempty"`
	Language   string `json:"language,omitempty"`
}

// MediaCollection groups a node's media assets.
type MediaCollection struct {
	Embedded  []MediaAsset `json:"embedded,omitempty"`
	Reference []MediaAsset `json:"reference,omitempty"`
}

// MediaAsset is an embedded or reference visual asset.
type MediaAsset struct {
	ID               string         `json:"id"`
	Type             string         `json:"type,omitempty"`
	URL              string         `json:"url,omitempty"`
	LocalPath        string         `json:"localPath,omitempty"`
	Title            string         `json:"title,omitempty"`
	Alt              string         `json:"alt,omitempty"`
	Caption          string         `json:"caption,omitempty"`
	AudioDescription string         `json:"audioDescription,omitempty"`
	Latex            string         `json:"latex,omitempty"`
	MimeType         string         `json:"mimeType,omitempty"`
	SegmentTiming    *SegmentTiming `json:"segmentTiming,omitempty"`
	Keywords         []string       `json:"keywords,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// SegmentTiming is the [start, end) transcript segment window an asset is shown for.
type SegmentTiming struct {
	StartSegment int    `json:"startSegment"`
	EndSegment   int    `json:"endSegment"`
	DisplayMode  string `json:"displayMode,omitempty"`
}
