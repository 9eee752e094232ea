// Package curriculum turns imported UMCF documents into an ordered topic graph,
// tracks learner progress per topic and assembles token-budgeted context for
// the tutoring model.
package curriculum

import (
	"encoding/json"
	"time"
)

// Curriculum owns an ordered list of topics. Deleting it deletes everything below it.
type Curriculum struct {
	ID        string
	SourceID  string
	Name      string
	Summary   string
	CreatedAt time.Time
	UpdatedAt time.Time
	Topics    []*Topic
}

// Topic is one flattened content node.
type Topic struct {
	ID           string
	CurriculumID string
	SourceID     string
	Title        string
	Outline      string
	Objectives   []string
	OrderIndex   int
	Depth        DepthLevel
	Mastery      float64
	Progress     *TopicProgress
	Documents    []*Document
	Assets       []*VisualAsset
}

// DocumentType is the source kind of a document.
type DocumentType string

const (
	DocumentPDF        DocumentType = "pdf"
	DocumentText       DocumentType = "text"
	DocumentMarkdown   DocumentType = "markdown"
	DocumentTranscript DocumentType = "transcript"
)

// Document is reference material attached to a topic.
type Document struct {
	ID         string
	TopicID    string
	Title      string
	Type       DocumentType
	Content    string
	Summary    string
	SourcePath string
	// Payload holds structured side data, e.g. transcript segments with speaking notes.
	Payload json.RawMessage
	Chunks  []DocumentChunk
}

// DocumentChunk is a word-aligned slice of a document with its embedding.
type DocumentChunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"documentId"`
	Index      int       `json:"index"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"embedding,omitempty"`
	Page       *int      `json:"page,omitempty"`
}

// TopicProgress is a learner's record for one topic.
type TopicProgress struct {
	ID           string
	TopicID      string
	TimeSpent    float64 // seconds
	LastAccessed time.Time
	QuizScores   []float64
}

// AlwaysVisible marks an asset with no segment window.
const AlwaysVisible = -1

// VisualAsset is an image, diagram or formula shown alongside a topic.
type VisualAsset struct {
	ID           string
	TopicID      string
	AssetID      string
	Kind         string
	URL          string
	LocalPath    string
	Title        string
	Caption      string
	AltText      string
	Description  string
	Latex        string
	MimeType     string
	StartSegment int
	EndSegment   int
	DisplayMode  string
	Keywords     []string
}

// IsAlwaysVisible reports whether the asset carries the no-window sentinel.
func (a *VisualAsset) IsAlwaysVisible() bool {
	return a.StartSegment == AlwaysVisible && a.EndSegment == AlwaysVisible
}

// VisibleAt reports whether the asset should be shown while segment is playing.
func (a *VisualAsset) VisibleAt(segment int) bool {
	if a.IsAlwaysVisible() {
		return true
	}
	return segment >= a.StartSegment && segment < a.EndSegment
}

// TopicByID finds a topic in the curriculum.
func (c *Curriculum) TopicByID(id string) (*Topic, int, bool) {
	for i, t := range c.Topics {
		if t.ID == id {
			return t, i, true
		}
	}
	return nil, -1, false
}

func cloneCurriculum(c *Curriculum) *Curriculum {
	if c == nil {
		return nil
	}
	out := *c
	out.Topics = make([]*Topic, len(c.Topics))
	for i, t := range c.Topics {
		out.Topics[i] = cloneTopic(t)
	}
	return &out
}

func cloneTopic(t *Topic) *Topic {
	if t == nil {
		return nil
	}
	out := *t
	out.Objectives = append([]string(nil), t.Objectives...)
	if t.Progress != nil {
		p := *t.Progress
		p.QuizScores = append([]float64(nil), t.Progress.QuizScores...)
		out.Progress = &p
	}
	out.Documents = make([]*Document, len(t.Documents))
	for i, d := range t.Documents {
		out.Documents[i] = cloneDocument(d)
	}
	out.Assets = make([]*VisualAsset, len(t.Assets))
	for i, a := range t.Assets {
		c := *a
		c.Keywords = append([]string(nil), a.Keywords...)
		out.Assets[i] = &c
	}
	return &out
}

func cloneDocument(d *Document) *Document {
	out := *d
	out.Payload = append(json.RawMessage(nil), d.Payload...)
	out.Chunks = make([]DocumentChunk, len(d.Chunks))
	for i, c := range d.Chunks {
		c.Embedding = append([]float32(nil), c.Embedding...)
		if c.Page != nil {
			p := *c.Page
			c.Page = &p
		}
		out.Chunks[i] = c
	}
	return &out
}
