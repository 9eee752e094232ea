package curriculum

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sirfifer/voicelearn-ios-sub011/internal/umcf"
)

// Importer flattens UMCF documents into curricula and commits them to a Store.
type Importer struct {
	store    Store
	codec    *umcf.Codec
	events   EventLogger
	assetDir string
	now      func() time.Time
}

// ImporterOption configures an Importer.
type ImporterOption func(*Importer)

// WithCodec sets the codec used by ImportFile.
func WithCodec(c *umcf.Codec) ImporterOption {
	return func(im *Importer) { im.codec = c }
}

// WithImportEvents sets the event logger.
func WithImportEvents(l EventLogger) ImporterOption {
	return func(im *Importer) { im.events = l }
}

// WithAssetDir sets where archive assets are extracted. Empty skips extraction.
func WithAssetDir(dir string) ImporterOption {
	return func(im *Importer) { im.assetDir = dir }
}

// NewImporter creates an importer writing to store.
func NewImporter(store Store, opts ...ImporterOption) *Importer {
	im := &Importer{
		store:  store,
		codec:  umcf.NewCodec(),
		events: NopEventLogger{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Import converts doc into a Curriculum and commits it atomically.
// With replaceExisting, curricula sharing the document's source id are deleted first.
func (im *Importer) Import(ctx context.Context, doc *umcf.Document, replaceExisting bool) (*Curriculum, error) {
	c, err := im.Build(doc)
	if err != nil {
		return nil, err
	}
	if err := im.commit(ctx, c, replaceExisting); err != nil {
		return nil, err
	}
	return c, nil
}

// ImportFile reads a .umcf or .umcfz file, extracts any bundled assets and imports it.
func (im *Importer) ImportFile(ctx context.Context, path string, replaceExisting bool) (*Curriculum, error) {
	pkg, err := im.codec.Read(path)
	if err != nil {
		return nil, err
	}

	c, err := im.Build(pkg.Document)
	if err != nil {
		return nil, err
	}

	var extractedDir string
	if len(pkg.Assets) > 0 {
		if im.assetDir == "" {
			slog.Warn("archive assets skipped, no asset directory configured", "path", path, "assets", len(pkg.Assets))
		} else {
			extractedDir = filepath.Join(im.assetDir, c.ID)
			paths, err := umcf.ExtractAssets(extractedDir, pkg.Assets)
			if err != nil {
				os.RemoveAll(extractedDir)
				return nil, err
			}
			linkAssets(c, paths)
		}
	}

	if err := im.commit(ctx, c, replaceExisting); err != nil {
		if extractedDir != "" {
			os.RemoveAll(extractedDir)
		}
		return nil, err
	}
	return c, nil
}

func (im *Importer) commit(ctx context.Context, c *Curriculum, replaceExisting bool) error {
	var replaced []string
	if replaceExisting {
		replaced = im.sharingSourceID(ctx, c)
	}
	if err := im.store.CommitCurriculum(ctx, c, replaceExisting); err != nil {
		return fmt.Errorf("%w: %w", ErrSave, err)
	}
	im.removeAssetDirs(replaced)

	slog.Info("curriculum imported",
		"curriculum_id", c.ID,
		"source_id", c.SourceID,
		"topics", len(c.Topics),
		"replace", replaceExisting,
	)
	logEvent(im.events, Event{
		CurriculumID: c.ID,
		EventType:    EventCurriculumImported,
		Data: map[string]any{
			"source_id": c.SourceID,
			"topics":    len(c.Topics),
			"replace":   replaceExisting,
		},
	})
	return nil
}

// sharingSourceID lists the stored curricula a replacing commit of c will delete.
// Only their asset directories need it, so it returns nothing without an asset dir.
func (im *Importer) sharingSourceID(ctx context.Context, c *Curriculum) []string {
	if im.assetDir == "" {
		return nil
	}
	list, err := im.store.ListCurricula(ctx)
	if err != nil {
		slog.Warn("cannot list curricula for asset cleanup", "source_id", c.SourceID, "error", err)
		return nil
	}
	var ids []string
	for _, old := range list {
		if old.SourceID == c.SourceID && old.ID != c.ID {
			ids = append(ids, old.ID)
		}
	}
	return ids
}

func (im *Importer) removeAssetDirs(curriculumIDs []string) {
	for _, id := range curriculumIDs {
		if id == "" || id == ".." || filepath.Base(id) != id {
			continue
		}
		dir := filepath.Join(im.assetDir, id)
		if err := os.RemoveAll(dir); err != nil {
			slog.Warn("replaced curriculum assets not removed", "curriculum_id", id, "dir", dir, "error", err)
			continue
		}
		slog.Debug("replaced curriculum assets removed", "curriculum_id", id, "dir", dir)
	}
}

// Build converts doc into an uncommitted Curriculum.
func (im *Importer) Build(doc *umcf.Document) (*Curriculum, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", umcf.ErrDecode)
	}
	if strings.TrimSpace(doc.Title) == "" {
		return nil, fmt.Errorf("%w: document has no title", umcf.ErrDecode)
	}

	now := im.now().UTC()
	c := &Curriculum{
		ID:        uuid.NewString(),
		SourceID:  doc.ID.Value,
		Name:      doc.Title,
		Summary:   doc.Description,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if c.SourceID == "" {
		c.SourceID = doc.Title
	}

	_, c.Topics = flatten(doc.Content, nil, c.ID, 0)
	return c, nil
}

// flatten walks nodes in pre-order. Qualifying nodes become topics numbered from
// next; each topic gets its own objectives followed by its immediate parent's.
// It returns the next unused order index along with the topics created.
func flatten(nodes []umcf.ContentNode, parentObjectives []string, curriculumID string, next int) (int, []*Topic) {
	var topics []*Topic
	for _, n := range nodes {
		own := n.ObjectiveStatements()
		if n.ProducesTopic() {
			objectives := make([]string, 0, len(own)+len(parentObjectives))
			objectives = append(objectives, own...)
			objectives = append(objectives, parentObjectives...)

			topics = append(topics, newTopic(n, curriculumID, next, objectives))
			next++
		}

		var children []*Topic
		next, children = flatten(n.Children, own, curriculumID, next)
		topics = append(topics, children...)
	}
	return next, topics
}

func newTopic(n umcf.ContentNode, curriculumID string, order int, objectives []string) *Topic {
	depth := DepthIntermediate
	if n.TutoringConfig != nil {
		if d, ok := ParseDepthLevel(n.TutoringConfig.ContentDepth); ok {
			depth = d
		}
	}

	t := &Topic{
		ID:           uuid.NewString(),
		CurriculumID: curriculumID,
		SourceID:     n.ID.Value,
		Title:        n.Title,
		Outline:      n.Description,
		Objectives:   objectives,
		OrderIndex:   order,
		Depth:        depth,
	}

	if n.Transcript != nil && len(n.Transcript.Segments) > 0 {
		if d, err := transcriptDocument(t, n.Transcript); err != nil {
			slog.Warn("transcript payload dropped", "topic", t.Title, "error", err)
		} else {
			t.Documents = append(t.Documents, d)
		}
	}

	if n.Media != nil {
		for _, m := range n.Media.Embedded {
			t.Assets = append(t.Assets, visualAsset(t.ID, m, "inline"))
		}
		for _, m := range n.Media.Reference {
			t.Assets = append(t.Assets, visualAsset(t.ID, m, "reference"))
		}
	}
	return t
}

func transcriptDocument(t *Topic, tr *umcf.Transcript) (*Document, error) {
	payload, err := json.Marshal(tr)
	if err != nil {
		return nil, err
	}
	return &Document{
		ID:      uuid.NewString(),
		TopicID: t.ID,
		Title:   t.Title + " Transcript",
		Type:    DocumentTranscript,
		Content: tr.Text(),
		Payload: payload,
	}, nil
}

func visualAsset(topicID string, m umcf.MediaAsset, defaultMode string) *VisualAsset {
	a := &VisualAsset{
		ID:           uuid.NewString(),
		TopicID:      topicID,
		AssetID:      m.ID,
		Kind:         m.Type,
		URL:          m.URL,
		LocalPath:    m.LocalPath,
		Title:        m.Title,
		Caption:      m.Caption,
		AltText:      m.Alt,
		Description:  m.AudioDescription,
		Latex:        m.Latex,
		MimeType:     m.MimeType,
		StartSegment: AlwaysVisible,
		EndSegment:   AlwaysVisible,
		DisplayMode:  defaultMode,
		Keywords:     append([]string(nil), m.Keywords...),
	}
	if st := m.SegmentTiming; st != nil {
		a.StartSegment = st.StartSegment
		a.EndSegment = st.EndSegment
		if st.DisplayMode != "" {
			a.DisplayMode = st.DisplayMode
		}
	}
	return a
}

// linkAssets points visual assets at their extracted files.
func linkAssets(c *Curriculum, paths map[string]string) {
	for _, t := range c.Topics {
		for _, a := range t.Assets {
			if p, ok := paths[a.AssetID]; ok {
				a.LocalPath = p
				if a.MimeType == "" {
					a.MimeType = umcf.MimeType(p)
				}
			}
		}
	}
}
