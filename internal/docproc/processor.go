package docproc

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sirfifer/voicelearn-ios-sub011/internal/curriculum"
)

const (
	DefaultSummaryMaxChars  = 8000
	DefaultEmbedConcurrency = 4
)

const summaryPrompt = `Summarize the following educational material in 2-3 short paragraphs.
Focus on the key concepts a learner must understand, and keep the language clear and direct.

Material:
%s`

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config configures a Processor. Embedder and Generator are optional.
type Config struct {
	Embedder         curriculum.Embedder
	Generator        Generator
	MaxChunkChars    int
	SummaryMaxChars  int
	EmbedConcurrency int
	PageReader       PageReader
}

// Processor extracts, chunks, embeds and summarizes documents.
type Processor struct {
	embedder         curriculum.Embedder
	generator        Generator
	maxChunkChars    int
	summaryMaxChars  int
	embedConcurrency int
	pages            PageReader
}

// NewProcessor creates a processor, filling unset limits with defaults.
func NewProcessor(cfg Config) *Processor {
	p := &Processor{
		embedder:         cfg.Embedder,
		generator:        cfg.Generator,
		maxChunkChars:    cfg.MaxChunkChars,
		summaryMaxChars:  cfg.SummaryMaxChars,
		embedConcurrency: cfg.EmbedConcurrency,
		pages:            cfg.PageReader,
	}
	if p.maxChunkChars <= 0 {
		p.maxChunkChars = DefaultMaxChunkChars
	}
	if p.summaryMaxChars <= 0 {
		p.summaryMaxChars = DefaultSummaryMaxChars
	}
	if p.embedConcurrency <= 0 {
		p.embedConcurrency = DefaultEmbedConcurrency
	}
	return p
}

// ProcessFile processes the file at path, inferring its type from the extension.
func (p *Processor) ProcessFile(ctx context.Context, path string) (*curriculum.Document, error) {
	docType, err := TypeFromPath(path)
	if err != nil {
		return nil, err
	}
	ext, err := ExtractFile(path, docType, p.pages)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	doc := p.build(ctx, ext, docType, title)
	doc.SourcePath = path
	return doc, nil
}

// Process processes an in-memory document.
func (p *Processor) Process(ctx context.Context, data []byte, docType curriculum.DocumentType, title string) (*curriculum.Document, error) {
	ext, err := Extract(data, docType, p.pages)
	if err != nil {
		return nil, err
	}
	return p.build(ctx, ext, docType, title), nil
}

// build never fails: embedding and summary errors are logged and the document is kept without them.
func (p *Processor) build(ctx context.Context, ext *Extraction, docType curriculum.DocumentType, title string) *curriculum.Document {
	doc := &curriculum.Document{
		ID:      uuid.NewString(),
		Title:   title,
		Type:    docType,
		Content: ext.Text,
	}
	doc.Chunks = p.chunks(doc.ID, ext)

	if p.embedder != nil {
		if embedded, err := p.Embed(ctx, doc.Chunks); err != nil {
			slog.Warn("document kept without embeddings", "document_id", doc.ID, "title", title, "error", err)
		} else {
			doc.Chunks = embedded
		}
	}

	if p.generator != nil {
		summary, err := p.Summarize(ctx, ext.Text)
		if err != nil {
			slog.Warn("document kept without summary", "document_id", doc.ID, "title", title, "error", err)
		}
		doc.Summary = summary
	}

	slog.Info("document processed",
		"document_id", doc.ID,
		"type", docType,
		"chars", len(ext.Text),
		"chunks", len(doc.Chunks),
		"summarized", doc.Summary != "",
	)
	return doc
}

// chunks splits each page separately so chunks carry their page number.
func (p *Processor) chunks(documentID string, ext *Extraction) []curriculum.DocumentChunk {
	var out []curriculum.DocumentChunk
	add := func(texts []string, page *int) {
		for _, t := range texts {
			out = append(out, curriculum.DocumentChunk{
				ID:         uuid.NewString(),
				DocumentID: documentID,
				Index:      len(out),
				Text:       t,
				Page:       page,
			})
		}
	}

	if len(ext.Pages) == 0 {
		add(Chunk(ext.Text, p.maxChunkChars), nil)
		return out
	}
	for i, page := range ext.Pages {
		n := i + 1
		add(Chunk(page, p.maxChunkChars), &n)
	}
	return out
}

// Embed returns a copy of chunks with vectors attached. On any failure it returns
// an error wrapping ErrEmbedding and leaves the input untouched.
func (p *Processor) Embed(ctx context.Context, chunks []curriculum.DocumentChunk) ([]curriculum.DocumentChunk, error) {
	if p.embedder == nil {
		return nil, fmt.Errorf("%w: no embedder configured", ErrEmbedding)
	}

	out := make([]curriculum.DocumentChunk, len(chunks))
	copy(out, chunks)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.embedConcurrency)
	for i := range out {
		g.Go(func() error {
			v, err := p.embedder.Embed(gctx, out[i].Text)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", out[i].Index, err)
			}
			out[i].Embedding = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	return out, nil
}

// Summarize asks the generator for a summary of the first SummaryMaxChars characters of text.
func (p *Processor) Summarize(ctx context.Context, text string) (string, error) {
	if p.generator == nil {
		return "", fmt.Errorf("%w: no generator configured", ErrSummary)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}
	if r := []rune(text); len(r) > p.summaryMaxChars {
		text = string(r[:p.summaryMaxChars])
	}

	summary, err := p.generator.Generate(ctx, fmt.Sprintf(summaryPrompt, text))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSummary, err)
	}
	return strings.TrimSpace(summary), nil
}
