package curriculum

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresSchema creates the curriculum tables. Statements are idempotent.
var PostgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS curricula (
		id         TEXT PRIMARY KEY,
		source_id  TEXT NOT NULL,
		name       TEXT NOT NULL,
		summary    TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_curricula_source ON curricula (source_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS topics (
		id            TEXT PRIMARY KEY,
		curriculum_id TEXT NOT NULL REFERENCES curricula(id) ON DELETE CASCADE,
		source_id     TEXT NOT NULL DEFAULT '',
		title         TEXT NOT NULL,
		outline       TEXT NOT NULL DEFAULT '',
		objectives    TEXT[] NOT NULL DEFAULT '{}',
		order_index   INT NOT NULL,
		depth         TEXT NOT NULL,
		mastery       DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (mastery >= 0 AND mastery <= 1),
		UNIQUE (curriculum_id, order_index)
	)`,
	`CREATE TABLE IF NOT EXISTS topic_progress (
		id            TEXT PRIMARY KEY,
		topic_id      TEXT NOT NULL UNIQUE REFERENCES topics(id) ON DELETE CASCADE,
		time_spent    DOUBLE PRECISION NOT NULL DEFAULT 0,
		last_accessed TIMESTAMPTZ,
		quiz_scores   DOUBLE PRECISION[] NOT NULL DEFAULT '{}'
	)`,
	`CREATE TABLE IF NOT EXISTS documents (
		id          TEXT PRIMARY KEY,
		topic_id    TEXT NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
		position    INT NOT NULL,
		title       TEXT NOT NULL DEFAULT '',
		doc_type    TEXT NOT NULL,
		content     TEXT NOT NULL DEFAULT '',
		summary     TEXT NOT NULL DEFAULT '',
		source_path TEXT NOT NULL DEFAULT '',
		payload     JSONB,
		chunks      JSONB NOT NULL DEFAULT '[]'
	)`,
	`CREATE TABLE IF NOT EXISTS visual_assets (
		id            TEXT PRIMARY KEY,
		topic_id      TEXT NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
		position      INT NOT NULL,
		asset_id      TEXT NOT NULL,
		kind          TEXT NOT NULL DEFAULT '',
		url           TEXT NOT NULL DEFAULT '',
		local_path    TEXT NOT NULL DEFAULT '',
		title         TEXT NOT NULL DEFAULT '',
		caption       TEXT NOT NULL DEFAULT '',
		alt_text      TEXT NOT NULL DEFAULT '',
		description   TEXT NOT NULL DEFAULT '',
		latex         TEXT NOT NULL DEFAULT '',
		mime_type     TEXT NOT NULL DEFAULT '',
		start_segment INT NOT NULL DEFAULT -1,
		end_segment   INT NOT NULL DEFAULT -1,
		display_mode  TEXT NOT NULL DEFAULT '',
		keywords      TEXT[] NOT NULL DEFAULT '{}'
	)`,
	`CREATE TABLE IF NOT EXISTS curriculum_events (
		id            BIGSERIAL PRIMARY KEY,
		curriculum_id TEXT,
		topic_id      TEXT,
		event_type    TEXT NOT NULL,
		data          JSONB NOT NULL DEFAULT '{}',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// PostgresStore is a PostgreSQL-backed Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an open pool. Run the PostgresSchema migration first.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) CommitCurriculum(ctx context.Context, c *Curriculum, replaceExisting bool) error {
	if err := validateOrder(c); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if replaceExisting {
		cmd, err := tx.Exec(ctx, `DELETE FROM curricula WHERE source_id = $1`, c.SourceID)
		if err != nil {
			return fmt.Errorf("delete previous curriculum: %w", err)
		}
		if n := cmd.RowsAffected(); n > 0 {
			slog.Debug("replaced curricula", "source_id", c.SourceID, "deleted", n)
		}
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO curricula (id, source_id, name, summary, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.SourceID, c.Name, c.Summary, c.CreatedAt, c.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert curriculum: %w", err)
	}

	for _, t := range c.Topics {
		if _, err := tx.Exec(ctx,
			`INSERT INTO topics (id, curriculum_id, source_id, title, outline, objectives, order_index, depth, mastery)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			t.ID, c.ID, t.SourceID, t.Title, t.Outline, nonNilStrings(t.Objectives), t.OrderIndex, string(t.Depth), t.Mastery,
		); err != nil {
			return fmt.Errorf("insert topic %q: %w", t.Title, err)
		}
		if err := pgWriteTopicChildren(ctx, tx, t); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) SaveTopic(ctx context.Context, t *Topic) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	cmd, err := tx.Exec(ctx,
		`UPDATE topics SET mastery = $2, objectives = $3, outline = $4 WHERE id = $1`,
		t.ID, t.Mastery, nonNilStrings(t.Objectives), t.Outline,
	)
	if err != nil {
		return fmt.Errorf("update topic: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrTopicNotFound, t.ID)
	}

	for _, q := range []string{
		`DELETE FROM topic_progress WHERE topic_id = $1`,
		`DELETE FROM documents WHERE topic_id = $1`,
		`DELETE FROM visual_assets WHERE topic_id = $1`,
	} {
		if _, err := tx.Exec(ctx, q, t.ID); err != nil {
			return fmt.Errorf("clear topic children: %w", err)
		}
	}
	if err := pgWriteTopicChildren(ctx, tx, t); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE curricula SET updated_at = NOW() WHERE id = $1`, t.CurriculumID,
	); err != nil {
		return fmt.Errorf("touch curriculum: %w", err)
	}

	return tx.Commit(ctx)
}

func pgWriteTopicChildren(ctx context.Context, tx pgx.Tx, t *Topic) error {
	if p := t.Progress; p != nil {
		if _, err := tx.Exec(ctx,
			`INSERT INTO topic_progress (id, topic_id, time_spent, last_accessed, quiz_scores)
			 VALUES ($1, $2, $3, $4, $5)`,
			p.ID, t.ID, p.TimeSpent, nullTime(p.LastAccessed), nonNilFloats(p.QuizScores),
		); err != nil {
			return fmt.Errorf("insert progress: %w", err)
		}
	}

	for i, d := range t.Documents {
		chunks, err := json.Marshal(nonNilChunks(d.Chunks))
		if err != nil {
			return fmt.Errorf("marshal chunks: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO documents (id, topic_id, position, title, doc_type, content, summary, source_path, payload, chunks)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10::jsonb)`,
			d.ID, t.ID, i, d.Title, string(d.Type), d.Content, d.Summary, d.SourcePath,
			nullIfEmptyJSON(d.Payload), string(chunks),
		); err != nil {
			return fmt.Errorf("insert document %q: %w", d.Title, err)
		}
	}

	for i, a := range t.Assets {
		if _, err := tx.Exec(ctx,
			`INSERT INTO visual_assets (id, topic_id, position, asset_id, kind, url, local_path, title, caption,
			   alt_text, description, latex, mime_type, start_segment, end_segment, display_mode, keywords)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
			a.ID, t.ID, i, a.AssetID, a.Kind, a.URL, a.LocalPath, a.Title, a.Caption,
			a.AltText, a.Description, a.Latex, a.MimeType, a.StartSegment, a.EndSegment, a.DisplayMode,
			nonNilStrings(a.Keywords),
		); err != nil {
			return fmt.Errorf("insert asset %q: %w", a.AssetID, err)
		}
	}
	return nil
}

func (s *PostgresStore) GetCurriculum(ctx context.Context, id string) (*Curriculum, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return s.loadCurriculum(ctx,
		`SELECT id, source_id, name, summary, created_at, updated_at FROM curricula WHERE id = $1`, id)
}

func (s *PostgresStore) FindCurriculumBySourceID(ctx context.Context, sourceID string) (*Curriculum, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return s.loadCurriculum(ctx,
		`SELECT id, source_id, name, summary, created_at, updated_at FROM curricula
		 WHERE source_id = $1 ORDER BY created_at DESC LIMIT 1`, sourceID)
}

func (s *PostgresStore) ListCurricula(ctx context.Context) ([]*Curriculum, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT id, source_id, name, summary, created_at, updated_at FROM curricula ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("%w: list curricula: %v", ErrLoad, err)
	}
	defer rows.Close()

	var out []*Curriculum
	for rows.Next() {
		c := &Curriculum{}
		if err := rows.Scan(&c.ID, &c.SourceID, &c.Name, &c.Summary, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan curriculum: %v", ErrLoad, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate curricula: %v", ErrLoad, err)
	}
	return out, nil
}

func (s *PostgresStore) DeleteCurriculum(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cmd, err := s.pool.Exec(ctx, `DELETE FROM curricula WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete curriculum: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrCurriculumNotFound, id)
	}
	return nil
}

func (s *PostgresStore) loadCurriculum(ctx context.Context, query string, arg string) (*Curriculum, error) {
	c := &Curriculum{}
	err := s.pool.QueryRow(ctx, query, arg).Scan(&c.ID, &c.SourceID, &c.Name, &c.Summary, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrCurriculumNotFound, arg)
		}
		return nil, fmt.Errorf("%w: get curriculum: %v", ErrLoad, err)
	}

	byID := make(map[string]*Topic)

	rows, err := s.pool.Query(ctx,
		`SELECT t.id, t.source_id, t.title, t.outline, t.objectives, t.order_index, t.depth, t.mastery,
		        p.id, p.time_spent, p.last_accessed, p.quiz_scores
		 FROM topics t
		 LEFT JOIN topic_progress p ON p.topic_id = t.id
		 WHERE t.curriculum_id = $1
		 ORDER BY t.order_index`, c.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: query topics: %v", ErrLoad, err)
	}
	defer rows.Close()

	for rows.Next() {
		t := &Topic{CurriculumID: c.ID}
		var depth string
		var progressID *string
		var timeSpent *float64
		var lastAccessed *time.Time
		var quizScores []float64
		if err := rows.Scan(&t.ID, &t.SourceID, &t.Title, &t.Outline, &t.Objectives, &t.OrderIndex, &depth, &t.Mastery,
			&progressID, &timeSpent, &lastAccessed, &quizScores); err != nil {
			return nil, fmt.Errorf("%w: scan topic: %v", ErrLoad, err)
		}
		t.Depth = DepthLevel(depth)
		if progressID != nil {
			t.Progress = &TopicProgress{ID: *progressID, TopicID: t.ID, QuizScores: quizScores}
			if timeSpent != nil {
				t.Progress.TimeSpent = *timeSpent
			}
			if lastAccessed != nil {
				t.Progress.LastAccessed = *lastAccessed
			}
		}
		c.Topics = append(c.Topics, t)
		byID[t.ID] = t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate topics: %v", ErrLoad, err)
	}
	rows.Close()

	if err := s.loadDocuments(ctx, c.ID, byID); err != nil {
		return nil, err
	}
	if err := s.loadAssets(ctx, c.ID, byID); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *PostgresStore) loadDocuments(ctx context.Context, curriculumID string, byID map[string]*Topic) error {
	rows, err := s.pool.Query(ctx,
		`SELECT d.id, d.topic_id, d.title, d.doc_type, d.content, d.summary, d.source_path, d.payload, d.chunks
		 FROM documents d
		 JOIN topics t ON t.id = d.topic_id
		 WHERE t.curriculum_id = $1
		 ORDER BY d.topic_id, d.position`, curriculumID)
	if err != nil {
		return fmt.Errorf("%w: query documents: %v", ErrLoad, err)
	}
	defer rows.Close()

	for rows.Next() {
		d := &Document{}
		var docType string
		var payload, chunks []byte
		if err := rows.Scan(&d.ID, &d.TopicID, &d.Title, &docType, &d.Content, &d.Summary, &d.SourcePath, &payload, &chunks); err != nil {
			return fmt.Errorf("%w: scan document: %v", ErrLoad, err)
		}
		d.Type = DocumentType(docType)
		if len(payload) > 0 {
			d.Payload = json.RawMessage(payload)
		}
		if err := json.Unmarshal(chunks, &d.Chunks); err != nil {
			return fmt.Errorf("%w: decode chunks: %v", ErrLoad, err)
		}
		if t, ok := byID[d.TopicID]; ok {
			t.Documents = append(t.Documents, d)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: iterate documents: %v", ErrLoad, err)
	}
	return nil
}

func (s *PostgresStore) loadAssets(ctx context.Context, curriculumID string, byID map[string]*Topic) error {
	rows, err := s.pool.Query(ctx,
		`SELECT a.id, a.topic_id, a.asset_id, a.kind, a.url, a.local_path, a.title, a.caption, a.alt_text,
		        a.description, a.latex, a.mime_type, a.start_segment, a.end_segment, a.display_mode, a.keywords
		 FROM visual_assets a
		 JOIN topics t ON t.id = a.topic_id
		 WHERE t.curriculum_id = $1
		 ORDER BY a.topic_id, a.position`, curriculumID)
	if err != nil {
		return fmt.Errorf("%w: query assets: %v", ErrLoad, err)
	}
	defer rows.Close()

	for rows.Next() {
		a := &VisualAsset{}
		if err := rows.Scan(&a.ID, &a.TopicID, &a.AssetID, &a.Kind, &a.URL, &a.LocalPath, &a.Title, &a.Caption, &a.AltText,
			&a.Description, &a.Latex, &a.MimeType, &a.StartSegment, &a.EndSegment, &a.DisplayMode, &a.Keywords); err != nil {
			return fmt.Errorf("%w: scan asset: %v", ErrLoad, err)
		}
		if t, ok := byID[a.TopicID]; ok {
			t.Assets = append(t.Assets, a)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: iterate assets: %v", ErrLoad, err)
	}
	return nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullIfEmptyJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func nonNilFloats(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}

func nonNilChunks(v []DocumentChunk) []DocumentChunk {
	if v == nil {
		return []DocumentChunk{}
	}
	return v
}
