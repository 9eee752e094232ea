package curriculum

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Fixed-width so that lexical order matches time order.
const sqliteTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore is an embedded single-file Store.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) the database at path and migrates it.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	// A single connection keeps PRAGMA foreign_keys in effect for every statement.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS curricula (
			id         TEXT PRIMARY KEY,
			source_id  TEXT NOT NULL,
			name       TEXT NOT NULL,
			summary    TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_curricula_source ON curricula (source_id, created_at);

		CREATE TABLE IF NOT EXISTS topics (
			id            TEXT PRIMARY KEY,
			curriculum_id TEXT NOT NULL REFERENCES curricula(id) ON DELETE CASCADE,
			source_id     TEXT NOT NULL DEFAULT '',
			title         TEXT NOT NULL,
			outline       TEXT NOT NULL DEFAULT '',
			objectives    TEXT NOT NULL DEFAULT '[]',
			order_index   INTEGER NOT NULL,
			depth         TEXT NOT NULL,
			mastery       REAL NOT NULL DEFAULT 0 CHECK (mastery >= 0 AND mastery <= 1),
			UNIQUE (curriculum_id, order_index)
		);

		CREATE TABLE IF NOT EXISTS topic_progress (
			id            TEXT PRIMARY KEY,
			topic_id      TEXT NOT NULL UNIQUE REFERENCES topics(id) ON DELETE CASCADE,
			time_spent    REAL NOT NULL DEFAULT 0,
			last_accessed TEXT,
			quiz_scores   TEXT NOT NULL DEFAULT '[]'
		);

		CREATE TABLE IF NOT EXISTS documents (
			id          TEXT PRIMARY KEY,
			topic_id    TEXT NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
			position    INTEGER NOT NULL,
			title       TEXT NOT NULL DEFAULT '',
			doc_type    TEXT NOT NULL,
			content     TEXT NOT NULL DEFAULT '',
			summary     TEXT NOT NULL DEFAULT '',
			source_path TEXT NOT NULL DEFAULT '',
			payload     TEXT,
			chunks      TEXT NOT NULL DEFAULT '[]'
		);

		CREATE TABLE IF NOT EXISTS visual_assets (
			id            TEXT PRIMARY KEY,
			topic_id      TEXT NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
			position      INTEGER NOT NULL,
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
			start_segment INTEGER NOT NULL DEFAULT -1,
			end_segment   INTEGER NOT NULL DEFAULT -1,
			display_mode  TEXT NOT NULL DEFAULT '',
			keywords      TEXT NOT NULL DEFAULT '[]'
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) CommitCurriculum(ctx context.Context, c *Curriculum, replaceExisting bool) error {
	if err := validateOrder(c); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if replaceExisting {
		if _, err := tx.ExecContext(ctx, `DELETE FROM curricula WHERE source_id = ?`, c.SourceID); err != nil {
			return fmt.Errorf("delete previous curriculum: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO curricula (id, source_id, name, summary, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.SourceID, c.Name, c.Summary, formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
	); err != nil {
		return fmt.Errorf("insert curriculum: %w", err)
	}

	for _, t := range c.Topics {
		objectives, err := jsonText(nonNilStrings(t.Objectives))
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO topics (id, curriculum_id, source_id, title, outline, objectives, order_index, depth, mastery)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, c.ID, t.SourceID, t.Title, t.Outline, objectives, t.OrderIndex, string(t.Depth), t.Mastery,
		); err != nil {
			return fmt.Errorf("insert topic %q: %w", t.Title, err)
		}
		if err := sqliteWriteTopicChildren(ctx, tx, t); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) SaveTopic(ctx context.Context, t *Topic) error {
	objectives, err := jsonText(nonNilStrings(t.Objectives))
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE topics SET mastery = ?, objectives = ?, outline = ? WHERE id = ?`,
		t.Mastery, objectives, t.Outline, t.ID,
	)
	if err != nil {
		return fmt.Errorf("update topic: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrTopicNotFound, t.ID)
	}

	for _, q := range []string{
		`DELETE FROM topic_progress WHERE topic_id = ?`,
		`DELETE FROM documents WHERE topic_id = ?`,
		`DELETE FROM visual_assets WHERE topic_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, t.ID); err != nil {
			return fmt.Errorf("clear topic children: %w", err)
		}
	}
	if err := sqliteWriteTopicChildren(ctx, tx, t); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE curricula SET updated_at = ? WHERE id = ?`, formatTime(time.Now()), t.CurriculumID,
	); err != nil {
		return fmt.Errorf("touch curriculum: %w", err)
	}

	return tx.Commit()
}

func sqliteWriteTopicChildren(ctx context.Context, tx *sql.Tx, t *Topic) error {
	if p := t.Progress; p != nil {
		scores, err := jsonText(nonNilFloats(p.QuizScores))
		if err != nil {
			return err
		}
		var lastAccessed any
		if !p.LastAccessed.IsZero() {
			lastAccessed = formatTime(p.LastAccessed)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO topic_progress (id, topic_id, time_spent, last_accessed, quiz_scores) VALUES (?, ?, ?, ?, ?)`,
			p.ID, t.ID, p.TimeSpent, lastAccessed, scores,
		); err != nil {
			return fmt.Errorf("insert progress: %w", err)
		}
	}

	for i, d := range t.Documents {
		chunks, err := jsonText(nonNilChunks(d.Chunks))
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO documents (id, topic_id, position, title, doc_type, content, summary, source_path, payload, chunks)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, t.ID, i, d.Title, string(d.Type), d.Content, d.Summary, d.SourcePath,
			nullIfEmptyJSON(d.Payload), chunks,
		); err != nil {
			return fmt.Errorf("insert document %q: %w", d.Title, err)
		}
	}

	for i, a := range t.Assets {
		keywords, err := jsonText(nonNilStrings(a.Keywords))
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO visual_assets (id, topic_id, position, asset_id, kind, url, local_path, title, caption,
			   alt_text, description, latex, mime_type, start_segment, end_segment, display_mode, keywords)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, t.ID, i, a.AssetID, a.Kind, a.URL, a.LocalPath, a.Title, a.Caption,
			a.AltText, a.Description, a.Latex, a.MimeType, a.StartSegment, a.EndSegment, a.DisplayMode, keywords,
		); err != nil {
			return fmt.Errorf("insert asset %q: %w", a.AssetID, err)
		}
	}
	return nil
}

func (s *SQLiteStore) GetCurriculum(ctx context.Context, id string) (*Curriculum, error) {
	return s.loadCurriculum(ctx,
		`SELECT id, source_id, name, summary, created_at, updated_at FROM curricula WHERE id = ?`, id)
}

func (s *SQLiteStore) FindCurriculumBySourceID(ctx context.Context, sourceID string) (*Curriculum, error) {
	return s.loadCurriculum(ctx,
		`SELECT id, source_id, name, summary, created_at, updated_at FROM curricula
		 WHERE source_id = ? ORDER BY created_at DESC LIMIT 1`, sourceID)
}

func (s *SQLiteStore) ListCurricula(ctx context.Context) ([]*Curriculum, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_id, name, summary, created_at, updated_at FROM curricula ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("%w: list curricula: %v", ErrLoad, err)
	}
	defer rows.Close()

	var out []*Curriculum
	for rows.Next() {
		c, err := scanSQLiteCurriculum(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate curricula: %v", ErrLoad, err)
	}
	return out, nil
}

func (s *SQLiteStore) DeleteCurriculum(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM curricula WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete curriculum: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrCurriculumNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteCurriculum(row rowScanner) (*Curriculum, error) {
	c := &Curriculum{}
	var created, updated string
	if err := row.Scan(&c.ID, &c.SourceID, &c.Name, &c.Summary, &created, &updated); err != nil {
		return nil, err
	}
	c.CreatedAt = parseTime(created)
	c.UpdatedAt = parseTime(updated)
	return c, nil
}

func (s *SQLiteStore) loadCurriculum(ctx context.Context, query, arg string) (*Curriculum, error) {
	c, err := scanSQLiteCurriculum(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrCurriculumNotFound, arg)
		}
		return nil, fmt.Errorf("%w: get curriculum: %v", ErrLoad, err)
	}

	byID := make(map[string]*Topic)
	if err := s.loadTopics(ctx, c, byID); err != nil {
		return nil, err
	}
	if err := s.loadDocuments(ctx, c.ID, byID); err != nil {
		return nil, err
	}
	if err := s.loadAssets(ctx, c.ID, byID); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *SQLiteStore) loadTopics(ctx context.Context, c *Curriculum, byID map[string]*Topic) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.id, t.source_id, t.title, t.outline, t.objectives, t.order_index, t.depth, t.mastery,
		        p.id, p.time_spent, p.last_accessed, p.quiz_scores
		 FROM topics t
		 LEFT JOIN topic_progress p ON p.topic_id = t.id
		 WHERE t.curriculum_id = ?
		 ORDER BY t.order_index`, c.ID)
	if err != nil {
		return fmt.Errorf("%w: query topics: %v", ErrLoad, err)
	}
	defer rows.Close()

	for rows.Next() {
		t := &Topic{CurriculumID: c.ID}
		var objectives, depth string
		var progressID, lastAccessed, quizScores sql.NullString
		var timeSpent sql.NullFloat64
		if err := rows.Scan(&t.ID, &t.SourceID, &t.Title, &t.Outline, &objectives, &t.OrderIndex, &depth, &t.Mastery,
			&progressID, &timeSpent, &lastAccessed, &quizScores); err != nil {
			return fmt.Errorf("%w: scan topic: %v", ErrLoad, err)
		}
		t.Depth = DepthLevel(depth)
		if err := json.Unmarshal([]byte(objectives), &t.Objectives); err != nil {
			return fmt.Errorf("%w: decode objectives: %v", ErrLoad, err)
		}
		if progressID.Valid {
			t.Progress = &TopicProgress{ID: progressID.String, TopicID: t.ID, TimeSpent: timeSpent.Float64}
			if lastAccessed.Valid {
				t.Progress.LastAccessed = parseTime(lastAccessed.String)
			}
			if quizScores.Valid {
				if err := json.Unmarshal([]byte(quizScores.String), &t.Progress.QuizScores); err != nil {
					return fmt.Errorf("%w: decode quiz scores: %v", ErrLoad, err)
				}
			}
		}
		c.Topics = append(c.Topics, t)
		byID[t.ID] = t
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: iterate topics: %v", ErrLoad, err)
	}
	return nil
}

func (s *SQLiteStore) loadDocuments(ctx context.Context, curriculumID string, byID map[string]*Topic) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT d.id, d.topic_id, d.title, d.doc_type, d.content, d.summary, d.source_path, d.payload, d.chunks
		 FROM documents d
		 JOIN topics t ON t.id = d.topic_id
		 WHERE t.curriculum_id = ?
		 ORDER BY d.topic_id, d.position`, curriculumID)
	if err != nil {
		return fmt.Errorf("%w: query documents: %v", ErrLoad, err)
	}
	defer rows.Close()

	for rows.Next() {
		d := &Document{}
		var docType, chunks string
		var payload sql.NullString
		if err := rows.Scan(&d.ID, &d.TopicID, &d.Title, &docType, &d.Content, &d.Summary, &d.SourcePath, &payload, &chunks); err != nil {
			return fmt.Errorf("%w: scan document: %v", ErrLoad, err)
		}
		d.Type = DocumentType(docType)
		if payload.Valid && payload.String != "" {
			d.Payload = json.RawMessage(payload.String)
		}
		if err := json.Unmarshal([]byte(chunks), &d.Chunks); err != nil {
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

func (s *SQLiteStore) loadAssets(ctx context.Context, curriculumID string, byID map[string]*Topic) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.topic_id, a.asset_id, a.kind, a.url, a.local_path, a.title, a.caption, a.alt_text,
		        a.description, a.latex, a.mime_type, a.start_segment, a.end_segment, a.display_mode, a.keywords
		 FROM visual_assets a
		 JOIN topics t ON t.id = a.topic_id
		 WHERE t.curriculum_id = ?
		 ORDER BY a.topic_id, a.position`, curriculumID)
	if err != nil {
		return fmt.Errorf("%w: query assets: %v", ErrLoad, err)
	}
	defer rows.Close()

	for rows.Next() {
		a := &VisualAsset{}
		var keywords string
		if err := rows.Scan(&a.ID, &a.TopicID, &a.AssetID, &a.Kind, &a.URL, &a.LocalPath, &a.Title, &a.Caption, &a.AltText,
			&a.Description, &a.Latex, &a.MimeType, &a.StartSegment, &a.EndSegment, &a.DisplayMode, &keywords); err != nil {
			return fmt.Errorf("%w: scan asset: %v", ErrLoad, err)
		}
		if err := json.Unmarshal([]byte(keywords), &a.Keywords); err != nil {
			return fmt.Errorf("%w: decode keywords: %v", ErrLoad, err)
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

func jsonText(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal column: %w", err)
	}
	return string(data), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeFormat)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(sqliteTimeFormat, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}
