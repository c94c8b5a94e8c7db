package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	status TEXT NOT NULL,
	source_language TEXT NOT NULL,
	target_languages TEXT NOT NULL,
	original_content TEXT NOT NULL,
	total_chunks INTEGER NOT NULL DEFAULT 0,
	completed_chunks INTEGER NOT NULL DEFAULT 0,
	progress REAL NOT NULL DEFAULT 0,
	settings TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS chunks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	chunk_index INTEGER NOT NULL,
	original_text TEXT NOT NULL,
	translations TEXT NOT NULL DEFAULT '{}',
	status TEXT NOT NULL DEFAULT 'pending',
	retry_count INTEGER NOT NULL DEFAULT 0,
	UNIQUE (project_id, chunk_index)
);
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// DB is a SQLite-backed implementation of ProjectStore, ChunkStore and
// ConfigStore sharing one database handle.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at dbPath and
// ensures the schema exists.
func Open(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %q failed: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the underlying database.
func (s *DB) Close() error {
	return s.db.Close()
}

// Create inserts a new project, assigning an ID if none is set.
func (s *DB) Create(ctx context.Context, p *Project) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = StatusPending
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	langs, err := json.Marshal(p.TargetLanguages)
	if err != nil {
		return fmt.Errorf("failed to encode target languages: %w", err)
	}
	settings, err := json.Marshal(p.Settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO projects
		(id, name, status, source_language, target_languages, original_content,
		 total_chunks, completed_chunks, progress, settings, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, string(p.Status), p.SourceLanguage, string(langs),
		p.OriginalContent, p.TotalChunks, p.CompletedChunks, p.Progress,
		string(settings), now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}
	return nil
}

// Get returns the project with the given id.
func (s *DB) Get(ctx context.Context, id string) (*Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, status, source_language,
		target_languages, original_content, total_chunks, completed_chunks,
		progress, settings, created_at, updated_at FROM projects WHERE id = ?`, id)
	return scanProject(row)
}

// List returns all projects ordered by creation time.
func (s *DB) List(ctx context.Context) ([]*Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, status, source_language,
		target_languages, original_content, total_chunks, completed_chunks,
		progress, settings, created_at, updated_at FROM projects ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// Update rewrites the full project record.
func (s *DB) Update(ctx context.Context, p *Project) error {
	p.UpdatedAt = time.Now().UTC()

	langs, err := json.Marshal(p.TargetLanguages)
	if err != nil {
		return fmt.Errorf("failed to encode target languages: %w", err)
	}
	settings, err := json.Marshal(p.Settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `UPDATE projects SET name = ?, status = ?,
		source_language = ?, target_languages = ?, original_content = ?,
		total_chunks = ?, completed_chunks = ?, progress = ?, settings = ?,
		updated_at = ? WHERE id = ?`,
		p.Name, string(p.Status), p.SourceLanguage, string(langs),
		p.OriginalContent, p.TotalChunks, p.CompletedChunks, p.Progress,
		string(settings), p.UpdatedAt.Format(time.RFC3339), p.ID)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	return requireRow(res)
}

// UpdateProgress writes status, progress and completed-chunk count only.
func (s *DB) UpdateProgress(ctx context.Context, id string, status ProjectStatus, progress float64, completedChunks int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE projects SET status = ?,
		progress = ?, completed_chunks = ?, updated_at = ? WHERE id = ?`,
		string(status), progress, completedChunks,
		time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to update project progress: %w", err)
	}
	return requireRow(res)
}

// Delete removes the project; chunks cascade via the foreign key.
func (s *DB) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return requireRow(res)
}

// CreateBatch inserts chunks in a single transaction.
func (s *DB) CreateBatch(ctx context.Context, chunks []*Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks
		(project_id, chunk_index, original_text, translations, status, retry_count)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if c.Status == "" {
			c.Status = ChunkPending
		}
		translations := c.Translations
		if translations == nil {
			translations = map[string]string{}
		}
		encoded, err := json.Marshal(translations)
		if err != nil {
			return fmt.Errorf("failed to encode translations: %w", err)
		}
		res, err := stmt.ExecContext(ctx, c.ProjectID, c.ChunkIndex,
			c.OriginalText, string(encoded), string(c.Status), c.RetryCount)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", c.ChunkIndex, err)
		}
		if c.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to read chunk id: %w", err)
		}
	}

	return tx.Commit()
}

// ListByProject returns all chunks of a project in chunk-index order.
func (s *DB) ListByProject(ctx context.Context, projectID string) ([]*Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, project_id, chunk_index,
		original_text, translations, status, retry_count FROM chunks
		WHERE project_id = ? ORDER BY chunk_index`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// GetChunk returns the chunk at (projectID, chunkIndex).
func (s *DB) GetChunk(ctx context.Context, projectID string, chunkIndex int) (*Chunk, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, project_id, chunk_index,
		original_text, translations, status, retry_count FROM chunks
		WHERE project_id = ? AND chunk_index = ?`, projectID, chunkIndex)
	return scanChunk(row)
}

// SetTranslation records a completed translation for one language. The
// translations JSON is patched with json_set so concurrent languages do
// not clobber each other.
func (s *DB) SetTranslation(ctx context.Context, projectID string, chunkIndex int, lang, text string, status ChunkStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE chunks
		SET translations = json_set(translations, '$."' || ? || '"', ?), status = ?
		WHERE project_id = ? AND chunk_index = ?`,
		lang, text, string(status), projectID, chunkIndex)
	if err != nil {
		return fmt.Errorf("failed to set translation: %w", err)
	}
	return requireRow(res)
}

// UpdateStatus writes chunk status and retry count only.
func (s *DB) UpdateStatus(ctx context.Context, projectID string, chunkIndex int, status ChunkStatus, retryCount int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE chunks SET status = ?, retry_count = ?
		WHERE project_id = ? AND chunk_index = ?`,
		string(status), retryCount, projectID, chunkIndex)
	if err != nil {
		return fmt.Errorf("failed to update chunk status: %w", err)
	}
	return requireRow(res)
}

// ResetProject clears translations, status and retry counts of every
// chunk of the project while keeping rows and original text.
func (s *DB) ResetProject(ctx context.Context, projectID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE chunks SET translations = '{}',
		status = ?, retry_count = 0 WHERE project_id = ?`,
		string(ChunkPending), projectID)
	if err != nil {
		return fmt.Errorf("failed to reset chunks: %w", err)
	}
	return nil
}

// DeleteByProject removes all chunks of a project.
func (s *DB) DeleteByProject(ctx context.Context, projectID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE project_id = ?`, projectID)
	if err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

const activeProviderKey = "active_provider"

// GetActiveProvider returns the persisted provider configuration.
func (s *DB) GetActiveProvider(ctx context.Context) (*ProviderConfig, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, activeProviderKey).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read provider config: %w", err)
	}

	var cfg ProviderConfig
	if err := json.Unmarshal([]byte(value), &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode provider config: %w", err)
	}
	return &cfg, nil
}

// SetActiveProvider persists cfg as the active provider configuration.
func (s *DB) SetActiveProvider(ctx context.Context, cfg *ProviderConfig) error {
	encoded, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode provider config: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		activeProviderKey, string(encoded))
	if err != nil {
		return fmt.Errorf("failed to save provider config: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*Project, error) {
	var p Project
	var status, langs, settings, createdAt, updatedAt string
	err := row.Scan(&p.ID, &p.Name, &status, &p.SourceLanguage, &langs,
		&p.OriginalContent, &p.TotalChunks, &p.CompletedChunks, &p.Progress,
		&settings, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}

	p.Status = ProjectStatus(status)
	if err := json.Unmarshal([]byte(langs), &p.TargetLanguages); err != nil {
		return nil, fmt.Errorf("failed to decode target languages: %w", err)
	}
	if err := json.Unmarshal([]byte(settings), &p.Settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	if p.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if p.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return &p, nil
}

func scanChunk(row rowScanner) (*Chunk, error) {
	var c Chunk
	var translations, status string
	err := row.Scan(&c.ID, &c.ProjectID, &c.ChunkIndex, &c.OriginalText,
		&translations, &status, &c.RetryCount)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan chunk: %w", err)
	}

	c.Status = ChunkStatus(status)
	if err := json.Unmarshal([]byte(translations), &c.Translations); err != nil {
		return nil, fmt.Errorf("failed to decode translations: %w", err)
	}
	return &c, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
