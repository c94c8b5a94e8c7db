package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a project or chunk does not exist.
var ErrNotFound = errors.New("not found")

// ProjectStatus describes the lifecycle state of a project.
type ProjectStatus string

const (
	StatusPending    ProjectStatus = "pending"
	StatusProcessing ProjectStatus = "processing"
	StatusCompleted  ProjectStatus = "completed"
	StatusError      ProjectStatus = "error"
	StatusPaused     ProjectStatus = "paused"
	StatusReady      ProjectStatus = "ready"
)

// ChunkStatus describes the state of a chunk's current language attempt.
// It is a transient hint: presence of a translation for a language is
// the authoritative signal that the (chunk, language) pair is done.
type ChunkStatus string

const (
	ChunkPending    ChunkStatus = "pending"
	ChunkProcessing ChunkStatus = "processing"
	ChunkCompleted  ChunkStatus = "completed"
	ChunkError      ChunkStatus = "error"
)

// TranslationStyle selects the tone instruction sent to the provider.
type TranslationStyle string

const (
	StyleFormal    TranslationStyle = "formal"
	StyleCasual    TranslationStyle = "casual"
	StyleLiterary  TranslationStyle = "literary"
	StyleTechnical TranslationStyle = "technical"
)

// Settings bundles the per-project translation options.
type Settings struct {
	ChunkSize          int              `json:"chunk_size"`
	MaxRetries         int              `json:"max_retries"`
	TranslationStyle   TranslationStyle `json:"translation_style"`
	PreserveFormatting bool             `json:"preserve_formatting"`
	ContextAware       bool             `json:"context_aware"`
}

// DefaultSettings returns the settings applied to new projects.
func DefaultSettings() Settings {
	return Settings{
		ChunkSize:          1000,
		MaxRetries:         3,
		TranslationStyle:   StyleFormal,
		PreserveFormatting: true,
	}
}

// Project is a document translation job: one source document plus the
// ordered set of target languages it is being translated into.
type Project struct {
	ID              string
	Name            string
	Status          ProjectStatus
	SourceLanguage  string // ISO code or "auto"
	TargetLanguages []string
	OriginalContent string
	TotalChunks     int
	CompletedChunks int
	Progress        float64 // 0-100
	Settings        Settings
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Chunk is one bounded slice of a project's document text together with
// its per-language translation results.
type Chunk struct {
	ID           int64
	ProjectID    string
	ChunkIndex   int
	OriginalText string
	Translations map[string]string // target language -> translated text
	Status       ChunkStatus
	RetryCount   int
}

// HasTranslation reports whether the chunk holds a non-empty
// translation for the given language.
func (c *Chunk) HasTranslation(lang string) bool {
	return c.Translations[lang] != ""
}

// ProjectStore persists project-level state.
type ProjectStore interface {
	Create(ctx context.Context, p *Project) error
	Get(ctx context.Context, id string) (*Project, error)
	List(ctx context.Context) ([]*Project, error)
	Update(ctx context.Context, p *Project) error
	// UpdateProgress writes only status, progress and completed-chunk
	// count without rewriting the whole record.
	UpdateProgress(ctx context.Context, id string, status ProjectStatus, progress float64, completedChunks int) error
	// Delete removes the project and cascades to all its chunks.
	Delete(ctx context.Context, id string) error
}

// ChunkStore persists translation chunks keyed by (project, index).
type ChunkStore interface {
	CreateBatch(ctx context.Context, chunks []*Chunk) error
	// ListByProject returns every chunk of a project sorted by
	// ascending chunk index.
	ListByProject(ctx context.Context, projectID string) ([]*Chunk, error)
	GetChunk(ctx context.Context, projectID string, chunkIndex int) (*Chunk, error)
	// SetTranslation records a completed translation for one language
	// and updates the chunk status.
	SetTranslation(ctx context.Context, projectID string, chunkIndex int, lang, text string, status ChunkStatus) error
	// UpdateStatus writes status and retry count only.
	UpdateStatus(ctx context.Context, projectID string, chunkIndex int, status ChunkStatus, retryCount int) error
	// ResetProject clears translations, status and retry counts of all
	// chunks of a project while keeping the rows and original text.
	ResetProject(ctx context.Context, projectID string) error
	DeleteByProject(ctx context.Context, projectID string) error
}
