package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/polydoc/polydoc/internal/provider"
	"github.com/polydoc/polydoc/internal/store"
)

// MockTranslator mocks the provider gateway for orchestrator tests.
// Responses and errors are keyed by "text|lang"; unkeyed requests get a
// default mock translation.
type MockTranslator struct {
	mu           sync.Mutex
	Translations map[string]string
	Errors       map[string]error
	// FailuresLeft makes the keyed error fire only N times, then
	// succeed; useful for retry tests.
	FailuresLeft map[string]int
	Calls        []string
}

// NewMockTranslator creates an empty mock translator.
func NewMockTranslator() *MockTranslator {
	return &MockTranslator{
		Translations: make(map[string]string),
		Errors:       make(map[string]error),
		FailuresLeft: make(map[string]int),
	}
}

// Translate mocks translating one chunk.
func (m *MockTranslator) Translate(ctx context.Context, req provider.Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := fmt.Sprintf("%s|%s", req.Text, req.TargetLang)
	m.Calls = append(m.Calls, key)

	if err, ok := m.Errors[key]; ok {
		if left, counted := m.FailuresLeft[key]; counted {
			if left > 0 {
				m.FailuresLeft[key] = left - 1
				return "", err
			}
		} else {
			return "", err
		}
	}

	if translation, ok := m.Translations[key]; ok {
		return translation, nil
	}
	return fmt.Sprintf("%s translation of %s", req.TargetLang, req.Text), nil
}

// CallCount returns how often the given text/lang unit was requested.
func (m *MockTranslator) CallCount(text, lang string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := fmt.Sprintf("%s|%s", text, lang)
	n := 0
	for _, c := range m.Calls {
		if c == key {
			n++
		}
	}
	return n
}

// MemoryStore is an in-memory ProjectStore, ChunkStore and ConfigStore
// for tests. Errors, keyed by operation name, make individual store
// operations fail.
type MemoryStore struct {
	mu       sync.Mutex
	projects map[string]*store.Project
	chunks   map[string][]*store.Chunk
	config   *store.ProviderConfig
	nextID   int
	Errors   map[string]error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		projects: make(map[string]*store.Project),
		chunks:   make(map[string][]*store.Chunk),
		Errors:   make(map[string]error),
	}
}

func (m *MemoryStore) fail(op string) error {
	return m.Errors[op]
}

// Create inserts a project, assigning a sequential id if none is set.
func (m *MemoryStore) Create(ctx context.Context, p *store.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("Create"); err != nil {
		return err
	}
	if p.ID == "" {
		m.nextID++
		p.ID = fmt.Sprintf("project-%d", m.nextID)
	}
	if p.Status == "" {
		p.Status = store.StatusPending
	}
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.projects[p.ID] = &cp
	return nil
}

// Get returns a copy of the stored project.
func (m *MemoryStore) Get(ctx context.Context, id string) (*store.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("Get"); err != nil {
		return nil, err
	}
	p, ok := m.projects[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// List returns all projects.
func (m *MemoryStore) List(ctx context.Context) ([]*store.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.Project
	for _, p := range m.projects {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Update rewrites the stored project.
func (m *MemoryStore) Update(ctx context.Context, p *store.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("Update"); err != nil {
		return err
	}
	if _, ok := m.projects[p.ID]; !ok {
		return store.ErrNotFound
	}
	p.UpdatedAt = time.Now().UTC()
	cp := *p
	m.projects[p.ID] = &cp
	return nil
}

// UpdateProgress writes status, progress and completed-chunk count.
func (m *MemoryStore) UpdateProgress(ctx context.Context, id string, status store.ProjectStatus, progress float64, completedChunks int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpdateProgress"); err != nil {
		return err
	}
	p, ok := m.projects[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Status = status
	p.Progress = progress
	p.CompletedChunks = completedChunks
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// Delete removes the project and its chunks.
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.projects, id)
	delete(m.chunks, id)
	return nil
}

// CreateBatch stores chunks for a project.
func (m *MemoryStore) CreateBatch(ctx context.Context, chunks []*store.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreateBatch"); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	for i, c := range chunks {
		if c.Status == "" {
			c.Status = store.ChunkPending
		}
		if c.Translations == nil {
			c.Translations = map[string]string{}
		}
		c.ID = int64(len(m.chunks[c.ProjectID]) + i + 1)
		cp := copyChunk(c)
		m.chunks[c.ProjectID] = append(m.chunks[c.ProjectID], cp)
	}
	sort.Slice(m.chunks[chunks[0].ProjectID], func(i, j int) bool {
		cs := m.chunks[chunks[0].ProjectID]
		return cs[i].ChunkIndex < cs[j].ChunkIndex
	})
	return nil
}

// ListByProject returns copies of the project's chunks in index order.
func (m *MemoryStore) ListByProject(ctx context.Context, projectID string) ([]*store.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ListByProject"); err != nil {
		return nil, err
	}
	var out []*store.Chunk
	for _, c := range m.chunks[projectID] {
		out = append(out, copyChunk(c))
	}
	return out, nil
}

// GetChunk returns the chunk at (projectID, chunkIndex).
func (m *MemoryStore) GetChunk(ctx context.Context, projectID string, chunkIndex int) (*store.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.chunks[projectID] {
		if c.ChunkIndex == chunkIndex {
			return copyChunk(c), nil
		}
	}
	return nil, store.ErrNotFound
}

// SetTranslation records a completed translation for one language.
func (m *MemoryStore) SetTranslation(ctx context.Context, projectID string, chunkIndex int, lang, text string, status store.ChunkStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("SetTranslation"); err != nil {
		return err
	}
	for _, c := range m.chunks[projectID] {
		if c.ChunkIndex == chunkIndex {
			c.Translations[lang] = text
			c.Status = status
			return nil
		}
	}
	return store.ErrNotFound
}

// UpdateStatus writes chunk status and retry count.
func (m *MemoryStore) UpdateStatus(ctx context.Context, projectID string, chunkIndex int, status store.ChunkStatus, retryCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpdateStatus"); err != nil {
		return err
	}
	for _, c := range m.chunks[projectID] {
		if c.ChunkIndex == chunkIndex {
			c.Status = status
			c.RetryCount = retryCount
			return nil
		}
	}
	return store.ErrNotFound
}

// ResetProject clears translation state of all chunks.
func (m *MemoryStore) ResetProject(ctx context.Context, projectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.chunks[projectID] {
		c.Translations = map[string]string{}
		c.Status = store.ChunkPending
		c.RetryCount = 0
	}
	return nil
}

// DeleteByProject removes all chunks of a project.
func (m *MemoryStore) DeleteByProject(ctx context.Context, projectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chunks, projectID)
	return nil
}

// GetActiveProvider returns the stored provider config.
func (m *MemoryStore) GetActiveProvider(ctx context.Context) (*store.ProviderConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.config == nil {
		return nil, store.ErrNotFound
	}
	cp := *m.config
	return &cp, nil
}

// SetActiveProvider stores the provider config.
func (m *MemoryStore) SetActiveProvider(ctx context.Context, cfg *store.ProviderConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *cfg
	m.config = &cp
	return nil
}

func copyChunk(c *store.Chunk) *store.Chunk {
	cp := *c
	cp.Translations = make(map[string]string, len(c.Translations))
	for k, v := range c.Translations {
		cp.Translations[k] = v
	}
	return &cp
}
