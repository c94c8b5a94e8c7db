package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/polydoc/polydoc/internal"
	"github.com/polydoc/polydoc/internal/chunker"
	"github.com/polydoc/polydoc/internal/provider"
	"github.com/polydoc/polydoc/internal/store"
)

// ErrAlreadyRunning is returned by Start when an orchestration loop is
// already active for the project.
var ErrAlreadyRunning = errors.New("translation already running for this project")

// Translator is the provider call the orchestrator depends on;
// satisfied by the provider Gateway.
type Translator interface {
	Translate(ctx context.Context, req provider.Request) (string, error)
}

// Progress is the payload of every OnProgress callback.
type Progress struct {
	Percentage             float64
	CurrentLanguage        string
	EstimatedTimeRemaining time.Duration
	TokensUsed             int
}

// Callbacks is the only channel through which a run reports to the
// outside world. Every callback is invoked synchronously in the tick
// the state changed. Nil callbacks are skipped.
type Callbacks struct {
	OnProgress func(Progress)
	OnComplete func()
	OnError    func(error)
}

// run tracks one active orchestration loop.
type run struct {
	paused atomic.Bool
}

// Orchestrator coordinates translation runs. Multiple projects may run
// concurrently; at most one loop per project id is allowed.
type Orchestrator struct {
	projects store.ProjectStore
	chunks   store.ChunkStore
	gateway  Translator

	mu     sync.Mutex
	active map[string]*run

	// unitDelay is the fixed pause between consecutive provider calls,
	// on top of the gateway's own rate limiting.
	unitDelay time.Duration
	sleep     func(context.Context, time.Duration) error
	now       func() time.Time
}

// New creates an orchestrator over the given stores and gateway.
func New(projects store.ProjectStore, chunks store.ChunkStore, gateway Translator) *Orchestrator {
	return &Orchestrator{
		projects:  projects,
		chunks:    chunks,
		gateway:   gateway,
		active:    make(map[string]*run),
		unitDelay: 500 * time.Millisecond,
		sleep:     sleepContext,
		now:       time.Now,
	}
}

// Start runs the translation loop for the project until it completes,
// pauses or fails. It returns ErrAlreadyRunning if a loop is already
// active for the project id. The loop itself reports through cb; Start
// only returns pre-loop failures (unknown project, guard).
func (o *Orchestrator) Start(ctx context.Context, projectID string, cb Callbacks) error {
	o.mu.Lock()
	if _, exists := o.active[projectID]; exists {
		o.mu.Unlock()
		return ErrAlreadyRunning
	}
	r := &run{}
	o.active[projectID] = r
	o.mu.Unlock()

	defer o.deactivate(projectID, r)

	project, err := o.projects.Get(ctx, projectID)
	if err != nil {
		err = fmt.Errorf("failed to load project: %w", err)
		o.emitError(cb, err)
		return err
	}

	if err := o.runLoop(ctx, project, r, cb); err != nil {
		// Best effort: the store write may be what just failed.
		_ = o.projects.UpdateProgress(ctx, projectID, store.StatusError,
			project.Progress, project.CompletedChunks)
		o.emitError(cb, err)
	}
	return nil
}

// runLoop is the state machine body. Returning an error moves the
// project to the error status; returning nil means the loop ended in
// completed or paused.
func (o *Orchestrator) runLoop(ctx context.Context, project *store.Project, r *run, cb Callbacks) error {
	if err := o.projects.UpdateProgress(ctx, project.ID, store.StatusProcessing,
		project.Progress, project.CompletedChunks); err != nil {
		return fmt.Errorf("failed to mark project processing: %w", err)
	}

	chunks, err := o.ensureChunks(ctx, project)
	if err != nil {
		return err
	}

	totalUnits := len(chunks) * len(project.TargetLanguages)
	if totalUnits == 0 {
		if err := o.projects.UpdateProgress(ctx, project.ID, store.StatusCompleted, 100, 0); err != nil {
			return fmt.Errorf("failed to complete empty project: %w", err)
		}
		o.emitComplete(cb)
		return nil
	}

	// Resume support: already-persisted translations count as done
	// before any provider call is made.
	completedUnits := 0
	for _, c := range chunks {
		for _, lang := range project.TargetLanguages {
			if c.HasTranslation(lang) {
				completedUnits++
			}
		}
	}

	startedAt := o.now()
	unitsThisRun := 0
	tokensUsed := 0
	firstCall := true

	for _, lang := range project.TargetLanguages {
		if r.paused.Load() {
			break
		}
		langCompleted := 0
		for _, c := range chunks {
			if c.HasTranslation(lang) {
				langCompleted++
			}
		}

		for _, c := range chunks {
			if r.paused.Load() {
				break
			}
			if c.HasTranslation(lang) {
				continue
			}
			if c.RetryCount >= retryCeiling(project.Settings.MaxRetries) {
				// Abandoned after exhausting its retries; a reset is
				// needed to pick it up again.
				continue
			}
			if !o.isActive(project.ID, r) {
				// Reset raced with this run: stop without touching
				// the cleared state.
				return nil
			}

			if !firstCall {
				if err := o.sleep(ctx, o.unitDelay); err != nil {
					return err
				}
			}
			firstCall = false

			result, err := o.translateUnit(ctx, project, c, lang)
			if !o.isActive(project.ID, r) {
				return nil
			}
			if err != nil {
				var ce *provider.ConfigError
				if errors.As(err, &ce) && unitsThisRun == 0 && completedUnits == 0 {
					// Unconfigured provider before any work was done
					// fails the whole run.
					return err
				}
				if !provider.IsRetryable(err) && !isProviderFailure(err) {
					// Store failures and programming errors propagate.
					return err
				}
				if err := o.recordFailure(ctx, project, c, lang); err != nil {
					return err
				}
				continue
			}

			c.Translations[lang] = result
			c.Status = store.ChunkCompleted
			if err := o.chunks.SetTranslation(ctx, project.ID, c.ChunkIndex,
				lang, result, store.ChunkCompleted); err != nil {
				return fmt.Errorf("failed to persist translation: %w", err)
			}

			completedUnits++
			unitsThisRun++
			langCompleted++
			tokensUsed += internal.EstimateTokens(c.OriginalText) + internal.EstimateTokens(result)

			progress := float64(completedUnits) / float64(totalUnits) * 100
			if err := o.projects.UpdateProgress(ctx, project.ID,
				store.StatusProcessing, progress, langCompleted); err != nil {
				return fmt.Errorf("failed to persist progress: %w", err)
			}
			project.Progress = progress
			project.CompletedChunks = langCompleted

			o.emitProgress(cb, Progress{
				Percentage:             progress,
				CurrentLanguage:        lang,
				EstimatedTimeRemaining: estimateRemaining(o.now().Sub(startedAt), unitsThisRun, totalUnits-completedUnits),
				TokensUsed:             tokensUsed,
			})
		}
	}

	if r.paused.Load() {
		if err := o.projects.UpdateProgress(ctx, project.ID, store.StatusPaused,
			project.Progress, project.CompletedChunks); err != nil {
			return fmt.Errorf("failed to mark project paused: %w", err)
		}
		return nil
	}

	finalStatus := store.StatusCompleted
	finalProgress := float64(completedUnits) / float64(totalUnits) * 100
	if completedUnits == totalUnits {
		finalProgress = 100
	}
	if err := o.projects.UpdateProgress(ctx, project.ID, finalStatus,
		finalProgress, project.CompletedChunks); err != nil {
		return fmt.Errorf("failed to mark project completed: %w", err)
	}
	o.emitComplete(cb)
	return nil
}

// ensureChunks loads existing chunks or, on first run, splits the
// document and bulk-inserts them. Reusing existing chunks is what makes
// pause and resume work.
func (o *Orchestrator) ensureChunks(ctx context.Context, project *store.Project) ([]*store.Chunk, error) {
	chunks, err := o.chunks.ListByProject(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	if len(chunks) > 0 {
		return chunks, nil
	}

	pieces := chunker.Split(project.OriginalContent, project.Settings.ChunkSize)
	chunks = make([]*store.Chunk, len(pieces))
	for i, text := range pieces {
		chunks[i] = &store.Chunk{
			ProjectID:    project.ID,
			ChunkIndex:   i,
			OriginalText: text,
			Translations: map[string]string{},
			Status:       store.ChunkPending,
		}
	}
	if err := o.chunks.CreateBatch(ctx, chunks); err != nil {
		return nil, fmt.Errorf("failed to insert chunks: %w", err)
	}

	project.TotalChunks = len(chunks)
	if err := o.projects.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to record chunk count: %w", err)
	}
	return chunks, nil
}

func (o *Orchestrator) translateUnit(ctx context.Context, project *store.Project, c *store.Chunk, lang string) (string, error) {
	if err := o.chunks.UpdateStatus(ctx, project.ID, c.ChunkIndex, store.ChunkProcessing, c.RetryCount); err != nil {
		return "", fmt.Errorf("failed to mark chunk processing: %w", err)
	}
	return o.gateway.Translate(ctx, provider.Request{
		Text:               c.OriginalText,
		SourceLang:         project.SourceLanguage,
		TargetLang:         lang,
		Style:              project.Settings.TranslationStyle,
		PreserveFormatting: project.Settings.PreserveFormatting,
	})
}

// recordFailure increments the chunk's retry count. At the ceiling the
// chunk is marked error and abandoned for this language; below it the
// chunk stays pending and is picked up again on the next run. Failed
// units are not re-attempted within the same pass.
func (o *Orchestrator) recordFailure(ctx context.Context, project *store.Project, c *store.Chunk, lang string) error {
	c.RetryCount++
	status := store.ChunkPending
	if c.RetryCount >= retryCeiling(project.Settings.MaxRetries) {
		status = store.ChunkError
	}
	c.Status = status
	if err := o.chunks.UpdateStatus(ctx, project.ID, c.ChunkIndex, status, c.RetryCount); err != nil {
		return fmt.Errorf("failed to record chunk failure: %w", err)
	}
	return nil
}

// Pause flips the pause signal for the project and persists the paused
// status. An in-flight provider call is allowed to finish; no new unit
// is started afterwards.
func (o *Orchestrator) Pause(ctx context.Context, projectID string) error {
	o.mu.Lock()
	r, exists := o.active[projectID]
	o.mu.Unlock()
	if exists {
		r.paused.Store(true)
	}

	project, err := o.projects.Get(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to load project: %w", err)
	}
	if !exists && project.Status != store.StatusProcessing {
		// No run to signal and nothing mid-flight; leave terminal and
		// pending states as they are.
		return nil
	}
	return o.projects.UpdateProgress(ctx, projectID, store.StatusPaused,
		project.Progress, project.CompletedChunks)
}

// Reset destructively clears all translation state of the project:
// every chunk back to pending with an empty translations map and zero
// retries, project progress back to zero, status pending. Any active
// run is logically cancelled and will not write again.
func (o *Orchestrator) Reset(ctx context.Context, projectID string) error {
	o.mu.Lock()
	delete(o.active, projectID)
	o.mu.Unlock()

	if err := o.chunks.ResetProject(ctx, projectID); err != nil {
		return fmt.Errorf("failed to reset chunks: %w", err)
	}
	if err := o.projects.UpdateProgress(ctx, projectID, store.StatusPending, 0, 0); err != nil {
		return fmt.Errorf("failed to reset project: %w", err)
	}
	return nil
}

// IsRunning reports whether a loop is active for the project.
func (o *Orchestrator) IsRunning(projectID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, exists := o.active[projectID]
	return exists
}

func (o *Orchestrator) isActive(projectID string, r *run) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active[projectID] == r
}

// deactivate clears the guard only if this run still owns it; a reset
// may already have replaced or removed the entry.
func (o *Orchestrator) deactivate(projectID string, r *run) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active[projectID] == r {
		delete(o.active, projectID)
	}
}

// retryCeiling normalizes the per-chunk retry budget. A zero or
// negative setting means no retries: the first failure is final.
func retryCeiling(maxRetries int) int {
	if maxRetries < 1 {
		return 1
	}
	return maxRetries
}

// estimateRemaining derives an ETA from this run's observed rate. With
// nothing completed yet there is no rate, so it reports zero rather
// than dividing by zero.
func estimateRemaining(elapsed time.Duration, unitsDone, unitsLeft int) time.Duration {
	if unitsDone == 0 || elapsed <= 0 {
		return 0
	}
	perUnit := elapsed / time.Duration(unitsDone)
	return perUnit * time.Duration(unitsLeft)
}

// isProviderFailure reports whether err belongs to the provider error
// taxonomy at all (as opposed to store or programming errors).
func isProviderFailure(err error) bool {
	var ce *provider.ConfigError
	return provider.IsRetryable(err) || errors.As(err, &ce)
}

func (o *Orchestrator) emitProgress(cb Callbacks, p Progress) {
	if cb.OnProgress != nil {
		cb.OnProgress(p)
	}
}

func (o *Orchestrator) emitComplete(cb Callbacks) {
	if cb.OnComplete != nil {
		cb.OnComplete()
	}
}

func (o *Orchestrator) emitError(cb Callbacks, err error) {
	if cb.OnError != nil {
		cb.OnError(err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
