package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/polydoc/polydoc/internal/provider"
	"github.com/polydoc/polydoc/internal/store"
	"github.com/polydoc/polydoc/internal/testutil"
)

func newTestOrchestrator(db *testutil.MemoryStore, tr Translator) *Orchestrator {
	o := New(db, db, tr)
	o.unitDelay = 0
	o.sleep = func(context.Context, time.Duration) error { return nil }
	return o
}

func newTestProject(t *testing.T, db *testutil.MemoryStore, content string, langs []string) *store.Project {
	t.Helper()
	p := &store.Project{
		Name:            "test",
		SourceLanguage:  "en",
		TargetLanguages: langs,
		OriginalContent: content,
		Settings:        store.DefaultSettings(),
	}
	if err := db.Create(context.Background(), p); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return p
}

func TestStart_FullRun(t *testing.T) {
	db := testutil.NewMemoryStore()
	tr := testutil.NewMockTranslator()
	o := newTestOrchestrator(db, tr)
	p := newTestProject(t, db, "Hello world. How are you?", []string{"es", "fr"})
	p.Settings.ChunkSize = 15
	if err := db.Update(context.Background(), p); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	var completed bool
	var progresses []float64
	err := o.Start(context.Background(), p.ID, Callbacks{
		OnProgress: func(pr Progress) { progresses = append(progresses, pr.Percentage) },
		OnComplete: func() { completed = true },
		OnError:    func(err error) { t.Errorf("unexpected error callback: %v", err) },
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if !completed {
		t.Error("completion callback was not invoked")
	}

	got, err := db.Get(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != store.StatusCompleted {
		t.Errorf("status = %q, want %q", got.Status, store.StatusCompleted)
	}
	if got.Progress != 100 {
		t.Errorf("progress = %v, want 100", got.Progress)
	}
	if got.TotalChunks != 2 {
		t.Errorf("total chunks = %d, want 2", got.TotalChunks)
	}

	chunks, err := db.ListByProject(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("ListByProject failed: %v", err)
	}
	for _, c := range chunks {
		for _, lang := range []string{"es", "fr"} {
			if !c.HasTranslation(lang) {
				t.Errorf("chunk %d missing %s translation", c.ChunkIndex, lang)
			}
		}
	}

	// 2 chunks x 2 languages
	if len(progresses) != 4 {
		t.Fatalf("got %d progress events, want 4", len(progresses))
	}
	for i := 1; i < len(progresses); i++ {
		if progresses[i] <= progresses[i-1] {
			t.Errorf("progress not strictly increasing: %v", progresses)
		}
	}
	if progresses[len(progresses)-1] != 100 {
		t.Errorf("final progress event = %v, want 100", progresses[len(progresses)-1])
	}
}

func TestStart_SingleChunkTwoLanguages(t *testing.T) {
	db := testutil.NewMemoryStore()
	tr := testutil.NewMockTranslator()
	o := newTestOrchestrator(db, tr)
	p := newTestProject(t, db, "A. B. C.", []string{"es", "fr"})
	p.Settings.ChunkSize = 100
	if err := db.Update(context.Background(), p); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if err := o.Start(context.Background(), p.ID, Callbacks{}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	chunks, err := db.ListByProject(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("ListByProject failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1 (all sentences fit)", len(chunks))
	}
	if chunks[0].OriginalText != "A. B. C." {
		t.Errorf("chunk text = %q", chunks[0].OriginalText)
	}
	if !chunks[0].HasTranslation("es") || !chunks[0].HasTranslation("fr") {
		t.Error("missing translation for es or fr")
	}

	got, err := db.Get(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Progress != 100 || got.Status != store.StatusCompleted {
		t.Errorf("project = %q/%v, want completed/100", got.Status, got.Progress)
	}
}

func TestStart_LanguageMajorOrder(t *testing.T) {
	db := testutil.NewMemoryStore()
	tr := testutil.NewMockTranslator()
	o := newTestOrchestrator(db, tr)
	p := newTestProject(t, db, "One. Two.", []string{"es", "fr"})
	p.Settings.ChunkSize = 4
	if err := db.Update(context.Background(), p); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if err := o.Start(context.Background(), p.ID, Callbacks{}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	want := []string{"One.|es", "Two.|es", "One.|fr", "Two.|fr"}
	if len(tr.Calls) != len(want) {
		t.Fatalf("got %d calls, want %d: %v", len(tr.Calls), len(want), tr.Calls)
	}
	for i, key := range want {
		if tr.Calls[i] != key {
			t.Errorf("call %d = %q, want %q", i, tr.Calls[i], key)
		}
	}
}

func TestStart_AlreadyRunning(t *testing.T) {
	db := testutil.NewMemoryStore()
	tr := testutil.NewMockTranslator()
	o := newTestOrchestrator(db, tr)
	p := newTestProject(t, db, "Hello.", []string{"es"})

	slow := newGatedTranslator(tr)
	o.gateway = slow

	done := make(chan error, 1)
	go func() {
		done <- o.Start(context.Background(), p.ID, Callbacks{})
	}()
	gate := <-slow.calls

	if !o.IsRunning(p.ID) {
		t.Error("IsRunning = false while loop is active")
	}
	if err := o.Start(context.Background(), p.ID, Callbacks{}); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start = %v, want ErrAlreadyRunning", err)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	if o.IsRunning(p.ID) {
		t.Error("IsRunning = true after loop finished")
	}
}

// gatedTranslator holds every provider call until the test releases its
// gate, so runs can be observed and interleaved mid-flight.
type gatedTranslator struct {
	inner Translator
	calls chan chan struct{}
}

func newGatedTranslator(inner Translator) *gatedTranslator {
	return &gatedTranslator{inner: inner, calls: make(chan chan struct{})}
}

func (g *gatedTranslator) Translate(ctx context.Context, req provider.Request) (string, error) {
	gate := make(chan struct{})
	g.calls <- gate
	<-gate
	return g.inner.Translate(ctx, req)
}

func TestReset_DiscardsInFlightResult(t *testing.T) {
	db := testutil.NewMemoryStore()
	tr := testutil.NewMockTranslator()
	o := newTestOrchestrator(db, tr)
	p := newTestProject(t, db, "Hello.", []string{"es"})

	slow := newGatedTranslator(tr)
	o.gateway = slow

	done := make(chan error, 1)
	go func() {
		done <- o.Start(context.Background(), p.ID, Callbacks{
			OnError: func(err error) { t.Errorf("unexpected error callback: %v", err) },
		})
	}()
	gate := <-slow.calls

	// Reset while the provider call is in flight, then let it finish.
	if err := o.Reset(context.Background(), p.ID); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	chunk, err := db.GetChunk(context.Background(), p.ID, 0)
	if err != nil {
		t.Fatalf("GetChunk failed: %v", err)
	}
	if len(chunk.Translations) != 0 {
		t.Errorf("in-flight result persisted after reset: %v", chunk.Translations)
	}
	if chunk.Status != store.ChunkPending || chunk.RetryCount != 0 {
		t.Errorf("chunk = %q/%d, want pending/0", chunk.Status, chunk.RetryCount)
	}

	got, err := db.Get(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != store.StatusPending || got.Progress != 0 {
		t.Errorf("project = %q/%v, want pending/0", got.Status, got.Progress)
	}
}

func TestStart_NewRunSurvivesStaleRunCleanup(t *testing.T) {
	db := testutil.NewMemoryStore()
	tr := testutil.NewMockTranslator()
	o := newTestOrchestrator(db, tr)
	p := newTestProject(t, db, "Hello.", []string{"es"})

	slow := newGatedTranslator(tr)
	o.gateway = slow

	first := make(chan error, 1)
	go func() {
		first <- o.Start(context.Background(), p.ID, Callbacks{})
	}()
	gate1 := <-slow.calls

	if err := o.Reset(context.Background(), p.ID); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	second := make(chan error, 1)
	go func() {
		second <- o.Start(context.Background(), p.ID, Callbacks{})
	}()
	gate2 := <-slow.calls

	// The stale run finishes first; its deferred cleanup must not
	// deactivate the run that replaced it.
	close(gate1)
	if err := <-first; err != nil {
		t.Fatalf("stale run failed: %v", err)
	}
	if !o.IsRunning(p.ID) {
		t.Fatal("replacement run was deactivated by the stale run's cleanup")
	}

	close(gate2)
	if err := <-second; err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	got, err := db.Get(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != store.StatusCompleted || got.Progress != 100 {
		t.Errorf("project = %q/%v, want completed/100", got.Status, got.Progress)
	}
	chunk, err := db.GetChunk(context.Background(), p.ID, 0)
	if err != nil {
		t.Fatalf("GetChunk failed: %v", err)
	}
	if !chunk.HasTranslation("es") {
		t.Error("replacement run did not persist its translation")
	}
}

func TestStart_ResumeSkipsPersistedTranslations(t *testing.T) {
	db := testutil.NewMemoryStore()
	tr := testutil.NewMockTranslator()
	o := newTestOrchestrator(db, tr)
	p := newTestProject(t, db, "One. Two.", []string{"es"})
	p.Settings.ChunkSize = 4
	if err := db.Update(context.Background(), p); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if err := o.Start(context.Background(), p.ID, Callbacks{}); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	if n := tr.CallCount("One.", "es"); n != 1 {
		t.Fatalf("first run called One.|es %d times, want 1", n)
	}

	// A second run over the same project must not re-translate
	// anything.
	if err := o.Start(context.Background(), p.ID, Callbacks{}); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}
	if n := tr.CallCount("One.", "es"); n != 1 {
		t.Errorf("One.|es translated %d times across two runs, want 1", n)
	}
	if n := tr.CallCount("Two.", "es"); n != 1 {
		t.Errorf("Two.|es translated %d times across two runs, want 1", n)
	}
}

func TestPause_StopsAtUnitBoundary(t *testing.T) {
	db := testutil.NewMemoryStore()
	tr := testutil.NewMockTranslator()
	o := newTestOrchestrator(db, tr)
	p := newTestProject(t, db, "One. Two. Three.", []string{"es"})
	p.Settings.ChunkSize = 4
	if err := db.Update(context.Background(), p); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	var completed bool
	cb := Callbacks{
		OnComplete: func() { completed = true },
		OnProgress: func(pr Progress) {
			if pr.Percentage > 40 {
				return
			}
			// Pause after the first unit finished.
			if err := o.Pause(context.Background(), p.ID); err != nil {
				t.Errorf("Pause failed: %v", err)
			}
		},
	}
	if err := o.Start(context.Background(), p.ID, cb); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if completed {
		t.Error("completion callback fired on a paused run")
	}
	got, err := db.Get(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != store.StatusPaused {
		t.Errorf("status = %q, want %q", got.Status, store.StatusPaused)
	}
	if len(tr.Calls) != 1 {
		t.Errorf("translator called %d times after pause, want 1", len(tr.Calls))
	}

	// Resuming finishes the remaining units without redoing the first.
	completed = false
	cb.OnProgress = nil
	if err := o.Start(context.Background(), p.ID, cb); err != nil {
		t.Fatalf("resume Start failed: %v", err)
	}
	if !completed {
		t.Error("resume did not complete")
	}
	if n := tr.CallCount("One.", "es"); n != 1 {
		t.Errorf("paused unit re-translated: %d calls", n)
	}
}

func TestPause_LeavesCompletedProjectUntouched(t *testing.T) {
	db := testutil.NewMemoryStore()
	tr := testutil.NewMockTranslator()
	o := newTestOrchestrator(db, tr)
	p := newTestProject(t, db, "Hello.", []string{"es"})

	if err := o.Start(context.Background(), p.ID, Callbacks{}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := o.Pause(context.Background(), p.ID); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}

	got, err := db.Get(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != store.StatusCompleted {
		t.Errorf("status = %q after pausing a finished project, want %q", got.Status, store.StatusCompleted)
	}
}

func TestReset_ClearsAllTranslationState(t *testing.T) {
	db := testutil.NewMemoryStore()
	tr := testutil.NewMockTranslator()
	o := newTestOrchestrator(db, tr)
	p := newTestProject(t, db, "One. Two.", []string{"es"})
	p.Settings.ChunkSize = 4
	if err := db.Update(context.Background(), p); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if err := o.Start(context.Background(), p.ID, Callbacks{}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := o.Reset(context.Background(), p.ID); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	got, err := db.Get(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != store.StatusPending {
		t.Errorf("status = %q, want %q", got.Status, store.StatusPending)
	}
	if got.Progress != 0 || got.CompletedChunks != 0 {
		t.Errorf("progress = %v/%d, want 0/0", got.Progress, got.CompletedChunks)
	}

	chunks, err := db.ListByProject(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("ListByProject failed: %v", err)
	}
	for _, c := range chunks {
		if len(c.Translations) != 0 {
			t.Errorf("chunk %d still has translations after reset", c.ChunkIndex)
		}
		if c.Status != store.ChunkPending || c.RetryCount != 0 {
			t.Errorf("chunk %d = %q/%d, want pending/0", c.ChunkIndex, c.Status, c.RetryCount)
		}
		if c.OriginalText == "" {
			t.Errorf("chunk %d lost its original text", c.ChunkIndex)
		}
	}
}

func TestStart_TransientFailureRecoversOnNextRun(t *testing.T) {
	db := testutil.NewMemoryStore()
	tr := testutil.NewMockTranslator()
	tr.Errors["One.|es"] = &provider.ProviderError{Err: errors.New("upstream hiccup")}
	tr.FailuresLeft["One.|es"] = 1
	o := newTestOrchestrator(db, tr)
	p := newTestProject(t, db, "One. Two.", []string{"es"})
	p.Settings.ChunkSize = 4
	if err := db.Update(context.Background(), p); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	// First run: One. fails once, Two. succeeds; run still completes.
	if err := o.Start(context.Background(), p.ID, Callbacks{}); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	chunk, err := db.GetChunk(context.Background(), p.ID, 0)
	if err != nil {
		t.Fatalf("GetChunk failed: %v", err)
	}
	if chunk.HasTranslation("es") {
		t.Fatal("failed unit unexpectedly has a translation")
	}
	if chunk.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", chunk.RetryCount)
	}

	// Second run picks the failed unit back up and succeeds.
	if err := o.Start(context.Background(), p.ID, Callbacks{}); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}
	chunk, err = db.GetChunk(context.Background(), p.ID, 0)
	if err != nil {
		t.Fatalf("GetChunk failed: %v", err)
	}
	if !chunk.HasTranslation("es") {
		t.Error("failed unit was not retried on the next run")
	}
	if n := tr.CallCount("Two.", "es"); n != 1 {
		t.Errorf("healthy unit re-translated: %d calls", n)
	}
}

func TestStart_RetryCeilingAbandonsChunk(t *testing.T) {
	db := testutil.NewMemoryStore()
	tr := testutil.NewMockTranslator()
	tr.Errors["Bad.|es"] = &provider.ProviderError{Err: errors.New("permanently broken")}
	o := newTestOrchestrator(db, tr)
	p := newTestProject(t, db, "Bad. Good.", []string{"es"})
	p.Settings.ChunkSize = 4
	p.Settings.MaxRetries = 2
	if err := db.Update(context.Background(), p); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := o.Start(context.Background(), p.ID, Callbacks{}); err != nil {
			t.Fatalf("run %d failed: %v", i+1, err)
		}
	}

	chunk, err := db.GetChunk(context.Background(), p.ID, 0)
	if err != nil {
		t.Fatalf("GetChunk failed: %v", err)
	}
	if chunk.Status != store.ChunkError {
		t.Errorf("chunk status = %q, want %q", chunk.Status, store.ChunkError)
	}
	if chunk.RetryCount != 2 {
		t.Errorf("retry count = %d, want 2 (ceiling)", chunk.RetryCount)
	}
	if n := tr.CallCount("Bad.", "es"); n != 2 {
		t.Errorf("broken unit attempted %d times, want 2", n)
	}
}

func TestStart_ZeroRetryBudgetAbandonsOnFirstFailure(t *testing.T) {
	db := testutil.NewMemoryStore()
	tr := testutil.NewMockTranslator()
	tr.Errors["Bad.|es"] = &provider.ProviderError{Err: errors.New("permanently broken")}
	o := newTestOrchestrator(db, tr)
	p := newTestProject(t, db, "Bad. Good.", []string{"es"})
	p.Settings.ChunkSize = 4
	p.Settings.MaxRetries = 0
	if err := db.Update(context.Background(), p); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := o.Start(context.Background(), p.ID, Callbacks{}); err != nil {
			t.Fatalf("run %d failed: %v", i+1, err)
		}
	}

	chunk, err := db.GetChunk(context.Background(), p.ID, 0)
	if err != nil {
		t.Fatalf("GetChunk failed: %v", err)
	}
	if chunk.Status != store.ChunkError {
		t.Errorf("chunk status = %q, want %q", chunk.Status, store.ChunkError)
	}
	if chunk.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", chunk.RetryCount)
	}
	if n := tr.CallCount("Bad.", "es"); n != 1 {
		t.Errorf("broken unit attempted %d times with no retry budget, want 1", n)
	}
}

func TestStart_UnconfiguredProviderFailsRun(t *testing.T) {
	db := testutil.NewMemoryStore()
	tr := testutil.NewMockTranslator()
	cfgErr := &provider.ConfigError{Reason: "no api key configured"}
	tr.Errors["Hello.|es"] = cfgErr
	o := newTestOrchestrator(db, tr)
	p := newTestProject(t, db, "Hello.", []string{"es"})

	var reported error
	err := o.Start(context.Background(), p.ID, Callbacks{
		OnError: func(err error) { reported = err },
	})
	if err != nil {
		t.Fatalf("Start returned %v, want nil (loop errors go to the callback)", err)
	}
	var ce *provider.ConfigError
	if !errors.As(reported, &ce) {
		t.Fatalf("error callback got %v, want a config error", reported)
	}

	got, err := db.Get(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != store.StatusError {
		t.Errorf("status = %q, want %q", got.Status, store.StatusError)
	}
}

func TestStart_StoreFailureReportsError(t *testing.T) {
	db := testutil.NewMemoryStore()
	tr := testutil.NewMockTranslator()
	o := newTestOrchestrator(db, tr)
	p := newTestProject(t, db, "Hello.", []string{"es"})
	db.Errors["SetTranslation"] = errors.New("disk full")

	var reported error
	err := o.Start(context.Background(), p.ID, Callbacks{
		OnError: func(err error) { reported = err },
	})
	if err != nil {
		t.Fatalf("Start returned %v, want nil", err)
	}
	if reported == nil {
		t.Fatal("store failure was not reported through the error callback")
	}
}

func TestStart_ChunkStatusWriteFailureFailsRun(t *testing.T) {
	db := testutil.NewMemoryStore()
	tr := testutil.NewMockTranslator()
	o := newTestOrchestrator(db, tr)
	p := newTestProject(t, db, "Hello.", []string{"es"})
	db.Errors["UpdateStatus"] = errors.New("disk full")

	var reported error
	err := o.Start(context.Background(), p.ID, Callbacks{
		OnError: func(err error) { reported = err },
	})
	if err != nil {
		t.Fatalf("Start returned %v, want nil", err)
	}
	if reported == nil {
		t.Fatal("chunk status write failure was not reported")
	}
	if len(tr.Calls) != 0 {
		t.Errorf("translator called %d times after the status write failed, want 0", len(tr.Calls))
	}

	got, err := db.Get(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != store.StatusError {
		t.Errorf("status = %q, want %q", got.Status, store.StatusError)
	}
}

func TestStart_UnknownProject(t *testing.T) {
	db := testutil.NewMemoryStore()
	o := newTestOrchestrator(db, testutil.NewMockTranslator())

	err := o.Start(context.Background(), "no-such-project", Callbacks{})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Start = %v, want ErrNotFound", err)
	}
}

func TestStart_EmptyDocumentCompletesImmediately(t *testing.T) {
	db := testutil.NewMemoryStore()
	tr := testutil.NewMockTranslator()
	o := newTestOrchestrator(db, tr)
	p := newTestProject(t, db, "   \n  ", []string{"es"})

	var completed bool
	err := o.Start(context.Background(), p.ID, Callbacks{
		OnComplete: func() { completed = true },
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !completed {
		t.Error("empty project did not complete")
	}
	if len(tr.Calls) != 0 {
		t.Errorf("translator called %d times for an empty document", len(tr.Calls))
	}

	got, err := db.Get(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != store.StatusCompleted || got.Progress != 100 {
		t.Errorf("project = %q/%v, want completed/100", got.Status, got.Progress)
	}
}

func TestEstimateRemaining(t *testing.T) {
	if got := estimateRemaining(0, 0, 10); got != 0 {
		t.Errorf("no units done: got %v, want 0", got)
	}
	if got := estimateRemaining(10*time.Second, 2, 4); got != 20*time.Second {
		t.Errorf("got %v, want 20s", got)
	}
	if got := estimateRemaining(10*time.Second, 2, 0); got != 0 {
		t.Errorf("nothing left: got %v, want 0", got)
	}
}
