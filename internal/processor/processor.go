package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/polydoc/polydoc/internal/cli"
	"github.com/polydoc/polydoc/internal/export"
	"github.com/polydoc/polydoc/internal/orchestrator"
	"github.com/polydoc/polydoc/internal/provider"
	"github.com/polydoc/polydoc/internal/quality"
	"github.com/polydoc/polydoc/internal/store"
)

// Processor handles the main document translation logic
type Processor struct {
	flags *cli.Flags
	db    *store.DB
}

// NewProcessor creates a new document processor over the database at
// the configured path.
func NewProcessor(flags *cli.Flags) (*Processor, error) {
	dbPath := flags.DBPath
	if dbPath == "" {
		dbPath = viper.GetString("output.database")
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	return &Processor{flags: flags, db: db}, nil
}

// Close releases the underlying database.
func (p *Processor) Close() error {
	return p.db.Close()
}

// ProcessFile ingests a text file as a new project (or resumes the
// project given with --project), translates it into all target
// languages and exports the results.
func (p *Processor) ProcessFile(ctx context.Context, inputPath string) error {
	gateway, err := p.newGateway(ctx)
	if err != nil {
		return err
	}

	var project *store.Project
	if p.flags.ProjectID != "" {
		project, err = p.db.Get(ctx, p.flags.ProjectID)
		if err != nil {
			return fmt.Errorf("failed to load project '%s': %w", p.flags.ProjectID, err)
		}
		fmt.Printf("Resuming project: %s (%s)\n", project.Name, project.ID)
	} else {
		project, err = p.createProject(ctx, gateway, inputPath)
		if err != nil {
			return err
		}
		fmt.Printf("Created project: %s (%s)\n", project.Name, project.ID)
	}

	if err := p.runTranslation(ctx, gateway, project); err != nil {
		return err
	}

	// Reload: the orchestrator owns the persisted state.
	project, err = p.db.Get(ctx, project.ID)
	if err != nil {
		return fmt.Errorf("failed to reload project: %w", err)
	}
	if project.Status == store.StatusPaused {
		fmt.Printf("\nProject paused at %.1f%%. Re-run with --project %s to resume.\n",
			project.Progress, project.ID)
		return nil
	}

	if p.flags.AssessQuality {
		p.assessQuality(ctx, gateway, project)
	}

	if !p.flags.SkipExport {
		if err := p.exportProject(ctx, project); err != nil {
			return err
		}
	}

	p.printSummary(ctx, project)
	return nil
}

// createProject reads the input file and persists a new project for it.
func (p *Processor) createProject(ctx context.Context, gateway *provider.Gateway, inputPath string) (*store.Project, error) {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	content := string(data)

	if len(p.flags.TargetLangs) == 0 {
		return nil, fmt.Errorf("no target languages given (use --target es,fr,...)")
	}

	name := p.flags.ProjectName
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	}

	sourceLang := p.flags.SourceLang
	if sourceLang == "" || sourceLang == "auto" {
		fmt.Printf("Detecting source language...\n")
		detected, err := gateway.DetectLanguage(ctx, sampleText(content))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: language detection failed: %v\n", err)
			sourceLang = "auto"
		} else {
			sourceLang = detected
			fmt.Printf("Detected source language: %s\n", sourceLang)
		}
	}

	settings := store.DefaultSettings()
	settings.ChunkSize = p.flags.ChunkSize
	settings.MaxRetries = p.flags.MaxRetries
	settings.TranslationStyle = store.TranslationStyle(p.flags.Style)
	settings.PreserveFormatting = p.flags.PreserveFormatting
	settings.ContextAware = p.flags.ContextAware

	project := &store.Project{
		Name:            name,
		SourceLanguage:  sourceLang,
		TargetLanguages: p.flags.TargetLangs,
		OriginalContent: content,
		Settings:        settings,
	}
	if err := p.db.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return project, nil
}

// runTranslation drives the orchestrator, printing one progress line
// per completed translation unit.
func (p *Processor) runTranslation(ctx context.Context, gateway *provider.Gateway, project *store.Project) error {
	orch := orchestrator.New(p.db, p.db, gateway)

	var runErr error
	cb := orchestrator.Callbacks{
		OnProgress: func(pr orchestrator.Progress) {
			eta := ""
			if pr.EstimatedTimeRemaining > 0 {
				eta = fmt.Sprintf(", ETA %s", pr.EstimatedTimeRemaining.Round(time.Second))
			}
			fmt.Printf("  [%s] %.1f%% (~%d tokens%s)\n",
				pr.CurrentLanguage, pr.Percentage, pr.TokensUsed, eta)
		},
		OnComplete: func() {
			fmt.Printf("Translation complete.\n")
		},
		OnError: func(err error) {
			runErr = err
		},
	}

	fmt.Printf("Translating into %s...\n", strings.Join(project.TargetLanguages, ", "))
	if err := orch.Start(ctx, project.ID, cb); err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("translation failed: %w", runErr)
	}
	return nil
}

// assessQuality scores one sample chunk per language. Assessment never
// fails the run; unscorable output falls back to neutral values.
func (p *Processor) assessQuality(ctx context.Context, gateway *provider.Gateway, project *store.Project) {
	estimator := quality.NewEstimator(gateway)
	chunks, err := p.db.ListByProject(ctx, project.ID)
	if err != nil || len(chunks) == 0 {
		return
	}

	fmt.Printf("\nAssessing translation quality...\n")
	for _, lang := range project.TargetLanguages {
		var sampled *store.Chunk
		for _, c := range chunks {
			if c.HasTranslation(lang) {
				sampled = c
				break
			}
		}
		if sampled == nil {
			continue
		}
		score := estimator.Assess(ctx, sampled.OriginalText, sampled.Translations[lang], lang)
		fmt.Printf("  [%s] overall %d (accuracy %d, fluency %d, consistency %d, cultural %d)\n",
			lang, score.Overall, score.Accuracy, score.Fluency, score.Consistency, score.CulturalAdaptation)
	}
}

// exportProject writes one output file per target language.
func (p *Processor) exportProject(ctx context.Context, project *store.Project) error {
	format, err := export.ParseFormat(p.flags.ExportFormat)
	if err != nil {
		return err
	}

	texts, err := export.BuildLanguageTexts(ctx, p.db, project.ID, project.TargetLanguages)
	if err != nil {
		return fmt.Errorf("failed to assemble export documents: %w", err)
	}

	paths, err := export.WriteFiles(p.flags.OutputDir, project.Name, texts,
		project.TargetLanguages, format)
	if err != nil {
		return err
	}
	fmt.Printf("\nExported %d files:\n", len(paths))
	for _, path := range paths {
		fmt.Printf("  %s\n", path)
	}
	return nil
}

// printSummary prints the final per-language completion block.
func (p *Processor) printSummary(ctx context.Context, project *store.Project) {
	chunks, err := p.db.ListByProject(ctx, project.ID)
	if err != nil {
		return
	}

	fmt.Printf("\n=== Translation Summary ===\n")
	fmt.Printf("Project: %s (%s)\n", project.Name, project.ID)
	fmt.Printf("Source language: %s\n", project.SourceLanguage)
	fmt.Printf("Chunks: %d\n", len(chunks))
	failed := 0
	for _, lang := range project.TargetLanguages {
		done := 0
		for _, c := range chunks {
			if c.HasTranslation(lang) {
				done++
			}
		}
		fmt.Printf("  %s: %d/%d chunks translated\n", lang, done, len(chunks))
		failed += len(chunks) - done
	}
	if failed > 0 {
		fmt.Printf("Untranslated units: %d (re-run with --project %s to retry)\n",
			failed, project.ID)
	}
	fmt.Printf("===========================\n")
}

// ListProjects prints one line per stored project.
func (p *Processor) ListProjects(ctx context.Context) error {
	projects, err := p.db.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}
	if len(projects) == 0 {
		fmt.Println("No projects found.")
		return nil
	}
	for _, proj := range projects {
		fmt.Printf("%s  %-10s  %5.1f%%  %s -> %s  %s\n",
			proj.ID, proj.Status, proj.Progress,
			proj.SourceLanguage, strings.Join(proj.TargetLanguages, ","), proj.Name)
	}
	return nil
}

// ShowStatus prints the detailed state of one project.
func (p *Processor) ShowStatus(ctx context.Context, projectID string) error {
	project, err := p.db.Get(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to load project '%s': %w", projectID, err)
	}
	chunks, err := p.db.ListByProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to list chunks: %w", err)
	}

	fmt.Printf("Project:  %s\n", project.Name)
	fmt.Printf("ID:       %s\n", project.ID)
	fmt.Printf("Status:   %s\n", project.Status)
	fmt.Printf("Progress: %.1f%%\n", project.Progress)
	fmt.Printf("Source:   %s\n", project.SourceLanguage)
	fmt.Printf("Targets:  %s\n", strings.Join(project.TargetLanguages, ", "))
	fmt.Printf("Chunks:   %d\n", len(chunks))
	for _, lang := range project.TargetLanguages {
		done := 0
		for _, c := range chunks {
			if c.HasTranslation(lang) {
				done++
			}
		}
		fmt.Printf("  %s: %d/%d\n", lang, done, len(chunks))
	}
	return nil
}

// PauseProject marks the project paused so a later run resumes it.
func (p *Processor) PauseProject(ctx context.Context, projectID string) error {
	orch := orchestrator.New(p.db, p.db, nil)
	if err := orch.Pause(ctx, projectID); err != nil {
		return fmt.Errorf("failed to pause project: %w", err)
	}
	fmt.Printf("Project %s paused.\n", projectID)
	return nil
}

// ResetProject discards all translations of the project.
func (p *Processor) ResetProject(ctx context.Context, projectID string) error {
	orch := orchestrator.New(p.db, p.db, nil)
	if err := orch.Reset(ctx, projectID); err != nil {
		return fmt.Errorf("failed to reset project: %w", err)
	}
	fmt.Printf("Project %s reset; all translations discarded.\n", projectID)
	return nil
}

// DeleteProject removes the project and all its chunks.
func (p *Processor) DeleteProject(ctx context.Context, projectID string) error {
	if err := p.db.Delete(ctx, projectID); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	fmt.Printf("Project %s deleted.\n", projectID)
	return nil
}

// newGateway builds the provider gateway from flags, config file and
// the stored active provider, in that order of precedence.
func (p *Processor) newGateway(ctx context.Context) (*provider.Gateway, error) {
	cfg := provider.Config{
		Provider:          p.flags.Provider,
		APIKey:            cli.GetAPIKey(p.flags.Provider),
		BaseURL:           p.flags.BaseURL,
		Model:             p.flags.Model,
		RequestsPerMinute: p.flags.RequestsPerMinute,
	}

	// Fall back to the last persisted provider when nothing is
	// configured for this invocation.
	if cfg.APIKey == "" {
		if saved, err := p.db.GetActiveProvider(ctx); err == nil {
			cfg.Provider = saved.Provider
			cfg.APIKey = saved.APIKey
			if cfg.BaseURL == "" {
				cfg.BaseURL = saved.BaseURL
			}
			if cfg.Model == "" {
				cfg.Model = saved.Model
			}
			if saved.RequestsPerMinute > 0 {
				cfg.RequestsPerMinute = saved.RequestsPerMinute
			}
		}
	}

	gateway, err := provider.New(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Remember the working configuration for the next invocation.
	saveErr := p.db.SetActiveProvider(ctx, &store.ProviderConfig{
		Provider:          cfg.Provider,
		APIKey:            cfg.APIKey,
		BaseURL:           cfg.BaseURL,
		Model:             cfg.Model,
		RequestsPerMinute: cfg.RequestsPerMinute,
	})
	if saveErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to save provider config: %v\n", saveErr)
	}

	return gateway, nil
}

// sampleText returns the head of the document for language detection.
func sampleText(content string) string {
	const sampleSize = 500
	content = strings.TrimSpace(content)
	if len(content) <= sampleSize {
		return content
	}
	return content[:sampleSize]
}
