// Package analysis drives a paper from extracted to done by translating its
// markdown section-by-section with bounded parallelism and persisting the
// assembled result as a JSON artifact.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"papermill/internal/config"
	"papermill/internal/fileutil"
	"papermill/internal/logging"
	"papermill/internal/paper"
	"papermill/internal/services"
)

const artifactFileName = "analysis.json"

const translationPrompt = "You are an expert academic translator. Translate the following paper section " +
	"into clear English while preserving its markdown structure. Keep every block-level " +
	"mathematical formula ($$...$$) verbatim, and after each formula append a short " +
	"explanation of what it expresses."

// failureMarker prefixes the original body of a section whose translation
// failed, so partial results remain usable.
const failureMarker = "[translation failed]"

// Completer is the LLM call used to translate one section.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// SectionResult is the outcome of one section's translation, tagged with the
// section's original position so assembly can restore document order.
type SectionResult struct {
	Index  int    `json:"index"`
	Title  string `json:"title"`
	Text   string `json:"text"`
	Failed bool   `json:"failed"`
}

// Artifact is the persisted analysis result.
type Artifact struct {
	Key        string          `json:"key"`
	Model      string          `json:"model"`
	Sections   []SectionResult `json:"sections"`
	Combined   string          `json:"combined"`
	AnalyzedAt time.Time       `json:"analyzed_at"`
}

// Orchestrator owns the analysis lifecycle for all papers.
type Orchestrator struct {
	store     *paper.Store
	completer Completer
	cfg       *config.Config
	logger    *slog.Logger
}

// NewOrchestrator wires the analysis orchestrator.
func NewOrchestrator(store *paper.Store, completer Completer, cfg *config.Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		store:     store,
		completer: completer,
		cfg:       cfg,
		logger:    logger.With(logging.String(logging.FieldComponent, "analysis")),
	}
}

// Start runs the full analysis for the paper matching key: split the
// extracted markdown into sections, translate them with bounded concurrency,
// reassemble in document order, persist the artifact, and mark the record
// done. A single section's failure does not abort the batch.
func (o *Orchestrator) Start(ctx context.Context, key string) (string, error) {
	rec, err := o.store.GetByKey(ctx, key)
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", services.Wrap(services.ErrNotFound, "analysis", "start", "paper "+key, nil)
	}
	if rec.Status != paper.StatusExtracted {
		return "", services.Wrap(services.ErrInvalidState, "analysis", "start",
			fmt.Sprintf("paper %s has status %s, want %s", key, rec.Status, paper.StatusExtracted), nil)
	}

	markdownPath := fileutil.ResolveUnderRoot(o.cfg.Paths.WorkingDir, rec.MarkdownPath)
	content, err := os.ReadFile(markdownPath)
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, "analysis", "start", "read extracted document", err)
	}

	if _, err := o.store.Update(ctx, key, func(p *paper.Paper) {
		p.Status = paper.StatusAnalyzing
		p.ErrorMessage = ""
	}); err != nil {
		return "", err
	}

	artifactRel, err := o.analyze(ctx, rec.Key, markdownPath, string(content))
	if err != nil {
		o.markFailed(ctx, key, err.Error())
		return "", err
	}

	now := time.Now().UTC()
	if _, err := o.store.Update(ctx, key, func(p *paper.Paper) {
		p.Status = paper.StatusDone
		p.AnalysisPath = artifactRel
		p.AnalyzedAt = &now
	}); err != nil {
		return "", err
	}
	o.logger.Info("analysis complete",
		logging.String(logging.FieldPaperKey, key),
		logging.String("analysis_path", artifactRel))
	return artifactRel, nil
}

// analyze translates the sections and writes the artifact next to the source
// document, returning the artifact path relative to the working root.
func (o *Orchestrator) analyze(ctx context.Context, key, markdownPath, markdown string) (string, error) {
	sections := ParseSections(markdown)
	results := o.translateAll(ctx, key, sections)

	artifact := Artifact{
		Key:        key,
		Model:      o.cfg.LLM.Model,
		Sections:   results,
		Combined:   assemble(results),
		AnalyzedAt: time.Now().UTC(),
	}
	encoded, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return "", services.Wrap(services.ErrArtifact, "analysis", "persist", "marshal artifact", err)
	}

	artifactPath := filepath.Join(filepath.Dir(markdownPath), artifactFileName)
	if err := os.WriteFile(artifactPath, encoded, 0o644); err != nil {
		return "", services.Wrap(services.ErrArtifact, "analysis", "persist", "write artifact", err)
	}
	rel, err := fileutil.RelToRoot(o.cfg.Paths.WorkingDir, artifactPath)
	if err != nil {
		return "", services.Wrap(services.ErrArtifact, "analysis", "persist", "relativize artifact path", err)
	}
	return rel, nil
}

// translateAll fans the sections out to the LLM under the configured
// concurrency cap and returns results sorted back into document order.
func (o *Orchestrator) translateAll(ctx context.Context, key string, sections []Section) []SectionResult {
	limit := 5
	if o.cfg.Analysis.MaxConcurrentSections > 0 {
		limit = o.cfg.Analysis.MaxConcurrentSections
	}

	results := make([]SectionResult, len(sections))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(limit)

	for i, section := range sections {
		i, section := i, section
		group.Go(func() error {
			results[i] = o.translateOne(groupCtx, key, i, section)
			return nil
		})
	}
	// Workers never return errors; failures land in their result slot.
	_ = group.Wait()

	sort.Slice(results, func(a, b int) bool { return results[a].Index < results[b].Index })
	return results
}

func (o *Orchestrator) translateOne(ctx context.Context, key string, index int, section Section) SectionResult {
	result := SectionResult{Index: index, Title: section.Title}
	if section.Body == "" {
		return result
	}
	translated, err := o.completer.Complete(ctx, translationPrompt, section.Body)
	if err != nil {
		o.logger.Warn("translate section",
			logging.String(logging.FieldPaperKey, key),
			logging.Int("section", index),
			logging.Error(err))
		result.Failed = true
		result.Text = failureMarker + "\n" + section.Body
		return result
	}
	result.Text = translated
	return result
}

// assemble concatenates titled sections with blank-line separation, restoring
// original document order.
func assemble(results []SectionResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		switch {
		case r.Title != "" && r.Text != "":
			parts = append(parts, r.Title+"\n"+r.Text)
		case r.Title != "":
			parts = append(parts, r.Title)
		default:
			parts = append(parts, r.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

func (o *Orchestrator) markFailed(ctx context.Context, key, message string) {
	if _, err := o.store.Update(ctx, key, func(p *paper.Paper) {
		p.SetFailed(message)
	}); err != nil {
		o.logger.Error("record analysis failure",
			logging.String(logging.FieldPaperKey, key),
			logging.Error(err))
	}
}
