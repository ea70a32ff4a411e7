// Package extraction drives a paper from uploaded to extracted by mediating
// a long-running external parsing job: submit, poll, download the result
// archive, unpack it, and record the extracted markdown path.
package extraction

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"papermill/internal/config"
	"papermill/internal/fileutil"
	"papermill/internal/logging"
	"papermill/internal/paper"
	"papermill/internal/services"
	"papermill/internal/services/mineru"
)

// markdownFileName is the canonical extracted-document file inside the
// parsing result archive.
const markdownFileName = "full.md"

const (
	downloadRetryAttempts = 3
	downloadRetryDelay    = 2 * time.Second
)

// Outcome is the terminal result of one extraction run.
type Outcome int

const (
	// OutcomeCompleted means the markdown artifact was recovered and the
	// record reached extracted.
	OutcomeCompleted Outcome = iota
	// OutcomeFailed means the run ended in error (reported by the parser or
	// raised locally).
	OutcomeFailed
	// OutcomeTimedOut means the poll budget was exhausted before the job
	// resolved.
	OutcomeTimedOut
	// OutcomeStopped means a concurrent stop rewound the record while the
	// run was in flight, so the run abandoned its work without mutating it.
	OutcomeStopped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeStopped:
		return "stopped"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// ParsingClient is the subset of the parsing service the orchestrator needs.
type ParsingClient interface {
	CreateTask(ctx context.Context, sourceURL string) (string, error)
	GetTask(ctx context.Context, taskID string) (mineru.TaskStatus, error)
}

// ObjectDeleter removes the uploaded source object once extraction succeeds.
type ObjectDeleter interface {
	Delete(ctx context.Context, key string) error
}

// Orchestrator owns the extraction lifecycle for all papers.
type Orchestrator struct {
	store   *paper.Store
	parser  ParsingClient
	objects ObjectDeleter
	cfg     *config.Config
	logger  *slog.Logger

	httpClient *http.Client
	sleeper    func(time.Duration)
	wg         sync.WaitGroup
}

// Option customizes the orchestrator.
type Option func(*Orchestrator)

// WithHTTPClient overrides the archive download client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *Orchestrator) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithSleeper overrides how poll sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(o *Orchestrator) {
		if sleeper != nil {
			o.sleeper = sleeper
		}
	}
}

// NewOrchestrator wires the extraction orchestrator.
func NewOrchestrator(store *paper.Store, parser ParsingClient, objects ObjectDeleter, cfg *config.Config, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	downloadTimeout := 300 * time.Second
	if cfg.MinerU.DownloadTimeout > 0 {
		downloadTimeout = time.Duration(cfg.MinerU.DownloadTimeout) * time.Second
	}
	orch := &Orchestrator{
		store:      store,
		parser:     parser,
		objects:    objects,
		cfg:        cfg,
		logger:     logger.With(logging.String(logging.FieldComponent, "extraction")),
		httpClient: &http.Client{Timeout: downloadTimeout},
		sleeper:    time.Sleep,
	}
	for _, opt := range opts {
		opt(orch)
	}
	return orch
}

// Start submits a parsing job for the paper matching key and records the
// returned task id. It does not wait for the job: callers launch the poll via
// RunDetached (or Run directly).
func (o *Orchestrator) Start(ctx context.Context, key string) (string, error) {
	rec, err := o.store.GetByKey(ctx, key)
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", services.Wrap(services.ErrNotFound, "extraction", "start", "paper "+key, nil)
	}
	if rec.Status != paper.StatusUploaded {
		return "", services.Wrap(services.ErrInvalidState, "extraction", "start",
			fmt.Sprintf("paper %s has status %s, want %s", key, rec.Status, paper.StatusUploaded), nil)
	}

	if _, err := o.store.Update(ctx, key, func(p *paper.Paper) {
		p.Status = paper.StatusParsing
		p.ErrorMessage = ""
	}); err != nil {
		return "", err
	}

	taskID, err := o.parser.CreateTask(ctx, rec.SourceURL)
	if err != nil {
		o.fail(ctx, key, "submit parsing job: "+err.Error())
		return "", err
	}

	if _, err := o.store.Update(ctx, key, func(p *paper.Paper) {
		p.TaskID = taskID
	}); err != nil {
		return "", err
	}
	o.logger.Info("parsing job submitted",
		logging.String(logging.FieldPaperKey, key),
		logging.String(logging.FieldTaskID, taskID))
	return taskID, nil
}

// RunDetached launches Run in a background goroutine. Wait blocks on all
// detached runs.
func (o *Orchestrator) RunDetached(key, taskID string) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx := services.WithTaskID(services.WithPaperKey(context.Background(), key), taskID)
		if _, err := o.Run(ctx, key, taskID); err != nil {
			o.logger.Error("extraction run",
				logging.String(logging.FieldPaperKey, key),
				logging.String(logging.FieldTaskID, taskID),
				logging.Error(err))
		}
	}()
}

// Wait blocks until all detached runs have finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Run polls the parsing job to resolution and recovers the markdown artifact.
// It is safe to invoke for a freshly started job or for one resumed after a
// process restart. Every terminal transition re-checks the record's current
// status under the store lock, so a concurrent stop wins cleanly.
func (o *Orchestrator) Run(ctx context.Context, key, taskID string) (Outcome, error) {
	logger := o.logger.With(
		logging.String(logging.FieldPaperKey, key),
		logging.String(logging.FieldTaskID, taskID))

	status, outcome, err := o.poll(ctx, logger, key, taskID)
	if err != nil || outcome != OutcomeCompleted {
		return outcome, err
	}

	if ok := o.transitionIfInExtraction(ctx, key, paper.StatusDownloading, nil); !ok {
		logger.Info("extraction stopped before download")
		return OutcomeStopped, nil
	}

	markdownRel, err := o.retrieve(ctx, logger, taskID, status.FullZipURL)
	if err != nil {
		o.fail(ctx, key, err.Error())
		return OutcomeFailed, err
	}

	now := time.Now().UTC()
	committed := o.transitionIfInExtraction(ctx, key, paper.StatusExtracted, func(p *paper.Paper) {
		p.MarkdownPath = markdownRel
		p.ExtractedAt = &now
		p.ErrorMessage = ""
	})
	if !committed {
		logger.Info("extraction stopped before completion")
		return OutcomeStopped, nil
	}
	logger.Info("extraction complete", logging.String("markdown_path", markdownRel))

	o.cleanupSource(ctx, logger, key)
	return OutcomeCompleted, nil
}

// poll watches the parsing job until it resolves or the attempt budget runs
// out. A completed job returns OutcomeCompleted along with its final status.
func (o *Orchestrator) poll(ctx context.Context, logger *slog.Logger, key, taskID string) (mineru.TaskStatus, Outcome, error) {
	var empty mineru.TaskStatus
	interval := 10 * time.Second
	if o.cfg.MinerU.PollInterval > 0 {
		interval = time.Duration(o.cfg.MinerU.PollInterval) * time.Second
	}
	attempts := 300
	if o.cfg.MinerU.MaxPollAttempts > 0 {
		attempts = o.cfg.MinerU.MaxPollAttempts
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return empty, OutcomeStopped, err
		}
		status, err := o.parser.GetTask(ctx, taskID)
		switch {
		case err != nil:
			logger.Warn("poll parsing job", logging.Int("attempt", attempt), logging.Error(err))
		case status.State == mineru.StateDone:
			if status.FullZipURL == "" {
				failure := services.Wrap(services.ErrExternal, "extraction", "poll", "job done without archive url", nil)
				o.fail(ctx, key, failure.Error())
				return empty, OutcomeFailed, failure
			}
			return status, OutcomeCompleted, nil
		case status.State == mineru.StateFailed:
			message := status.ErrMsg
			if message == "" {
				message = "parsing job failed"
			}
			if o.transitionIfInExtraction(ctx, key, paper.StatusError, func(p *paper.Paper) {
				p.ErrorMessage = message
			}) {
				return empty, OutcomeFailed, nil
			}
			return empty, OutcomeStopped, nil
		}
		if attempt < attempts {
			o.sleeper(interval)
		}
	}

	message := fmt.Sprintf("parsing job did not resolve within %d attempts", attempts)
	if o.transitionIfInExtraction(ctx, key, paper.StatusError, func(p *paper.Paper) {
		p.ErrorMessage = message
	}) {
		return empty, OutcomeTimedOut, nil
	}
	return empty, OutcomeStopped, nil
}

// retrieve downloads and unpacks the result archive, returning the extracted
// markdown path relative to the working root.
func (o *Orchestrator) retrieve(ctx context.Context, logger *slog.Logger, taskID, archiveURL string) (string, error) {
	workRoot := o.cfg.Paths.WorkingDir
	jobDir := filepath.Join(workRoot, taskID)
	if err := fileutil.EnsureDir(jobDir); err != nil {
		return "", services.Wrap(services.ErrArtifact, "extraction", "retrieve", "create job directory", err)
	}

	archivePath := filepath.Join(jobDir, "result.zip")
	if err := o.download(ctx, archiveURL, archivePath); err != nil {
		return "", err
	}
	defer func() {
		if err := os.Remove(archivePath); err != nil {
			logger.Warn("remove downloaded archive", logging.Error(err))
		}
	}()

	if err := fileutil.Unzip(archivePath, jobDir); err != nil {
		return "", services.Wrap(services.ErrArtifact, "extraction", "retrieve", "unpack archive", err)
	}

	markdownPath, err := fileutil.FindFile(jobDir, markdownFileName)
	if err != nil {
		return "", services.Wrap(services.ErrArtifact, "extraction", "retrieve", "search unpacked tree", err)
	}
	if markdownPath == "" {
		return "", services.Wrap(services.ErrArtifact, "extraction", "retrieve",
			markdownFileName+" not found in result archive", nil)
	}
	rel, err := fileutil.RelToRoot(workRoot, markdownPath)
	if err != nil {
		return "", services.Wrap(services.ErrArtifact, "extraction", "retrieve", "relativize markdown path", err)
	}
	return rel, nil
}

// download fetches archiveURL to destPath with bounded retry.
func (o *Orchestrator) download(ctx context.Context, archiveURL, destPath string) error {
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, archiveURL, nil)
			if err != nil {
				return err
			}
			resp, err := o.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode >= http.StatusMultipleChoices {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
				return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			}
			out, err := os.Create(destPath)
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, resp.Body); err != nil {
				_ = out.Close()
				return err
			}
			return out.Close()
		},
		retry.Context(ctx),
		retry.Attempts(downloadRetryAttempts),
		retry.Delay(downloadRetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return services.Wrap(services.ErrExternal, "extraction", "download", "fetch result archive", err)
	}
	return nil
}

// Stop rewinds an in-flight extraction to uploaded. A record outside the
// extraction window reports not-applicable without error.
func (o *Orchestrator) Stop(ctx context.Context, key string) (bool, string, error) {
	rec, err := o.store.GetByKey(ctx, key)
	if err != nil {
		return false, "", err
	}
	if rec == nil {
		return false, "", services.Wrap(services.ErrNotFound, "extraction", "stop", "paper "+key, nil)
	}

	stopped := o.transitionIfInExtraction(ctx, key, paper.StatusUploaded, func(p *paper.Paper) {
		p.TaskID = ""
		p.ErrorMessage = ""
	})
	if !stopped {
		return false, "not in extraction state", nil
	}
	o.logger.Info("extraction stopped", logging.String(logging.FieldPaperKey, key))
	return true, "extraction stopped", nil
}

// Resume relaunches the poll for every record whose extraction was in flight
// when the previous process exited. Run once at startup.
func (o *Orchestrator) Resume(ctx context.Context) error {
	records, err := o.store.Load(ctx)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if !rec.Resumable() {
			continue
		}
		o.logger.Info("resuming extraction",
			logging.String(logging.FieldPaperKey, rec.Key),
			logging.String(logging.FieldTaskID, rec.TaskID),
			logging.String(logging.FieldStatus, string(rec.Status)))
		o.RunDetached(rec.Key, rec.TaskID)
	}
	return nil
}

// transitionIfInExtraction moves the record to next only while it is still in
// the extraction window, applying extra mutations under the same lock. It
// reports whether the transition was committed.
func (o *Orchestrator) transitionIfInExtraction(ctx context.Context, key string, next paper.Status, extra func(*paper.Paper)) bool {
	committed := false
	found, err := o.store.Update(ctx, key, func(p *paper.Paper) {
		if !p.InExtraction() {
			return
		}
		p.Status = next
		if extra != nil {
			extra(p)
		}
		committed = true
	})
	if err != nil {
		o.logger.Error("transition record",
			logging.String(logging.FieldPaperKey, key),
			logging.String(logging.FieldStatus, string(next)),
			logging.Error(err))
		return false
	}
	return found && committed
}

// fail marks the record as errored unless a concurrent stop already rewound it.
func (o *Orchestrator) fail(ctx context.Context, key, message string) {
	o.transitionIfInExtraction(ctx, key, paper.StatusError, func(p *paper.Paper) {
		p.ErrorMessage = message
	})
}

// cleanupSource deletes the uploaded PDF from object storage. Failures are
// logged only; the extracted record stands regardless.
func (o *Orchestrator) cleanupSource(ctx context.Context, logger *slog.Logger, key string) {
	if o.objects == nil {
		return
	}
	if err := o.objects.Delete(ctx, key); err != nil {
		logger.Warn("cleanup source object", logging.Error(err))
	}
}
