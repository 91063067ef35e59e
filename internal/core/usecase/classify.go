package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kirillkom/docrepo-assistant/internal/core/domain"
	"github.com/kirillkom/docrepo-assistant/internal/core/ports"
)

const (
	classifyLockPrefix       = "classify:"
	DefaultClassifierTimeout = 30 * time.Second
)

// automaticTagger adds a label to a persisted document.
type automaticTagger interface {
	ApplyAutomaticTag(ctx context.Context, documentID, label string) (*domain.Document, error)
}

type ClassificationWorkflow struct {
	store      ports.DocumentStore
	classifier ports.DocumentClassifier
	tagger     automaticTagger
	locker     ports.DocumentLocker
	observer   ports.WorkflowObserver
	policy     domain.AutoTagPolicy
	timeout    time.Duration

	mu   sync.Mutex
	runs map[string]*classificationRun
}

type WorkflowOption func(*ClassificationWorkflow)

func WithClassifierTimeout(timeout time.Duration) WorkflowOption {
	return func(w *ClassificationWorkflow) {
		if timeout > 0 {
			w.timeout = timeout
		}
	}
}

func WithWorkflowObserver(observer ports.WorkflowObserver) WorkflowOption {
	return func(w *ClassificationWorkflow) {
		if observer != nil {
			w.observer = observer
		}
	}
}

func NewClassificationWorkflow(
	store ports.DocumentStore,
	classifier ports.DocumentClassifier,
	tagger automaticTagger,
	locker ports.DocumentLocker,
	policy domain.AutoTagPolicy,
	opts ...WorkflowOption,
) *ClassificationWorkflow {
	w := &ClassificationWorkflow{
		store:      store,
		classifier: classifier,
		tagger:     tagger,
		locker:     locker,
		observer:   noopObserver{},
		policy:     policy,
		timeout:    DefaultClassifierTimeout,
		runs:       make(map[string]*classificationRun),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type classificationRun struct {
	state   atomic.Value
	alive   atomic.Bool
	cancel  context.CancelFunc
	release func()
}

func (r *classificationRun) setState(state domain.WorkflowState) { r.state.Store(state) }

func (r *classificationRun) current() domain.WorkflowState {
	state, _ := r.state.Load().(domain.WorkflowState)
	if state == "" {
		return domain.StateIdle
	}
	return state
}

func (r *classificationRun) live(ctx context.Context) bool {
	return r.alive.Load() && ctx.Err() == nil
}

// Classify runs Fetching, Classifying and, when the policy matches, Tagging
// for one document. A second run for the same document while one is active
// fails with ErrBusy. The outcome is returned for both Done and Failed runs;
// Failed runs also return the stage error.
func (w *ClassificationWorkflow) Classify(ctx context.Context, documentID string) (*domain.ClassificationOutcome, error) {
	run, runCtx, err := w.begin(ctx, documentID)
	if err != nil {
		if domain.IsKind(err, domain.ErrBusy) {
			w.observer.ObserveBusy()
		}
		return nil, err
	}
	defer w.finish(documentID, run)

	start := time.Now()
	outcome, runErr := w.execute(runCtx, documentID, run)
	duration := time.Since(start)
	w.observer.ObserveClassification(*outcome, duration)

	attrs := []any{
		"document_id", documentID,
		"state", outcome.State,
		"tagged", outcome.Tagged,
		"duration_ms", duration.Milliseconds(),
	}
	if runErr != nil {
		slog.Warn("classification_failed", append(attrs, "failed_stage", outcome.FailedStage, "error", runErr)...)
		return outcome, runErr
	}
	slog.Info("classification_finished", attrs...)
	return outcome, nil
}

// Abandon marks the active run for documentID as abandoned. No tag is applied
// after abandonment and the in-flight classifier call is cancelled.
func (w *ClassificationWorkflow) Abandon(documentID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	run, ok := w.runs[documentID]
	if !ok || !run.current().Active() {
		return false
	}
	run.alive.Store(false)
	run.cancel()
	return true
}

func (w *ClassificationWorkflow) State(documentID string) domain.WorkflowState {
	w.mu.Lock()
	defer w.mu.Unlock()

	run, ok := w.runs[documentID]
	if !ok {
		return domain.StateIdle
	}
	return run.current()
}

func (w *ClassificationWorkflow) begin(ctx context.Context, documentID string) (*classificationRun, context.Context, error) {
	w.mu.Lock()
	if existing, ok := w.runs[documentID]; ok && existing.current().Active() {
		w.mu.Unlock()
		return nil, nil, domain.WrapError(domain.ErrBusy, "classify document", fmt.Errorf("document %s", documentID))
	}
	runCtx, cancel := context.WithCancel(ctx)
	run := &classificationRun{cancel: cancel}
	run.setState(domain.StateFetching)
	run.alive.Store(true)
	w.runs[documentID] = run
	w.mu.Unlock()

	release, ok, err := w.locker.TryAcquire(runCtx, classifyLockPrefix+documentID)
	if err != nil || !ok {
		w.finish(documentID, run)
		if err != nil {
			return nil, nil, fmt.Errorf("acquire classification guard: %w", err)
		}
		return nil, nil, domain.WrapError(domain.ErrBusy, "classify document", fmt.Errorf("document %s is classified elsewhere", documentID))
	}
	run.release = release
	return run, runCtx, nil
}

func (w *ClassificationWorkflow) finish(documentID string, run *classificationRun) {
	w.mu.Lock()
	if w.runs[documentID] == run {
		delete(w.runs, documentID)
	}
	w.mu.Unlock()

	run.cancel()
	if run.release != nil {
		run.release()
	}
}

func (w *ClassificationWorkflow) execute(ctx context.Context, documentID string, run *classificationRun) (*domain.ClassificationOutcome, error) {
	outcome := &domain.ClassificationOutcome{DocumentID: documentID}
	fail := func(stage domain.WorkflowState, err error) (*domain.ClassificationOutcome, error) {
		run.setState(domain.StateFailed)
		outcome.State = domain.StateFailed
		outcome.FailedStage = stage
		outcome.Message = domain.UserMessage(err)
		return outcome, err
	}

	run.setState(domain.StateFetching)
	file, err := w.store.Download(ctx, documentID, "")
	if err != nil {
		return fail(domain.StateFetching, fmt.Errorf("fetch document content: %w", err))
	}
	if !run.live(ctx) {
		return fail(domain.StateFetching, fmt.Errorf("fetch document content: %w", context.Canceled))
	}

	run.setState(domain.StateClassifying)
	result, err := w.classify(ctx, file)
	if err != nil {
		return fail(domain.StateClassifying, err)
	}
	outcome.Result = &result

	if w.policy.Matches(result) {
		if run.live(ctx) {
			w.tag(ctx, documentID, run, outcome)
		} else {
			outcome.TagWarning = "classification abandoned before tagging"
		}
	}

	run.setState(domain.StateDone)
	outcome.State = domain.StateDone
	outcome.Message = outcome.Summary(w.policy)
	return outcome, nil
}

func (w *ClassificationWorkflow) classify(ctx context.Context, file *domain.DocumentFile) (domain.ClassificationResult, error) {
	classifyCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	result, err := w.classifier.Classify(classifyCtx, file.FileName, file.ContentType, bytes.NewReader(file.Content))
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) && !domain.IsKind(err, domain.ErrClassifierUnavailable) {
			err = domain.WrapError(domain.ErrClassifierUnavailable, "classify document", err)
		}
		return domain.ClassificationResult{}, fmt.Errorf("classify document: %w", err)
	}
	if !result.Success {
		return domain.ClassificationResult{}, domain.WrapError(domain.ErrClassifierResponse, "classify document", errors.New("classifier reported failure"))
	}
	return result, nil
}

// tag applies the policy tag. A failure here leaves the classification
// result intact and is reported as a warning.
func (w *ClassificationWorkflow) tag(ctx context.Context, documentID string, run *classificationRun, outcome *domain.ClassificationOutcome) {
	run.setState(domain.StateTagging)
	doc, err := w.tagger.ApplyAutomaticTag(ctx, documentID, w.policy.AppliedTag)
	if err != nil {
		slog.Warn("automatic_tag_failed", "document_id", documentID, "tag", w.policy.AppliedTag, "error", err)
		outcome.TagWarning = domain.UserMessage(err)
		return
	}
	outcome.Tagged = true
	outcome.AppliedTag = w.policy.AppliedTag
	outcome.Document = doc
}
