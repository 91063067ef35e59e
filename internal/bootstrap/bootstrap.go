package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/kirillkom/docrepo-assistant/internal/config"
	"github.com/kirillkom/docrepo-assistant/internal/core/ports"
	"github.com/kirillkom/docrepo-assistant/internal/core/usecase"
	"github.com/kirillkom/docrepo-assistant/internal/infrastructure/docex"
	"github.com/kirillkom/docrepo-assistant/internal/infrastructure/docrepo"
	"github.com/kirillkom/docrepo-assistant/internal/infrastructure/lock/memory"
	"github.com/kirillkom/docrepo-assistant/internal/infrastructure/lock/postgres"
	"github.com/kirillkom/docrepo-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/docrepo-assistant/internal/infrastructure/resilience"
)

// QueueMode controls whether New connects to NATS.
type QueueMode int

const (
	// QueueOptional connects when possible and leaves Queue nil otherwise.
	QueueOptional QueueMode = iota
	QueueRequired
	QueueDisabled
)

type Options struct {
	Name     string
	Queue    QueueMode
	Observer ports.WorkflowObserver
}

type App struct {
	Config config.Config

	Executor *resilience.Executor
	Store    ports.DocumentStore
	Locker   ports.DocumentLocker
	Queue    ports.ClassificationQueue

	Ledger   *usecase.VersionLedgerUseCase
	Editor   *usecase.DocumentEditorUseCase
	Catalog  *usecase.CatalogUseCase
	Workflow *usecase.ClassificationWorkflow

	closeFns []func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	app := &App{Config: cfg}

	policy, err := cfg.AutoTagPolicy()
	if err != nil {
		return nil, fmt.Errorf("load auto tag policy: %w", err)
	}

	app.Executor = resilience.NewExecutor(cfg.Resilience())

	app.Store = docrepo.New(docrepo.Options{
		BaseURL:            cfg.DocrepoURL,
		Token:              cfg.DocrepoToken,
		Timeout:            cfg.DocrepoTimeout(),
		ResilienceExecutor: app.Executor,
	})
	classifier := docex.New(docex.Options{
		BaseURL:            cfg.DocexURL,
		Timeout:            cfg.ClassifierTimeout(),
		ResilienceExecutor: app.Executor,
	})

	locker, db, err := newLocker(cfg)
	if err != nil {
		return nil, err
	}
	app.Locker = locker
	if db != nil {
		app.closeFns = append(app.closeFns, func() { _ = db.Close() })
	}

	if err := app.connectQueue(cfg, opts); err != nil {
		app.Close()
		return nil, err
	}

	app.Ledger = usecase.NewVersionLedgerUseCase(app.Store, app.Locker, opts.Observer)
	app.Editor = usecase.NewDocumentEditorUseCase(app.Store, app.Ledger)
	app.Catalog = usecase.NewCatalogUseCase(app.Store, app.Ledger)

	workflowOpts := []usecase.WorkflowOption{usecase.WithClassifierTimeout(cfg.ClassifierTimeout())}
	if opts.Observer != nil {
		workflowOpts = append(workflowOpts, usecase.WithWorkflowObserver(opts.Observer))
	}
	app.Workflow = usecase.NewClassificationWorkflow(app.Store, classifier, app.Editor, app.Locker, policy, workflowOpts...)

	slog.InfoContext(ctx, "bootstrap_ready",
		"component", opts.Name,
		"docrepo_url", cfg.DocrepoURL,
		"docex_url", cfg.DocexURL,
		"shared_locks", db != nil,
		"queue", app.Queue != nil,
		"auto_tag_label", policy.Label,
		"auto_tag_threshold", policy.Threshold,
	)
	return app, nil
}

// newLocker returns Postgres advisory locks when a DSN is configured and an
// in-process locker otherwise.
func newLocker(cfg config.Config) (ports.DocumentLocker, *sql.DB, error) {
	if cfg.PostgresDSN == "" {
		return memory.NewLocker(), nil, nil
	}
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	return postgres.NewLocker(db), db, nil
}

func (a *App) connectQueue(cfg config.Config, opts Options) error {
	if opts.Queue == QueueDisabled {
		return nil
	}
	queue, err := nats.NewWithOptions(cfg.NATSURL, nats.Options{
		Name:               opts.Name,
		RequestSubject:     cfg.NATSClassifySubject,
		OutcomeSubject:     cfg.NATSOutcomeSubject,
		ResilienceExecutor: a.Executor,
	})
	if err != nil {
		if opts.Queue == QueueRequired {
			return fmt.Errorf("init message queue: %w", err)
		}
		slog.Warn("message_queue_unavailable", "url", cfg.NATSURL, "error", err)
		return nil
	}
	a.Queue = queue
	a.closeFns = append(a.closeFns, queue.Close)
	return nil
}

func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}
