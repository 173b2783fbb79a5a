package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/unbilled-sync/internal/bank"
	"github.com/dvloznov/unbilled-sync/internal/browser"
	"github.com/dvloznov/unbilled-sync/internal/categorize"
	"github.com/dvloznov/unbilled-sync/internal/config"
	"github.com/dvloznov/unbilled-sync/internal/diagnostics"
	"github.com/dvloznov/unbilled-sync/internal/domain"
	"github.com/dvloznov/unbilled-sync/internal/gcsuploader"
	"github.com/dvloznov/unbilled-sync/internal/pipeline"
	"github.com/dvloznov/unbilled-sync/internal/runs"
	bqruns "github.com/dvloznov/unbilled-sync/internal/runs/bigquery"
	"github.com/dvloznov/unbilled-sync/internal/runs/inmemory"
	"github.com/dvloznov/unbilled-sync/internal/sheets"
)

// app wires the configured collaborators into an orchestrator.
type app struct {
	cfg          *config.Config
	categorizer  *categorize.Categorizer
	orchestrator *pipeline.Orchestrator
	runLog       runs.Store
	closers      []func() error
}

func newApp(ctx context.Context, cfg *config.Config, dryRun bool) (*app, error) {
	a := &app{cfg: cfg, categorizer: cfg.Categorizer()}

	provider, err := browser.NewProvider(cfg.BrowserOptions())
	if err != nil {
		return nil, err
	}

	capturer := &diagnostics.Capturer{
		Dir:          cfg.Diagnostics.ScreenshotDir,
		UploadPrefix: cfg.Diagnostics.UploadURI,
	}
	if cfg.Diagnostics.UploadURI != "" {
		capturer.Storage = gcsuploader.NewGCSStorageService()
	}

	deps := pipeline.Deps{Provider: provider, Capturer: capturer}

	if !dryRun {
		if err := cfg.RequireSheets(); err != nil {
			return nil, err
		}
		backend, err := sheets.NewGoogleBackend(ctx,
			cfg.Sheets.SpreadsheetID,
			cfg.Sheets.CredentialsFile,
			cfg.Sheets.ApplicationName,
		)
		if err != nil {
			return nil, err
		}
		deps.Publisher = sheets.NewPublisher(backend)

		store, closeFn, err := openRunStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if closeFn != nil {
			a.closers = append(a.closers, closeFn)
		}
		deps.Runs = store
		a.runLog = store
	}

	a.orchestrator, err = pipeline.NewOrchestrator(deps, pipeline.Options{
		PublishEmpty:   cfg.Sheets.PublishEmpty,
		DryRun:         dryRun,
		CleanupTimeout: cfg.Pipeline.CleanupTimeout,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// recentRuns reads back the last n runs from the run log, or nil when the
// run log is disabled.
func (a *app) recentRuns(ctx context.Context, n int) ([]*runs.Run, error) {
	if a.runLog == nil {
		return nil, nil
	}
	return a.runLog.List(ctx, runs.Filter{Limit: n})
}

// buildJobs resolves bank names to jobs. Every named bank must be enabled.
func buildJobs(cfg *config.Config, categorizer *categorize.Categorizer, names []string) ([]pipeline.Job, error) {
	if len(names) == 0 {
		names = cfg.EnabledBanks()
	}
	if len(names) == 0 {
		return nil, errors.New("no banks enabled; set banks.<name>.enabled in the config")
	}

	jobs := make([]pipeline.Job, 0, len(names))
	for _, name := range names {
		bc, err := cfg.Bank(name)
		if err != nil {
			return nil, err
		}
		if !bc.Enabled {
			return nil, fmt.Errorf("bank %q is disabled", name)
		}
		settings, err := cfg.BankSettings(name, categorizer)
		if err != nil {
			return nil, err
		}
		adapter, err := bank.New(name, settings)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, pipeline.Job{
			Adapter: adapter,
			Target:  domain.SheetTarget{SheetName: bc.SheetName},
		})
	}
	return jobs, nil
}

// openRunStore returns a nil store for the "none" backend.
func openRunStore(ctx context.Context, cfg *config.Config) (runs.Store, func() error, error) {
	switch cfg.RunLog.Backend {
	case config.RunLogMemory:
		return inmemory.NewStore(), nil, nil
	case config.RunLogBigQuery:
		store, err := openBigQueryStore(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, nil
	}
}

func openBigQueryStore(ctx context.Context, cfg *config.Config) (*bqruns.Store, error) {
	if cfg.RunLog.Backend != config.RunLogBigQuery {
		return nil, fmt.Errorf("run log backend is %q; this command needs %q", cfg.RunLog.Backend, config.RunLogBigQuery)
	}
	return bqruns.NewStore(ctx, cfg.RunLog.ProjectID, cfg.RunLog.Dataset, cfg.RunLog.Table)
}
