// Package reconcile orchestrates a pipeline run over a store and compares
// primary entity record counts against their sample-location companions.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/nmfs-ost/dismap/internal/classify"
	"github.com/nmfs-ost/dismap/internal/definitions"
	"github.com/nmfs-ost/dismap/internal/domain"
	"github.com/nmfs-ost/dismap/internal/loader"
)

// Step operation names recorded in the run journal.
const (
	OpClassify    = "classify"
	OpDefinitions = "definitions"
	OpLoad        = "load"
	OpCompare     = "compare"
)

// Options configures a Driver.
type Options struct {
	// ProjectFilter is the canonical-name suffix selecting primary entities.
	ProjectFilter string
	// CompanionSuffix names the paired entity, "<name><suffix>".
	CompanionSuffix string
	Loader          loader.Options
}

// Driver runs the pipeline steps in order and records each in the journal.
type Driver struct {
	store      domain.Store
	classifier *classify.Classifier
	builder    *definitions.Builder
	journal    domain.RunJournal
	opts       Options
	logger     *slog.Logger
}

// New creates a Driver. A nil journal disables run recording.
func New(store domain.Store, classifier *classify.Classifier, builder *definitions.Builder,
	journal domain.RunJournal, opts Options, logger *slog.Logger) *Driver {
	if journal == nil {
		journal = nopJournal{}
	}
	return &Driver{
		store:      store,
		classifier: classifier,
		builder:    builder,
		journal:    journal,
		opts:       opts,
		logger:     logger,
	}
}

// RunReport is the outcome of Run.
type RunReport struct {
	RunID     string                  `json:"run_id"`
	Steps     []domain.StepResult     `json:"steps"`
	Loads     []*loader.Summary       `json:"loads"`
	Reconcile *domain.ReconcileReport `json:"reconcile,omitempty"`
}

// CompareCounts reports every primary entity holding more records than its
// companion. Missing companions are skipped. Nothing is mutated.
func (d *Driver) CompareCounts(ctx context.Context) (*domain.ReconcileReport, error) {
	dict, err := d.classifier.Dictionary(ctx, domain.DictionaryFilter{})
	if err != nil {
		return nil, err
	}

	report := &domain.ReconcileReport{}
	for _, name := range d.primaries(dict) {
		companion := name + d.opts.CompanionSuffix
		ok, err := d.store.Exists(ctx, companion)
		if err != nil {
			return nil, err
		}
		if !ok {
			d.logger.Debug("companion missing, skipping", "entity", name, "companion", companion)
			report.Skipped = append(report.Skipped, name)
			continue
		}

		mainCount, err := d.store.CountRows(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", name, err)
		}
		compCount, err := d.store.CountRows(ctx, companion)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", companion, err)
		}
		report.Checked++

		if diff := mainCount - compCount; diff > 0 {
			d.logger.Warn("record count mismatch",
				"entity", name, "companion", companion,
				"main_count", mainCount, "companion_count", compCount, "difference", diff)
			report.Discrepancies = append(report.Discrepancies, domain.Discrepancy{
				Entity:         name,
				Companion:      companion,
				MainCount:      mainCount,
				CompanionCount: compCount,
				Difference:     diff,
			})
		}
	}
	return report, nil
}

// primaries returns, sorted, the entities that are their own canonical name
// and match the project filter.
func (d *Driver) primaries(dict domain.DatasetDictionary) []string {
	var out []string
	for name, cls := range dict {
		if name != cls.CanonicalName {
			continue
		}
		if d.opts.ProjectFilter != "" && !strings.HasSuffix(cls.CanonicalName, d.opts.ProjectFilter) {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Run classifies the store, loads or builds the definitions, loads every
// source file and compares counts. The first failing step ends the run and is
// returned as a *domain.OpError.
func (d *Driver) Run(ctx context.Context, command string, sources []string) (*RunReport, error) {
	run := &domain.Run{
		ID:        domain.NewRunID(),
		StorePath: d.store.Path(),
		Command:   command,
		StartedAt: time.Now(),
	}
	log := d.logger.With("run_id", run.ID)
	if err := d.journal.StartRun(ctx, run); err != nil {
		log.Warn("journal start failed", "error", err)
	}
	report := &RunReport{RunID: run.ID}

	fail := func(op, entity string, err error) (*RunReport, error) {
		opErr := domain.NewOpError(op, err)
		d.record(ctx, run.ID, report, domain.StepResult{Op: op, Entity: entity, Result: domain.Failure[string](err)})
		msg := opErr.Error()
		if jerr := d.journal.FinishRun(ctx, run.ID, domain.ResultFailure, &msg); jerr != nil {
			log.Warn("journal finish failed", "error", jerr)
		}
		log.Error("run failed", "op", op, "entity", entity, "error", opErr)
		return report, opErr
	}

	dict, err := d.classifier.Dictionary(ctx, domain.DictionaryFilter{})
	if err != nil {
		return fail(OpClassify, "", err)
	}
	d.record(ctx, run.ID, report, domain.StepResult{Op: OpClassify, Result: countResult(len(dict), "entities")})

	defs, err := d.builder.LoadOrBuild(ctx)
	if err != nil {
		return fail(OpDefinitions, "", err)
	}
	d.record(ctx, run.ID, report, domain.StepResult{
		Op:     OpDefinitions,
		Result: countResult(len(defs.Tables), fmt.Sprintf("tables, %d fields", len(defs.Fields))),
	})

	ld := loader.New(d.store, defs, d.opts.Loader, d.logger)
	for _, src := range sources {
		sum, err := ld.Load(ctx, src)
		if err != nil {
			return fail(OpLoad, loader.EntityName(src), err)
		}
		report.Loads = append(report.Loads, sum)
		d.record(ctx, run.ID, report, domain.StepResult{
			Op:     OpLoad,
			Entity: sum.Entity,
			Result: domain.Success(fmt.Sprintf("%d rows, exported to %s", sum.Rows, sum.ExportPath)),
		})
	}

	rec, err := d.CompareCounts(ctx)
	if err != nil {
		return fail(OpCompare, "", err)
	}
	report.Reconcile = rec
	if err := d.journal.RecordDiscrepancies(ctx, run.ID, rec.Discrepancies); err != nil {
		log.Warn("journal discrepancies failed", "error", err)
	}
	d.record(ctx, run.ID, report, domain.StepResult{
		Op:     OpCompare,
		Result: countResult(len(rec.Discrepancies), fmt.Sprintf("discrepancies in %d pairs", rec.Checked)),
	})

	if err := d.journal.FinishRun(ctx, run.ID, domain.ResultSuccess, nil); err != nil {
		log.Warn("journal finish failed", "error", err)
	}
	log.Info("run complete", "steps", len(report.Steps), "loads", len(report.Loads),
		"discrepancies", len(rec.Discrepancies))
	return report, nil
}

func (d *Driver) record(ctx context.Context, runID string, report *RunReport, step domain.StepResult) {
	report.Steps = append(report.Steps, step)
	if err := d.journal.RecordStep(ctx, runID, step); err != nil {
		d.logger.Warn("journal step failed", "run_id", runID, "op", step.Op, "error", err)
	}
}

// countResult is Empty for zero and Success with "<n> <what>" otherwise.
func countResult(n int, what string) domain.Result[string] {
	if n == 0 {
		return domain.Empty[string]()
	}
	return domain.Success(fmt.Sprintf("%d %s", n, what))
}

type nopJournal struct{}

func (nopJournal) StartRun(context.Context, *domain.Run) error {
	return nil
}

func (nopJournal) RecordStep(context.Context, string, domain.StepResult) error {
	return nil
}

func (nopJournal) RecordDiscrepancies(context.Context, string, []domain.Discrepancy) error {
	return nil
}

func (nopJournal) FinishRun(context.Context, string, domain.ResultStatus, *string) error {
	return nil
}
