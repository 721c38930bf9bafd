// Package batch walks a list of items: open each detail view, extract the
// post and its comments, persist it, and return to the list.
package batch

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"xhsdl/pkg/checkpoint"
	"xhsdl/pkg/collector"
	"xhsdl/pkg/config"
	"xhsdl/pkg/errors"
	"xhsdl/pkg/extract"
	"xhsdl/pkg/logger"
	"xhsdl/pkg/models"
	"xhsdl/pkg/storage"
	"xhsdl/pkg/view"
)

// Outcome of one item
const (
	OutcomeProcessed = "processed"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
	OutcomeResumed   = "resumed"
)

// ItemResult describes what happened to one item
type ItemResult struct {
	ID       string `json:"id"`
	Outcome  string `json:"outcome"`
	Comments int    `json:"comments"`
	Error    string `json:"error,omitempty"`

	// Partial marks an item whose comment run was stopped before the feed
	// ended. It is persisted but not checkpointed.
	Partial bool `json:"partial,omitempty"`
}

// Report summarizes a batch run
type Report struct {
	RunID     string        `json:"run_id"`
	List      string        `json:"list"`
	Total     int           `json:"total"`
	Processed int           `json:"processed"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Resumed   int           `json:"resumed"`
	Stopped   bool          `json:"stopped"`
	Items     []ItemResult  `json:"items"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Options controls a batch run
type Options struct {
	ReadyAttempts int
	ReadyInterval time.Duration
	ItemPause     time.Duration
	SkipComments  bool

	// Comments configures the comment engine run for each item
	Comments collector.Config
	// CommentEndMarker overrides the end marker of the comment feed
	CommentEndMarker string
	Extract          extract.Options

	// Checkpoint, when set, skips items processed by an earlier run and is
	// deleted once the batch completes
	Checkpoint   *checkpoint.Manager
	ForceRestart bool

	// Posts receives every persisted post
	Posts func(models.Post)
	// Progress receives every item outcome, resumed items included
	Progress func(ItemResult)

	Sleep  func(ctx context.Context, d time.Duration) error
	Now    func() time.Time
	Logger logger.Logger
}

// FromConfig builds options from the batch and collect sections
func FromConfig(b config.BatchConfig, c config.CollectConfig) Options {
	return Options{
		ReadyAttempts:    b.ReadyAttempts,
		ReadyInterval:    b.ReadyInterval,
		ItemPause:        b.ItemPause,
		SkipComments:     b.SkipComments,
		Comments:         collector.FromConfig(c),
		CommentEndMarker: c.EndMarkerSelector,
	}
}

// Orchestrator runs batches against one page
type Orchestrator struct {
	store storage.Store
	opts  Options
}

// New creates an orchestrator persisting into store
func New(store storage.Store, opts Options) *Orchestrator {
	if opts.ReadyAttempts <= 0 {
		opts.ReadyAttempts = 10
	}
	if opts.ReadyInterval <= 0 {
		opts.ReadyInterval = 500 * time.Millisecond
	}
	if opts.Sleep == nil {
		opts.Sleep = collector.Sleep
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	if opts.Comments.Sleep == nil {
		opts.Comments.Sleep = opts.Sleep
	}
	if opts.Comments.Logger == nil {
		opts.Comments.Logger = opts.Logger
	}
	return &Orchestrator{store: store, opts: opts}
}

// Run processes items in order. Cancelling ctx stops the batch before the
// next item; the report then has Stopped set and the error is nil. Items
// whose detail view never becomes ready are skipped.
func (o *Orchestrator) Run(ctx context.Context, page view.Page, list string, items []models.SearchResultItem) (*Report, error) {
	start := time.Now()
	report := &Report{RunID: collector.NewRunID(), List: list, Total: len(items)}
	log := o.opts.Logger.WithFields(map[string]interface{}{
		"run_id": report.RunID,
		"list":   list,
	})

	ctx, span := otel.Tracer("xhsdl/batch").Start(ctx, "batch.run")
	defer span.End()
	span.SetAttributes(attribute.String("run.id", report.RunID), attribute.Int("batch.total", len(items)))

	cp, err := o.loadCheckpoint(list, report.RunID, len(items))
	if err != nil {
		return nil, err
	}

	logger.LogComponentStart(log, "batch", map[string]interface{}{
		"total":         len(items),
		"skip_comments": o.opts.SkipComments,
	})

	for i, item := range items {
		if ctx.Err() != nil {
			report.Stopped = true
			break
		}
		if cp != nil && cp.IsProcessed(item.ID) {
			report.Resumed++
			res := ItemResult{ID: item.ID, Outcome: OutcomeResumed}
			report.Items = append(report.Items, res)
			o.progress(res)
			continue
		}

		res := o.process(ctx, page, report.RunID, item, log)
		report.Items = append(report.Items, res)
		o.progress(res)
		switch res.Outcome {
		case OutcomeProcessed:
			report.Processed++
		case OutcomeSkipped:
			report.Skipped++
		default:
			report.Failed++
		}

		if cp != nil && res.Outcome == OutcomeProcessed && !res.Partial {
			if err := o.opts.Checkpoint.RecordItem(cp, item.ID, res.Outcome); err != nil {
				log.WithError(err).Warn("Failed to save checkpoint")
			}
		}
		if ctx.Err() != nil {
			report.Stopped = true
			break
		}

		if i < len(items)-1 {
			if err := o.opts.Sleep(ctx, o.opts.ItemPause); err != nil {
				report.Stopped = true
				break
			}
		}
	}

	if cp != nil && !report.Stopped {
		if err := o.opts.Checkpoint.Delete(); err != nil {
			log.WithError(err).Warn("Failed to delete checkpoint")
		}
	}

	report.Elapsed = time.Since(start)
	span.SetAttributes(
		attribute.Int("batch.processed", report.Processed),
		attribute.Int("batch.skipped", report.Skipped),
		attribute.Int("batch.failed", report.Failed),
		attribute.Bool("batch.stopped", report.Stopped),
	)
	log.InfoWithFields("Batch finished", map[string]interface{}{
		"processed": report.Processed,
		"skipped":   report.Skipped,
		"failed":    report.Failed,
		"resumed":   report.Resumed,
		"stopped":   report.Stopped,
		"duration":  report.Elapsed,
	})
	return report, nil
}

func (o *Orchestrator) progress(res ItemResult) {
	if o.opts.Progress != nil {
		o.opts.Progress(res)
	}
}

func (o *Orchestrator) loadCheckpoint(list, runID string, total int) (*checkpoint.Checkpoint, error) {
	m := o.opts.Checkpoint
	if m == nil {
		return nil, nil
	}
	if o.opts.ForceRestart {
		if err := m.Delete(); err != nil {
			return nil, err
		}
	}
	cp, err := m.Load()
	if err != nil {
		return nil, err
	}
	if cp != nil {
		return cp, nil
	}
	return m.Create(list, runID, total)
}

// process handles one item and always tries to return to the list view
func (o *Orchestrator) process(ctx context.Context, page view.Page, runID string, item models.SearchResultItem, log logger.Logger) ItemResult {
	res := ItemResult{ID: item.ID}
	fail := func(outcome string, err error) ItemResult {
		res.Outcome = outcome
		res.Error = err.Error()
		logger.LogBatchItem(log, runID, item.ID, outcome, res.Comments, err)
		return res
	}

	if err := page.Open(ctx, item); err != nil {
		return fail(OutcomeFailed, err)
	}
	defer func() {
		if err := page.Back(context.WithoutCancel(ctx)); err != nil {
			log.WithError(err).Debug("Back navigation failed")
		}
	}()

	if err := o.waitReady(ctx, page, item.ID); err != nil {
		return fail(OutcomeSkipped, err)
	}

	now := o.opts.Now()
	post, err := extract.Post(ctx, page, now, o.opts.Extract)
	if err != nil {
		return fail(OutcomeFailed, err)
	}
	if post.ID == extract.UnknownID && item.ID != "" {
		post.ID = item.ID
	}
	if post.URL == "" {
		post.URL = item.URL
	}

	if !o.opts.SkipComments {
		eng := collector.New[models.Comment](
			collector.CommentFeed.WithEndMarker(o.opts.CommentEndMarker),
			extract.Comments{Ref: now},
			o.opts.Comments,
		)
		run, err := eng.Run(ctx, page)
		switch {
		case err != nil:
			log.WithError(err).WarnWithFields("Comments not collected", map[string]interface{}{"item_id": item.ID})
		default:
			post.Comments = run.Records
			res.Partial = run.State == collector.Stopped
		}
	}
	res.Comments = len(post.Comments)

	merged, err := o.store.Upsert(context.WithoutCancel(ctx), *post)
	if err != nil {
		return fail(OutcomeFailed, err)
	}
	if o.opts.Posts != nil {
		o.opts.Posts(merged)
	}

	res.Outcome = OutcomeProcessed
	logger.LogBatchItem(log, runID, item.ID, res.Outcome, res.Comments, nil)
	return res
}

// waitReady polls for the detail container. Cancellation while waiting is
// returned as ctx's error.
func (o *Orchestrator) waitReady(ctx context.Context, page view.View, itemID string) error {
	for attempt := 1; attempt <= o.opts.ReadyAttempts; attempt++ {
		n, err := page.Query(ctx, extract.SelNoteContainer)
		if err == nil && n != nil {
			return nil
		}
		if attempt == o.opts.ReadyAttempts {
			break
		}
		if err := o.opts.Sleep(ctx, o.opts.ReadyInterval); err != nil {
			return err
		}
	}
	return errors.NavigationTimeout(itemID, o.opts.ReadyAttempts)
}
