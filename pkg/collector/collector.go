// Package collector runs the incremental collection loop over a
// virtualized list: extract what is rendered, keep what is new, reveal more,
// and stop on convergence, end of feed, the record ceiling or cancellation.
package collector

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"xhsdl/pkg/config"
	"xhsdl/pkg/errors"
	"xhsdl/pkg/ledger"
	"xhsdl/pkg/logger"
	"xhsdl/pkg/view"
)

// Extractor maps a rendered list item to a record. Key reports false for
// nodes that have no identity and must be skipped.
type Extractor[T any] interface {
	Key(n view.Node) (string, bool)
	Extract(n view.Node, l *ledger.Ledger) T
}

// Target names the parts of the page a run works on
type Target struct {
	// Container is the scrollable feed. Its absence aborts the run.
	Container string
	Items     string
	EndMarker string
	// Expand matches "show more" affordances clicked after each scroll
	Expand string
}

// Range is a closed interval a delay is drawn from uniformly
type Range struct {
	Min time.Duration
	Max time.Duration
}

// Pick draws a delay using rnd, which returns a value in [0, n)
func (r Range) Pick(rnd func(n int64) int64) time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + time.Duration(rnd(int64(r.Max-r.Min)+1))
}

// Config holds the engine parameters
type Config struct {
	Limits
	ScrollDelay Range
	ExpandDelay Range

	// Sleep suspends the run; it returns early with ctx's error on cancel
	Sleep func(ctx context.Context, d time.Duration) error
	// Rand returns a value in [0, n)
	Rand   func(n int64) int64
	Logger logger.Logger
}

// FromConfig builds an engine config from the collect section
func FromConfig(c config.CollectConfig) Config {
	return Config{
		Limits:      Limits{Threshold: c.EmptyCycleThreshold, Ceiling: c.MaxRecords},
		ScrollDelay: Range{Min: c.ScrollDelayMin, Max: c.ScrollDelayMax},
		ExpandDelay: Range{Min: c.ExpandDelayMin, Max: c.ExpandDelayMax},
	}
}

// Sleep waits for d or until ctx is done
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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

// NewRunID returns a time-ordered run identifier
func NewRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Result is the outcome of one run
type Result[T any] struct {
	RunID       string
	State       State
	Records     []T
	Cycles      int
	EmptyCycles int
	Elapsed     time.Duration
}

// Engine drives collection runs. An engine may run many times; each run
// owns a fresh ledger.
type Engine[T any] struct {
	target    Target
	extractor Extractor[T]
	cfg       Config
}

// New creates an engine, filling unset config fields with defaults
func New[T any](target Target, extractor Extractor[T], cfg Config) *Engine[T] {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Sleep == nil {
		cfg.Sleep = Sleep
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.Int64N
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	return &Engine[T]{target: target, extractor: extractor, cfg: cfg}
}

// run is the state of one collection
type run[T any] struct {
	id          string
	ledger      *ledger.Ledger
	records     []T
	cycles      int
	emptyCycles int
	state       State
}

// Run collects from v until a terminal state. It fails fast with a
// container_not_found error and zero cycles when the feed container is
// missing. Cancelling ctx ends the run in Stopped with the records gathered
// so far and a nil error.
func (e *Engine[T]) Run(ctx context.Context, v view.View) (*Result[T], error) {
	start := time.Now()
	r := &run[T]{id: NewRunID(), ledger: ledger.New(), state: Running}
	log := e.cfg.Logger.WithField("run_id", r.id)

	ctx, span := otel.Tracer("xhsdl/collector").Start(ctx, "collector.run")
	defer span.End()
	span.SetAttributes(attribute.String("run.id", r.id), attribute.String("target.items", e.target.Items))

	container, err := v.Query(ctx, e.target.Container)
	if err == nil && container == nil {
		err = errors.ContainerNotFound(e.target.Container)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.WithError(err).Warn("Collection not started")
		return nil, err
	}

	log.InfoWithFields("Collection started", map[string]interface{}{
		"items":     e.target.Items,
		"threshold": e.cfg.Threshold,
		"ceiling":   e.cfg.Ceiling,
	})

	for r.state == Running {
		fresh, err := e.cycle(ctx, v, r)
		if err != nil && ctx.Err() == nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		if err != nil {
			log.WithError(err).Debug("Cycle interrupted by cancellation")
			r.state = Stopped
			break
		}
		logger.LogCycle(log, r.id, r.cycles, fresh, len(r.records), r.emptyCycles)

		r.state = Next(Observation{
			Cancelled:   ctx.Err() != nil,
			EndMarker:   e.endMarkerVisible(ctx, v),
			Records:     len(r.records),
			EmptyCycles: r.emptyCycles,
		}, e.cfg.Limits)
		if r.state.Terminal() {
			break
		}

		if err := e.reveal(ctx, v, log); err != nil {
			r.state = Stopped
		}
	}

	res := &Result[T]{
		RunID:       r.id,
		State:       r.state,
		Records:     r.records,
		Cycles:      r.cycles,
		EmptyCycles: r.emptyCycles,
		Elapsed:     time.Since(start),
	}
	span.SetAttributes(
		attribute.String("run.state", res.State.String()),
		attribute.Int("run.cycles", res.Cycles),
		attribute.Int("run.records", len(res.Records)),
	)
	logger.LogRunFinished(log, r.id, res.State.String(), res.Cycles, len(res.Records), res.Elapsed)
	return res, nil
}

// cycle extracts every unseen rendered item and returns how many were new.
// It stops adding once the ceiling is reached. The nodes are queried outside
// ctx cancellation so a cycle that has started always finishes extracting.
func (e *Engine[T]) cycle(ctx context.Context, v view.View, r *run[T]) (int, error) {
	r.cycles++
	nodes, err := v.QueryAll(context.WithoutCancel(ctx), e.target.Items)
	if err != nil {
		return 0, err
	}

	fresh := 0
	for _, n := range nodes {
		if e.cfg.Ceiling > 0 && len(r.records) >= e.cfg.Ceiling {
			break
		}
		key, ok := e.extractor.Key(n)
		if !ok || !r.ledger.Admit(key) {
			continue
		}
		r.records = append(r.records, e.extractor.Extract(n, r.ledger))
		fresh++
	}

	if fresh == 0 {
		r.emptyCycles++
	} else {
		r.emptyCycles = 0
	}
	return fresh, nil
}

func (e *Engine[T]) endMarkerVisible(ctx context.Context, v view.View) bool {
	if e.target.EndMarker == "" {
		return false
	}
	n, err := v.Query(ctx, e.target.EndMarker)
	return err == nil && n != nil
}

// reveal asks the page for more content and waits. A non-nil error means
// the run was cancelled while suspended.
func (e *Engine[T]) reveal(ctx context.Context, v view.View, log logger.Logger) error {
	if err := v.ScrollToBottom(ctx, e.target.Container); err != nil {
		log.WithError(err).Debug("Scroll failed")
	}
	if err := e.cfg.Sleep(ctx, e.cfg.ScrollDelay.Pick(e.cfg.Rand)); err != nil {
		return err
	}

	if e.target.Expand == "" {
		return nil
	}
	buttons, err := v.QueryAll(ctx, e.target.Expand)
	if err != nil || len(buttons) == 0 {
		return ctx.Err()
	}
	for _, b := range buttons {
		if err := b.Click(); err != nil {
			log.WithError(err).Debug("Expand click failed")
		}
	}
	return e.cfg.Sleep(ctx, e.cfg.ExpandDelay.Pick(e.cfg.Rand))
}
