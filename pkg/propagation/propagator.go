package propagation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/platinummonkey/kensaku/pkg/async"
	"github.com/platinummonkey/kensaku/pkg/model"
	"github.com/platinummonkey/kensaku/pkg/observability"
	"github.com/platinummonkey/kensaku/pkg/search"
	"github.com/platinummonkey/kensaku/pkg/staletrack"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("kensaku/propagation")

// Policy decides whether rebuild failures fail the triggering write
type Policy string

const (
	PolicyBestEffort Policy = "best-effort"
	PolicyFailFast   Policy = "fail-fast"
)

// ParsePolicy validates a configured failure policy
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyBestEffort, PolicyFailFast:
		return p, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q (must be best-effort or fail-fast)", s)
	}
}

// Rebuild triggers, used as metric labels
const (
	TriggerDirect  = "direct"
	TriggerCascade = "cascade"
	TriggerRepair  = "repair"
	TriggerReindex = "reindex"
)

const (
	defaultWorkers        = 4
	defaultRebuildTimeout = 30 * time.Second
	defaultPageSize       = 500
)

// Config controls propagation
type Config struct {
	Policy         Policy
	Workers        int
	RebuildTimeout time.Duration
	PageSize       int // documents per page during ReindexAll
}

// Propagator recomputes search representations after writes
type Propagator struct {
	documents  model.DocumentRepository
	categories model.CategoryRepository
	store      search.RepresentationStore
	builder    *search.Builder
	tracker    staletrack.Tracker
	metrics    *observability.Metrics
	logger     *observability.Logger
	config     Config
}

// NewPropagator creates a propagator. tracker, metrics and logger may be nil.
func NewPropagator(
	documents model.DocumentRepository,
	categories model.CategoryRepository,
	store search.RepresentationStore,
	builder *search.Builder,
	tracker staletrack.Tracker,
	metrics *observability.Metrics,
	logger *observability.Logger,
	cfg Config,
) *Propagator {
	if cfg.Policy == "" {
		cfg.Policy = PolicyBestEffort
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.RebuildTimeout <= 0 {
		cfg.RebuildTimeout = defaultRebuildTimeout
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if logger == nil {
		logger = observability.NewLogger(observability.ErrorLevel, io.Discard)
	}
	return &Propagator{
		documents:  documents,
		categories: categories,
		store:      store,
		builder:    builder,
		tracker:    tracker,
		metrics:    metrics,
		logger:     logger,
		config:     cfg,
	}
}

// Policy returns the configured failure policy
func (p *Propagator) Policy() Policy {
	return p.config.Policy
}

// OnEntitySaved implements model.SaveHook
func (p *Propagator) OnEntitySaved(ctx context.Context, entity model.Entity) error {
	return p.IndexOnWrite(ctx, entity)
}

// IndexOnWrite rebuilds whatever the write of entity invalidated. The
// returned error is nil under PolicyBestEffort.
func (p *Propagator) IndexOnWrite(ctx context.Context, entity model.Entity) error {
	switch e := entity.(type) {
	case *model.Document:
		err := p.RebuildDocument(ctx, e.ID)
		if err != nil && p.config.Policy == PolicyFailFast {
			return err
		}
		return nil

	case *model.Category:
		if !e.NameChanged() {
			return nil
		}
		report := p.Cascade(ctx, e.ID, TriggerCascade)
		if !report.Complete() && p.config.Policy == PolicyFailFast {
			return &CascadeError{Report: report}
		}
		return nil

	default:
		return fmt.Errorf("unsupported entity kind %q", entity.EntityKind())
	}
}

// RebuildDocument recomputes one document within the rebuild timeout.
// Failures are logged, counted and tracked before being returned.
func (p *Propagator) RebuildDocument(ctx context.Context, documentID int64) error {
	ctx, cancel := context.WithTimeout(ctx, p.config.RebuildTimeout)
	defer cancel()

	if err := p.rebuild(ctx, documentID, TriggerDirect); err != nil {
		p.recordFailure(ctx, err, staletrack.ReasonRebuildFailed)
		return err
	}
	return nil
}

// rebuild reads the document and its current category name, builds the
// representation and stores it. A document deleted in the meantime is not
// an error.
func (p *Propagator) rebuild(ctx context.Context, documentID int64, trigger string) (err error) {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "RebuildDocument",
		trace.WithAttributes(
			attribute.Int64("document_id", documentID),
			attribute.String("trigger", trigger),
		),
	)
	defer func() {
		outcome := observability.OutcomeSuccess
		if err != nil {
			outcome = observability.OutcomeFailure
			if asRebuildError(documentID, err).Transient {
				outcome = observability.OutcomeTimeout
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, "rebuild failed")
		}
		p.metrics.ObserveRebuild(trigger, outcome, time.Since(start))
		span.End()
	}()

	fail := func(err error) error {
		return &RebuildError{
			DocumentID: documentID,
			Transient:  errors.Is(err, context.DeadlineExceeded),
			Err:        err,
		}
	}

	doc, err := p.documents.FindByID(ctx, documentID)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fail(fmt.Errorf("failed to load document: %w", err))
	}

	categoryName, err := p.categoryName(ctx, doc)
	if err != nil {
		return fail(err)
	}

	rep, err := p.builder.BuildDocument(ctx, doc, categoryName)
	if err != nil {
		return fail(err)
	}

	err = p.store.UpdateSearchRepresentation(ctx, documentID, rep)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fail(fmt.Errorf("failed to store representation: %w", err))
	}
	return nil
}

// categoryName resolves the name of the category doc references right now.
// No reference or a dangling one resolves to "".
func (p *Propagator) categoryName(ctx context.Context, doc *model.Document) (string, error) {
	if doc.CategoryID == nil {
		return "", nil
	}
	cat, err := p.categories.FindByID(ctx, *doc.CategoryID)
	if errors.Is(err, model.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load category %d: %w", *doc.CategoryID, err)
	}
	return cat.Name, nil
}

// Cascade rebuilds every document currently referencing the category.
// It never returns an error; the report says what happened.
func (p *Propagator) Cascade(ctx context.Context, categoryID int64, trigger string) *CascadeReport {
	ctx, span := tracer.Start(ctx, "Cascade",
		trace.WithAttributes(
			attribute.Int64("category_id", categoryID),
			attribute.String("trigger", trigger),
		),
	)
	defer span.End()

	report := &CascadeReport{CategoryID: categoryID}

	ids, err := p.documents.FindReferencing(ctx, categoryID)
	if err != nil {
		report.EnumerationErr = &CascadeEnumerationError{CategoryID: categoryID, Err: err}

		p.logger.WithError(err).WithFields(map[string]interface{}{
			"category_id": categoryID,
			"partial":     false,
		}).Error("Cascade aborted: could not enumerate dependents")
		p.metrics.IncCascadeEnumerationFailure()
		p.markStale(ctx, model.KindCategory, categoryID, staletrack.ReasonCascadeEnumeration, err)

		span.RecordError(err)
		span.SetStatus(codes.Error, "enumeration failed")
		return report
	}

	report.Dependents = len(ids)
	p.metrics.ObserveCascade(len(ids))
	span.SetAttributes(attribute.Int("dependents", len(ids)))

	results := async.Batch(ctx, ids, p.config.Workers, p.config.RebuildTimeout,
		func(ctx context.Context, id int64) error {
			return p.rebuild(ctx, id, trigger)
		})

	for _, r := range results {
		if r.Err == nil {
			report.Rebuilt++
			continue
		}
		report.Failures = append(report.Failures, asRebuildError(r.Item, r.Err))
	}
	report.Partial = report.Rebuilt > 0 && len(report.Failures) > 0

	for _, f := range report.Failures {
		p.recordFailure(ctx, f, staletrack.ReasonCascadePartial)
	}

	if len(report.Failures) > 0 {
		p.logger.WithFields(map[string]interface{}{
			"category_id": categoryID,
			"dependents":  report.Dependents,
			"failed":      len(report.Failures),
			"failed_ids":  report.FailedIDs(),
			"partial":     report.Partial,
		}).Error("Cascade incomplete")
		span.SetStatus(codes.Error, "cascade incomplete")
	}

	return report
}

// asRebuildError normalizes a batch failure, which may be a panic or a
// context error raised before the task started.
func asRebuildError(documentID int64, err error) *RebuildError {
	var rebuildErr *RebuildError
	if errors.As(err, &rebuildErr) {
		return rebuildErr
	}
	return &RebuildError{
		DocumentID: documentID,
		Transient:  errors.Is(err, context.DeadlineExceeded),
		Err:        err,
	}
}

func (p *Propagator) recordFailure(ctx context.Context, err error, reason string) {
	rebuildErr := asRebuildError(0, err)

	p.logger.WithError(rebuildErr.Err).WithFields(map[string]interface{}{
		"document_id": rebuildErr.DocumentID,
		"transient":   rebuildErr.Transient,
		"policy":      string(p.config.Policy),
	}).Error("Search representation rebuild failed")

	p.markStale(ctx, model.KindDocument, rebuildErr.DocumentID, reason, rebuildErr.Err)
}

// markStale counts and tracks a stale representation. The tracker write
// uses a fresh context so an expired request cannot lose the record.
func (p *Propagator) markStale(ctx context.Context, kind string, id int64, reason string, cause error) {
	p.metrics.IncStale(reason)
	if p.tracker == nil {
		return
	}

	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := p.tracker.Mark(markCtx, kind, id, reason, cause); err != nil {
		p.logger.WithError(err).WithFields(map[string]interface{}{
			"kind": kind,
			"id":   id,
		}).Error("Failed to record stale representation")
	}
}
