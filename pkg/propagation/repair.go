package propagation

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/kensaku/pkg/async"
	"github.com/platinummonkey/kensaku/pkg/model"
	"github.com/platinummonkey/kensaku/pkg/staletrack"
)

// ReindexResult summarizes a full reindex
type ReindexResult struct {
	Total    int64
	Rebuilt  int
	Failed   int
	Duration time.Duration
}

// ReindexAll pages through every document and rebuilds it. Individual
// failures are tracked as stale and counted; only a failure to list
// documents aborts the run.
func (p *Propagator) ReindexAll(ctx context.Context) (*ReindexResult, error) {
	start := time.Now()
	result := &ReindexResult{}

	page := model.Page{Limit: p.config.PageSize}
	for {
		docs, total, err := p.documents.FindAll(ctx, page)
		if err != nil {
			return result, fmt.Errorf("failed to list documents at offset %d: %w", page.Offset, err)
		}
		result.Total = total
		if len(docs) == 0 {
			break
		}

		ids := make([]int64, len(docs))
		for i, d := range docs {
			ids[i] = d.ID
		}

		results := async.Batch(ctx, ids, p.config.Workers, p.config.RebuildTimeout,
			func(ctx context.Context, id int64) error {
				return p.rebuild(ctx, id, TriggerReindex)
			})
		for _, r := range results {
			if r.Err != nil {
				result.Failed++
				p.recordFailure(ctx, asRebuildError(r.Item, r.Err), staletrack.ReasonRebuildFailed)
				continue
			}
			result.Rebuilt++
		}

		if err := ctx.Err(); err != nil {
			return result, err
		}
		page.Offset += len(docs)
		if int64(page.Offset) >= total {
			break
		}
	}

	result.Duration = time.Since(start)
	p.logger.WithFields(map[string]interface{}{
		"total":    result.Total,
		"rebuilt":  result.Rebuilt,
		"failed":   result.Failed,
		"duration": result.Duration.String(),
	}).Info("Reindex completed")

	return result, nil
}

// RepairResult summarizes one repair run
type RepairResult struct {
	Documents  int
	Categories int
	Repaired   int
	Remaining  int
}

// Repairer rebuilds representations recorded in the stale tracker
type Repairer struct {
	propagator *Propagator
	tracker    staletrack.Tracker
	batchSize  int
}

// NewRepairer creates a repairer processing at most batchSize entries of
// each kind per run. batchSize <= 0 processes everything.
func NewRepairer(propagator *Propagator, tracker staletrack.Tracker, batchSize int) *Repairer {
	return &Repairer{
		propagator: propagator,
		tracker:    tracker,
		batchSize:  batchSize,
	}
}

// Repair retries stale documents, then re-runs aborted cascades. Entries
// are cleared only after their rebuild succeeds.
func (r *Repairer) Repair(ctx context.Context) (*RepairResult, error) {
	result := &RepairResult{}
	p := r.propagator

	docs, err := r.tracker.List(ctx, model.KindDocument, r.batchSize)
	if err != nil {
		return result, fmt.Errorf("failed to list stale documents: %w", err)
	}
	result.Documents = len(docs)

	ids := make([]int64, len(docs))
	for i, e := range docs {
		ids[i] = e.ID
	}

	results := async.Batch(ctx, ids, p.config.Workers, p.config.RebuildTimeout,
		func(ctx context.Context, id int64) error {
			return p.rebuild(ctx, id, TriggerRepair)
		})
	for i, res := range results {
		if res.Err != nil {
			p.recordFailure(ctx, asRebuildError(res.Item, res.Err), docs[i].Reason)
			result.Remaining++
			continue
		}
		if err := r.tracker.Clear(ctx, model.KindDocument, res.Item); err != nil {
			return result, fmt.Errorf("failed to clear document %d: %w", res.Item, err)
		}
		result.Repaired++
	}

	cats, err := r.tracker.List(ctx, model.KindCategory, r.batchSize)
	if err != nil {
		return result, fmt.Errorf("failed to list stale categories: %w", err)
	}
	result.Categories = len(cats)

	for _, e := range cats {
		report := p.Cascade(ctx, e.ID, TriggerRepair)
		if report.EnumerationErr != nil {
			result.Remaining++
			continue
		}
		// Dependents that failed are now tracked individually
		if err := r.tracker.Clear(ctx, model.KindCategory, e.ID); err != nil {
			return result, fmt.Errorf("failed to clear category %d: %w", e.ID, err)
		}
		result.Repaired++
	}

	if result.Documents+result.Categories > 0 {
		p.logger.WithFields(map[string]interface{}{
			"documents":  result.Documents,
			"categories": result.Categories,
			"repaired":   result.Repaired,
			"remaining":  result.Remaining,
		}).Info("Repair run finished")
	}

	return result, nil
}
