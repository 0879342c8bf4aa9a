package propagation

import (
	"errors"
	"fmt"
)

// RebuildError reports that one document's representation could not be
// recomputed. Transient is set when the rebuild timed out.
type RebuildError struct {
	DocumentID int64
	Transient  bool
	Err        error
}

func (e *RebuildError) Error() string {
	if e.Transient {
		return fmt.Sprintf("rebuild of document %d timed out: %v", e.DocumentID, e.Err)
	}
	return fmt.Sprintf("rebuild of document %d failed: %v", e.DocumentID, e.Err)
}

func (e *RebuildError) Unwrap() error { return e.Err }

// CascadeEnumerationError reports that the dependents of a renamed
// category could not be listed. No dependent was rebuilt.
type CascadeEnumerationError struct {
	CategoryID int64
	Err        error
}

func (e *CascadeEnumerationError) Error() string {
	return fmt.Sprintf("failed to enumerate dependents of category %d: %v", e.CategoryID, e.Err)
}

func (e *CascadeEnumerationError) Unwrap() error { return e.Err }

// CascadeError is returned from a category write under PolicyFailFast when
// the cascade did not complete.
type CascadeError struct {
	Report *CascadeReport
}

func (e *CascadeError) Error() string {
	r := e.Report
	if r.EnumerationErr != nil {
		return fmt.Sprintf("cascade for category %d aborted: %v", r.CategoryID, r.EnumerationErr)
	}
	return fmt.Sprintf("cascade for category %d incomplete: %d of %d dependents failed %v",
		r.CategoryID, len(r.Failures), r.Dependents, r.FailedIDs())
}

func (e *CascadeError) Unwrap() error { return e.Report.Err() }

// CascadeReport describes the outcome of one cascade
type CascadeReport struct {
	CategoryID int64
	Dependents int
	Rebuilt    int
	Failures   []*RebuildError

	// Partial is set when some dependents were rebuilt and others were not.
	// An enumeration failure rebuilds nothing and leaves it false.
	Partial bool

	EnumerationErr *CascadeEnumerationError
}

// Complete reports whether every dependent was rebuilt
func (r *CascadeReport) Complete() bool {
	return r.EnumerationErr == nil && len(r.Failures) == 0
}

// Err returns nil for a complete cascade, otherwise the enumeration error
// or the joined rebuild failures.
func (r *CascadeReport) Err() error {
	if r.EnumerationErr != nil {
		return r.EnumerationErr
	}
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// FailedIDs returns the ids of the dependents left stale
func (r *CascadeReport) FailedIDs() []int64 {
	ids := make([]int64, len(r.Failures))
	for i, f := range r.Failures {
		ids[i] = f.DocumentID
	}
	return ids
}
