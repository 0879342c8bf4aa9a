// Package propagation keeps document search representations consistent
// with the fields they are derived from.
//
// Two kinds of write can invalidate a representation:
//
//   - a document write (create, field change, category re-assignment)
//     rebuilds that one document, resolving its category name at rebuild
//     time
//   - a category rename cascades to every document currently referencing
//     the category
//
// Repositories call the Propagator through the model.SaveHook interface
// after the write commits. Cascades fan out through pkg/async with a
// bounded number of workers and return a CascadeReport that says exactly
// which dependents were rebuilt and which were not.
//
// # Failure policy
//
// With PolicyBestEffort a failed rebuild is logged, counted and recorded
// in the stale tracker, and the write still succeeds. With PolicyFailFast
// the same failure is also returned to the writer. Neither policy rolls
// the write back. A cascade that cannot enumerate its dependents is
// always logged at error level and tracked, because nothing else would
// ever trigger those rebuilds.
//
// The Repairer drains the stale tracker and is run on a schedule by the
// server.
package propagation
