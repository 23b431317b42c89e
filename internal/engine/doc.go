// Package engine executes fan-out plans against the tree store.
//
// An Executor drains a plan.Plan with a small pool of workers (three by
// default). Workers share one work queue and claim operations from it one at
// a time; a claim is exclusive, so no operation runs twice within a run.
// Nothing about the claim order is guaranteed.
//
// Failure policy:
//   - Best-effort operations (back-references, mirrors, blob cleanup) are
//     logged, recorded in the Report and skipped. The plan keeps draining.
//   - Critical operations (identity and claims bookkeeping) abort the run.
//     Workers stop claiming, in-flight operations finish, and Run returns an
//     *OpError so the caller can fail the whole event and let the host retry.
//
// Every operation is idempotent, so an aborted run can be replayed from the
// start.
package engine
