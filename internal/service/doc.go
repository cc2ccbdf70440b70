// Package service implements the application's core operations: the task
// lifecycle engine, the batch submission orchestrator, the history
// reconciliation engine, and the periodic monitor loop.
//
// Services receive their dependencies (ledger, submission log, remote
// client, transfer) as explicit constructor arguments and never reach for
// globals. Expected failure conditions surface as sentinel errors checked
// with errors.Is; per-item failures inside batch operations are tallied in
// the returned report instead of aborting the batch.
package service
