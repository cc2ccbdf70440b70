// Package api exposes the read-only local status server: health, the task
// ledger projection, and the status report. It never mutates state and
// never talks to the remote service; everything it serves comes from the
// local stores.
package api
