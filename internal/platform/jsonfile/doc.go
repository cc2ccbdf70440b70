// Package jsonfile implements the store interfaces on plain files: a single
// human-inspectable JSON document for the task ledger and an append-only CSV
// file for the submission log. The ledger uses a write-temp-then-rename
// discipline so a crash mid-write cannot corrupt the store, and both files
// are safe to hand-edit for recovery.
package jsonfile
