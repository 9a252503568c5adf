// Package schema reconciles incoming record fields with a collection's
// columns and extends the collection's table to fit them.
//
// A write runs in two steps. Reconciler.Reconcile reads a fresh Snapshot
// of the table and computes a Plan (the columns that are missing, or that
// the table is absent). Provisioner.Ensure applies the plan: it creates the
// table or adds each missing column as TEXT.
//
// Nothing is cached between writes. Two writers may race to add the same
// column; the loser's failure is tolerated once a re-read shows the column
// exists. Column names compare case-insensitively, as SQLite does, and the
// identity column is never planned.
package schema
