// Package ledger records snapshot runs in a SQLite database.
//
// Every fetch run becomes one row in runs, one row per range in
// range_results and one row per (range, endpoint) in fetch_outcomes. The
// ledger is observational: the pipeline never reads it to decide promotion
// or fallback, and a ledger failure never fails a run.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
//
// Run ids are UUIDv7 so that lexical order follows creation order.
package ledger
