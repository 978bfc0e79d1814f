// Package snapshot manages the on-disk JSON snapshots for each range.
//
// Every range owns three directories:
//
//	<data>/<range>/latest    most recently fetched or restored data
//	<data>/<range>/old       last known-good backup, the fallback source
//	<public>/<range>/latest  mirror read by the portfolio site
//
// Promotion, backup and fallback are whole-file copies between them. Copies
// are best-effort per file: one failed file is logged and the rest still go
// through. Only directory creation failures are returned to the caller, since
// they mean the environment cannot hold snapshots at all.
package snapshot
