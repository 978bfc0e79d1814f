// Package model defines the value types shared by the snapshot pipeline.
//
// It owns the closed set of statistics ranges, the endpoint catalog that
// turns a range into concrete request URLs and filenames, and the transient
// per-run results (FetchOutcome, RangeResult, RunSummary).
//
// Nothing in this package performs I/O. Catalog resolution is pure and its
// output order is significant: files, reports and ledger rows all follow it.
package model
