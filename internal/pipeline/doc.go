// Package pipeline drives a snapshot run.
//
// The Orchestrator fetches every endpoint of one range in catalog order,
// writing each success into the range's latest directory and pacing
// requests with a fixed delay. The Coordinator runs the Orchestrator for
// every configured range and then either promotes the fresh data (backup to
// old, mirror to public) or falls back to the previous backup.
//
// Execution is strictly sequential. There is no fan-out: the upstream API is
// rate limited and the snapshot directories assume a single writer.
//
// Per range:
//
//	pending -> fetching -> succeeded -> promoted
//	                    -> failed    -> fallback_restored | fallback_unavailable
package pipeline
