// Package queue holds the authoritative in-memory state of all production
// jobs and exposes the transition operations the workflow driver needs.
//
// The store performs no I/O. Items move through queued, running, completed,
// and failed; retries return failed or completed items to queued, optionally
// stamping a resume stage so the driver can skip work whose cached artifacts
// are still valid. Bulk clears never remove running items.
//
// Returned items are always copies; mutations go through Update so no caller
// can race the store on a shared pointer. Treat this package as the single
// source of truth for queue semantics.
package queue
