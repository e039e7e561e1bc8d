// Package workflow drives queued productions through the pipeline.
//
// A Manager polls the queue store, claims queued items up to the configured
// concurrency limit, and walks each one through its stage plan, executing
// stages against the backend and recording progress, caches, and failures in
// the store. The manager also binds realtime events to store updates so the
// queue reflects backend-side changes without polling.
package workflow
