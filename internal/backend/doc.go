// Package backend is the HTTP client for the production service.
//
// Each pipeline stage maps to one POST endpoint that answers with a
// Server-Sent-Events stream: progress frames while the stage works, then a
// terminal result or error frame. The client decodes those streams into
// typed stage outputs and reports progress through a callback. Plain JSON
// endpoints cover the health probe and production record updates.
package backend
