// Package services provides the shared error taxonomy and context
// annotation helpers used by the download pipeline.
//
// Errors produced by collaborators (extractor, transport, mux) are
// tagged with one of the exported sentinel markers so the executor can
// decide between retrying, aborting, and surfacing an actionable
// message without inspecting error strings.
package services
