// Package transport downloads individual media streams over HTTP.
//
// It classifies failures into transient (worth retrying) and permanent
// (removed content, auth walls) using the shared service error markers,
// honors context cancellation mid-stream, and resumes from a byte offset
// when the server advertises range support.
package transport
