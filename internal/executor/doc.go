// Package executor runs assembly plans. It owns the run work area,
// fetches independent streams concurrently with a retry budget for
// transient failures, performs the embed and mux steps in order, and
// publishes the finished file into place atomically. Work areas are
// removed on every exit path.
package executor
