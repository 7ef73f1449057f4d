// Package pipeline wires the download stages together: probe the URL,
// resolve the language decision, build the assembly plan, execute it,
// and record the outcome. The CLI talks to this package and nothing
// below it.
package pipeline
