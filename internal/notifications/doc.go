// Package notifications delivers download lifecycle events via ntfy.
//
// The service publishes to the topic configured in config.toml and
// gracefully degrades to a no-op when no topic is set, so the pipeline
// never branches on notification availability. Extend this package if
// you need alternative transports; callers depend only on the Service
// interface.
package notifications
