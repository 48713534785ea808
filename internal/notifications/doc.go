// Package notifications pushes session milestones to ntfy.
//
// NewService returns a no-op when no topic is configured, so callers publish
// unconditionally. Each event type can be switched off in the [notifications]
// config section; the test event always goes through.
package notifications
