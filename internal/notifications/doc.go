// Package notifications pushes upload lifecycle events to an ntfy topic.
// When no topic is configured, a noop implementation keeps the rest of the
// pipeline oblivious to whether notifications are enabled.
package notifications
