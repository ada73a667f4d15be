// Package queue persists upload items in SQLite and exposes helpers for
// driving their lifecycle.
//
// The Store manages database connections, schema initialization, status
// queries, and the transitions the uploader walks an item through. Items
// capture the declared file attributes, derived metadata from enrichment,
// transfer progress, and the remote receipt so commands can inspect state
// without holding the uploader in memory.
//
// The database is treated as transient storage for in-flight and recently
// finished uploads rather than a long-term archive; the durable record of
// successes lives in the history store. Schema changes bump the version in
// schema.go; users clear the database to adopt the new schema.
package queue
