// Package history provides append-only conversation history storage with
// raw token accounting. Three stores share one contract: an in-memory
// store for ephemeral sessions, a Redis-backed store for hot sessions
// shared across processes, and a SQLite-backed store for on-disk
// persistence between CLI invocations.
//
// Stores never interpret reasoning policies; they report raw totals and
// leave effective accounting to the budget package.
package history
