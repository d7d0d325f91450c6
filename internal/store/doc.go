// Package store keeps intake sessions and the hand-off ledger.
//
// # Architecture
//
// Store is the only way the router and handlers touch session data. Every
// mutation goes through Update, which hands the callback a private copy of
// the session and saves it only if the callback succeeds. Calls for the same
// customer never overlap, so a handler's read-modify-write is never lost.
//
// Two implementations are provided:
//
//   - MemoryStore: a map with one mutex per session. Sessions are lost on restart.
//   - SQLiteStore: modernc.org/sqlite with sessions, session_history and handoffs tables.
//
// # Expiry
//
// SweepExpired removes sessions whose last interaction is older than the
// retention window. A session locked by an in-flight update is skipped, so a
// sweep never removes a session halfway through a handler. Sweeper runs the
// sweep on an interval:
//
//	sw := store.NewSweeper(s, 6*time.Hour, 24*time.Hour, logger)
//	go sw.Run(ctx)
//
// # Corrupt state
//
// A stored state that no longer decodes is loaded as an invalid State rather
// than an error. The router treats invalid states as a fresh first contact.
//
// # Testing
//
// Use NewMemoryStore() for unit tests and NewSQLiteStore(":memory:") or a
// t.TempDir() path for SQLite coverage.
package store
