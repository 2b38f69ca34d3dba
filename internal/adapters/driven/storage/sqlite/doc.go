// Package sqlite provides a unified SQLite-based implementation of the offline store ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO. It implements several store interfaces through a single database connection:
//
//   - ContentStore: downloaded path and chapter payloads, with an optional quota
//   - MutationQueue: writes made while offline, replayed in FIFO order
//   - SchedulerStore: background task timing and history
//
// # Schema
//
// The schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.swm/data/offline.db
//
// # Thread Safety
//
// All operations are safe for concurrent use. The store relies on SQLite in WAL mode.
package sqlite
