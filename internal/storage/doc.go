// Package storage keeps an optional, structured history of submissions so
// operators can query past runs without parsing the day ledgers.
//
// Backends:
//   - "file": JSON Lines, <path without ext>.submissions.jsonl
//   - "sqlite": SQLite database (modernc.org/sqlite, pure Go)
package storage
