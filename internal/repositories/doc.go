// Package repositories implements SQLite persistence for the job ledger and the library index.
//
// Key Implementations:
//   - [JobRepository] : the job ledger; rows are inserted once and then only moved forward through
//     compare-and-set phase transitions ([JobRepository.Transition]). Rows are never deleted so failed
//     jobs stay auditable.
//   - [LibraryRepository] : the library index; entries are written with a single-row upsert keyed by
//     filename that preserves the original created_at.
//
// Atomicity is scoped to one row. No operation spans both tables, so no cross-table transaction is needed.
package repositories
