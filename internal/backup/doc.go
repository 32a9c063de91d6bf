// Package backup implements logical dumps and transactional restores of a
// MySQL schema.
//
// A dump is a plain SQL script: a commented header, session pragmas that
// disable foreign key checks and open a transaction, then for every base
// table a DROP TABLE IF EXISTS, the table's CREATE TABLE statement and one
// INSERT per row, followed by COMMIT and a summary footer. Dumps are written
// through a BackupStore, which may be a local directory, an in-memory store
// or an S3, Azure Blob or GCS bucket.
//
// Multi-item operations (the dump's table loop and the retention sweep) are
// best-effort by default and record per-item failures instead of aborting.
// Single-item operations (restore, delete) fail fast. The ErrorPolicy option
// makes the choice explicit per operation.
package backup
