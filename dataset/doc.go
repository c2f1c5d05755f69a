// Package dataset defines the labeled sample model and SQLite-backed
// utilities used by this project. It includes:
//   - Record model and Store interface
//   - SQLiteStore: durable storage for labeled samples
//   - Schema helpers to create a samples table
//   - Feature encoding (BLOB) and NDJSON import
//   - Conversion of records into the column form an index is built from
package dataset
