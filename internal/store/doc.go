// Package store provides the versioned object store the ledger writes to and the
// broadcast engine reads from.
//
// Backends:
//   - memory: process-local map, for tests and single-node demos
//   - pebble: embedded LSM store on local disk
//   - postgres: ledger_objects table behind a pgx pool
//
// Values are opaque JSON documents. Fetch returns a nil value for ids that do not exist.
package store
