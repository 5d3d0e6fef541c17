// Package ledger applies blocks to the object store and reports each applied block
// as a model.UnitOfWork to registered listeners.
//
// Blocks reach the Ledger either directly (Apply) or from Kafka through the Ingester.
// Apply is serialized, so listeners see units one at a time, in block order, and never
// re-entrantly.
package ledger
