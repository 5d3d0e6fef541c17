// Package model defines the shared data types of the ledger notification service.
//
// Conventions:
//   - Object IDs: "space.type.instance" (e.g. 1.2.15 for an account, 1.3.0 for the core asset)
//   - Markets: ordered asset pairs; (A,B) and (B,A) are different markets
//   - Amounts: shopspring/decimal, never float64
//   - Object values: opaque JSON as stored by the ledger
package model
