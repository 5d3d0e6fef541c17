// Package subscription implements the Subscription Registry.
//
// The registry:
//   - Maps object ids and asset-pair markets to exactly one Sink each (last write wins)
//   - Treats unsubscribing an unknown key as a no-op
//   - Hands out immutable snapshots so a broadcast round never holds the lock while delivering
//
// Snapshots are copy-on-write: taking one is O(1) and the next mutation pays for a single copy.
package subscription
