// Package relay republishes notifications for a fixed set of objects and markets to Kafka.
//
// A Relay owns a set of static subscriptions on a notify.Engine. Each notification is
// encoded as JSON and produced with its key (object id or "a:b" pair) so that all
// updates for one key land on the same partition in order. Subscriptions dropped after
// a failed publish are re-armed once the round finishes.
package relay
