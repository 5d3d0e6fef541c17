// Package database provides PostgreSQL connection pool management.
//
// The postgres object store backend keeps one pool per process. Pools are sized from
// store.postgres in the config and pinged before being handed out.
package database
