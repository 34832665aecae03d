// Package database manages the gateway's local SQLite store.
//
// The audit trail is the only consumer: access decisions and device
// online/offline transitions are appended here so they survive gateway
// restarts. WAL mode keeps reads cheap while the single writer appends.
package database
