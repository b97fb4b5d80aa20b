// Package state persists the small amount of data that must survive between
// trigger invocations: one sync cursor per write calendar and the flush
// ledger that keeps reservation log rows from being appended twice.
//
// Store layers those two concerns over a KV backend. SQLiteKV is the default
// for a single host, ValkeyKV lets several replicas share state, and MemoryKV
// backs tests and dry runs.
//
// Keys are "syncToken:" + calendar id for cursors and "flushed:" + event id
// for the ledger.
package state
