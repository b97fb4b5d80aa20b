// Package eventlog writes reservation history into spreadsheet rows.
//
// Logger accumulates fields per event id across the mutations of a sync
// pass and flushes exactly one row per event into the equipment sheet that
// corresponds to the event's equipment. Each row carries the eleven fixed
// columns followed by the experiment-condition values decoded from the event
// description, aligned under the condition headers that start at column M.
//
// A flush ledger keyed by event id remembers a fingerprint of the last row
// written for each event, so re-running a pass over unchanged events does
// not append duplicate rows.
//
// Sheets that grow past their configured row budget are archived: the oldest
// rows are copied into a new spreadsheet and removed from the live sheet.
//
// DailyLogger writes the secondary "final" log of events that started two to
// three days earlier.
package eventlog
