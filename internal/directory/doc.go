// Package directory is the read model over the subscription spreadsheet.
//
// The users sheet holds one row per user: names in columns A-E (column E is
// the name written into event titles), the read calendar id in F, the write
// calendar id in G, calendar URLs in H-I and one checkbox per equipment from
// column J on, with equipment names in the header row. The final row is the
// synthetic "ALL EVENTS" subscriber, which has a read calendar but no write
// calendar.
//
// The properties sheet maps equipment names to the sheet ids of their
// equipment sheets. A Snapshot is rebuilt from both tables on every pass and
// is never mutated afterwards.
package directory
