// Package syncengine mirrors reservation events from write calendars into
// subscriber read calendars.
//
// A pass over one write calendar pulls the events changed since the stored
// sync cursor (or every event of the lookback window on a full pass),
// rewrites each active event's title to "<user> <equipment> <state>",
// reconciles its guest list with the read calendars of the subscribers that
// enabled the equipment, logs one row per event and finally stores a fresh
// cursor.
//
// Guests are reconciled rather than appended, so re-running a pass converges
// on the same titles and guest lists. Log rows are deduplicated by the event
// log's flush ledger. Passes against the same write calendar must not run
// concurrently; the server runs them one at a time.
package syncengine
