// Package cmd implements the command-line interface for reservesync.
//
// This package provides the following commands:
//   - sync: Mirror one (or every) write calendar onto subscribers' read calendars
//   - repair: Reconcile one subscriber's guest memberships after a checkbox change
//   - daily-log: Copy the reservations of three days ago into the final log
//   - apply-condition: Create or update a reservation from an equipment sheet row
//   - serve: Process calendar and spreadsheet edit notifications over HTTP
//   - auth: Store an installed-app OAuth token
//   - version: Display version information
//
// Every command except version and auth reads the configuration given by
// --config and the RESERVESYNC_* environment.
package cmd
