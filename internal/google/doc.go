// Package google builds authenticated HTTP clients for the Calendar, Sheets
// and Drive APIs.
//
// Unattended deployments point CredentialsFile at a service account key that
// has been given access to every write calendar and the directory
// spreadsheet. For a single operator account, run `reservesync auth` once to
// store an installed-app token.
package google
