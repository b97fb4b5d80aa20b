// Package server is the trigger surface of reservesync: HTTP endpoints that
// receive edit notifications and turn them into sync jobs.
//
// # Endpoints
//
//   - POST /notifications/calendar: Google Calendar push channel. The channel
//     token carries the write calendar id; the "sync" handshake is only
//     acknowledged.
//   - POST /notifications/directory: JSON {"sheet","row","column"} naming an
//     edited cell of the directory spreadsheet. Checkbox columns of the users
//     sheet repair one subscriber's guest memberships, the full-name column
//     re-runs a full sync for that user, and data rows of equipment sheets
//     create or update the reservation they describe.
//   - /healthz, /readyz and /healthz/detailed for probes.
//
// # Execution model
//
// Every notification becomes a Job on a single Dispatcher, which runs jobs
// one at a time from a bounded queue. A full queue answers 503 so that the
// sender retries later. Pending jobs with the same key coalesce.
//
// DailyScheduler queues the final log copy once a day. MetricsServer serves
// Prometheus metrics on a separate port.
package server
