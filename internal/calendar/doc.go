// Package calendar is the event source of the sync engine: a thin client
// over the Google Calendar v3 events API.
//
// Listings are page-at-a-time; the caller follows NextPageToken and keeps
// the NextSyncToken of the last page as its cursor. A sync token the API no
// longer accepts surfaces as ErrSyncTokenInvalid so the caller can fall back
// to a full listing.
//
// Guest lists are the attendee emails of an event. Each guest is a read
// calendar that mirrors the reservation; updates are sent with
// sendUpdates=none so no invitation mail goes out.
package calendar
