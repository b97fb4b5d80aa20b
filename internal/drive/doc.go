// Package drive moves archive spreadsheets into a Google Drive folder.
//
// Log sheets that overflow are copied into fresh spreadsheets, which land in
// the root of My Drive. When an archive folder is configured the event log
// calls MoveToFolder so that backups collect in one place.
package drive
