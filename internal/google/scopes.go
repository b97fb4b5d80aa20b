package google

// Scopes are the Google OAuth scopes reservesync needs:
//   - Calendar: read write calendars and patch titles and guests
//   - Sheets: read the users and properties tables, append log rows
//   - Drive (per-file): move archive spreadsheets into the archive folder
var Scopes = []string{
	"https://www.googleapis.com/auth/calendar",
	"https://www.googleapis.com/auth/spreadsheets",
	"https://www.googleapis.com/auth/drive.file",
}
