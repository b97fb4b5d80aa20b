// Package sheets wraps the Google Sheets v4 API for the two spreadsheets
// reservesync touches: the directory spreadsheet (users and properties
// tables, equipment condition sheets) and the logging spreadsheet (one log
// sheet per equipment plus the daily final log).
//
// A Spreadsheet is a Client bound to one spreadsheet id. Ranges use A1
// notation; Range and ColumnName build them.
package sheets
