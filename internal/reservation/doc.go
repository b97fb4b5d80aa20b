// Package reservation holds the pure rules of a reservation event: how its
// title encodes user, equipment and state, how experiment conditions travel
// in the event description, and how times are rendered for log sheets.
package reservation
