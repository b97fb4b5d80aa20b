package reservation

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultState is the state of a reservation whose title names only the equipment.
const DefaultState = "use"

// ErrMalformedTitle is returned for titles that are not one to three
// space-separated tokens.
var ErrMalformedTitle = errors.New("malformed reservation title")

// ParseEquipmentAndState extracts the equipment name and state from an event title.
//
// A single token is the equipment with the default state. With two or three
// tokens the last one is the state and the one before it the equipment; a
// leading user name may or may not be present depending on who edited the
// title last. Names never contain spaces.
func ParseEquipmentAndState(title string) (equipment, state string, err error) {
	tokens := strings.Fields(title)
	switch len(tokens) {
	case 1:
		return tokens[0], DefaultState, nil
	case 2, 3:
		return tokens[len(tokens)-2], tokens[len(tokens)-1], nil
	default:
		return "", "", fmt.Errorf("%w: %q has %d tokens", ErrMalformedTitle, title, len(tokens))
	}
}

// FormatTitle renders the canonical title "{user} {equipment} {state}".
func FormatTitle(user, equipment, state string) string {
	if state == "" {
		state = DefaultState
	}
	return user + " " + equipment + " " + state
}
