package calendar

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

var (
	// ErrSyncTokenInvalid is returned when the API rejects a sync token
	// (HTTP 410). The caller must drop its cursor and run a full sync.
	ErrSyncTokenInvalid = errors.New("sync token is no longer valid")

	// ErrNotFound is returned for unknown calendars or events.
	ErrNotFound = errors.New("not found")
)

// classify maps Google API status codes onto package sentinels, keeping the
// original error in the chain.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusGone:
			return fmt.Errorf("failed to %s: %w: %w", op, ErrSyncTokenInvalid, err)
		case http.StatusNotFound:
			return fmt.Errorf("failed to %s: %w: %w", op, ErrNotFound, err)
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
