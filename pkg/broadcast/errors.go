package broadcast

import "errors"

var (
	// ErrHubClosed is returned when operations are attempted on a closed hub.
	ErrHubClosed = errors.New("broadcast: hub is closed")

	// ErrEmptyChannel is returned when a channel name is empty.
	ErrEmptyChannel = errors.New("broadcast: channel name is empty")
)
