package vision

import (
	"errors"
	"strings"
)

// ErrNoGuidance is returned when the model answered without usable text.
var ErrNoGuidance = errors.New("model returned no guidance")

// joinGuidance concatenates answer fragments into one spoken paragraph.
func joinGuidance(fragments []string) (string, error) {
	parts := make([]string, 0, len(fragments))

	for _, fragment := range fragments {
		fragment = strings.TrimSpace(fragment)
		if fragment != "" {
			parts = append(parts, fragment)
		}
	}

	if len(parts) == 0 {
		return "", ErrNoGuidance
	}

	return strings.Join(parts, " "), nil
}
