package poierrors

import "github.com/google/uuid"

// NewID returns a fresh random UUID v4 string, used by the trace engine
// for run, event and span identifiers.
func NewID() string {
	return uuid.NewString()
}
