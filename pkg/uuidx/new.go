package uuidx

import (
	"strings"

	"github.com/google/uuid"
)

// New generates a new UUID using the version 7 format and returns it.
// It panics if the UUID generation fails.
func New() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NewString generates a new version 7 UUID and returns its canonical string form.
// Subscription handles and request correlation ids use it.
func NewString() string {
	return New().String()
}

// Named returns a window style identifier of the form "<name>-<uuid>".
// Names are lower-cased so that identifiers derived from element ids stay stable
// regardless of how the markup spelled them. An empty name yields a bare UUID.
func Named(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return NewString()
	}
	return name + "-" + NewString()
}
