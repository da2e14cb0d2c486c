package ids

import (
	"github.com/oklog/ulid/v2"
)

// New returns a lexicographically sortable identifier, monotonic within a process.
func New() string {
	return ulid.Make().String()
}

// Valid reports whether id is a canonical ULID string.
func Valid(id string) bool {
	_, err := ulid.ParseStrict(id)
	return err == nil
}
