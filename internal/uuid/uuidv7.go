// Package uuid generates the time-ordered identifiers used as primary keys.
package uuid

import (
	"time"

	googleuuid "github.com/google/uuid"
)

// New returns a UUIDv7. Keys created later sort after earlier ones, so lots
// and transactions recorded on the same date keep their insertion order.
func New() string {
	id, err := googleuuid.NewV7()
	if err != nil {
		return googleuuid.NewString()
	}
	return id.String()
}

// Time returns the creation time embedded in a UUIDv7.
func Time(s string) (time.Time, bool) {
	id, err := googleuuid.Parse(s)
	if err != nil || id.Version() != 7 {
		return time.Time{}, false
	}
	sec, nsec := id.Time().UnixTime()
	return time.Unix(sec, nsec).UTC(), true
}

// IsValid checks if a string is a valid UUID.
func IsValid(s string) bool {
	return googleuuid.Validate(s) == nil
}
