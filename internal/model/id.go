package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// NewID generates a new ULID string for use as a row or session identifier.
func NewID() string {
	return ulid.Make().String()
}

// IDTime returns the timestamp encoded in a ULID produced by NewID.
func IDTime(id string) (time.Time, error) {
	u, err := ulid.ParseStrict(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()), nil
}
