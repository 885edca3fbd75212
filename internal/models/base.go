// Package models defines the domain types shared across clipforge components.
package models

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// ULID is a wrapper around ulid.ULID used for segment and job identifiers.
type ULID ulid.ULID

// NewULID generates a new ULID.
func NewULID() ULID {
	return ULID(ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader))
}

// ParseULID parses a ULID string.
func ParseULID(s string) (ULID, error) {
	id, err := ulid.Parse(s)
	if err != nil {
		return ULID{}, fmt.Errorf("invalid ULID: %w", err)
	}
	return ULID(id), nil
}

// String returns the string representation of the ULID.
func (u ULID) String() string {
	return ulid.ULID(u).String()
}

// IsZero returns true if the ULID is zero/empty.
func (u ULID) IsZero() bool {
	return ulid.ULID(u).Compare(ulid.ULID{}) == 0
}

// MarshalText implements encoding.TextMarshaler.
func (u ULID) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *ULID) UnmarshalText(data []byte) error {
	id, err := ParseULID(string(data))
	if err != nil {
		return err
	}
	*u = id
	return nil
}
