// Package version implements the two-byte major/minor record exchanged
// at the start of a handshake (spec §4.5).
package version

import (
	"errors"
	"fmt"
)

// ErrTruncated is returned by FromBytes when fewer than two bytes are
// available.
var ErrTruncated = errors.New("version: truncated")

// Version is a protocol version: Major governs compatibility, Minor is
// informational only.
type Version struct {
	Major uint8
	Minor uint8
}

// String renders v as "major.minor".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// ToBytes writes the two-byte wire encoding [major, minor].
func (v Version) ToBytes() [2]byte {
	return [2]byte{v.Major, v.Minor}
}

// FromBytes reads a Version from the front of src, returning the number
// of bytes consumed (always 2 on success).
func FromBytes(src []byte) (int, Version, error) {
	if len(src) < 2 {
		return 0, Version{}, ErrTruncated
	}
	return 2, Version{Major: src[0], Minor: src[1]}, nil
}
