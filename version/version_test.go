package version

import (
	"errors"
	"testing"
)

func TestToBytesFromBytesRoundTrip(t *testing.T) {
	v := Version{Major: 1, Minor: 7}
	b := v.ToBytes()
	if b != [2]byte{1, 7} {
		t.Fatalf("ToBytes = %v, want [1 7]", b)
	}
	n, decoded, err := FromBytes(b[:])
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if n != 2 || decoded != v {
		t.Fatalf("FromBytes = (%d, %v), want (2, %v)", n, decoded, v)
	}
}

func TestFromBytesTruncated(t *testing.T) {
	if _, _, err := FromBytes([]byte{1}); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	if _, _, err := FromBytes(nil); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated for empty input, got %v", err)
	}
}

func TestString(t *testing.T) {
	v := Version{Major: 2, Minor: 0}
	if got := v.String(); got != "2.0" {
		t.Fatalf("String() = %q, want %q", got, "2.0")
	}
}

func TestEquality(t *testing.T) {
	a := Version{Major: 1, Minor: 0}
	b := Version{Major: 1, Minor: 0}
	c := Version{Major: 1, Minor: 1}
	if a != b {
		t.Fatalf("expected a == b")
	}
	if a == c {
		t.Fatalf("expected a != c")
	}
}
