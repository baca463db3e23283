package varint

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []uint64{
		0, 1, 127, 128, 129, 16383, 16384, 1 << 20,
		1<<32 - 1, 1 << 32, 1 << 63, ^uint64(0),
	}
	for _, v := range cases {
		buf := make([]byte, Length(v))
		n, err := Encode(v, buf)
		if err != nil {
			t.Fatalf("Encode(%d): %v", v, err)
		}
		if n != len(buf) {
			t.Fatalf("Encode(%d): wrote %d, expected %d", v, n, len(buf))
		}
		read, got, err := Decode(buf)
		if err != nil {
			t.Fatalf("Decode(%d): %v", v, err)
		}
		if read != n || got != v {
			t.Fatalf("round trip mismatch for %d: read=%d got=%d", v, read, got)
		}
	}
}

func TestEncodeKnownBytes(t *testing.T) {
	cases := []struct {
		v    uint64
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{300, []byte{0xac, 0x02}},
	}
	for _, c := range cases {
		buf := make([]byte, Length(c.v))
		if _, err := Encode(c.v, buf); err != nil {
			t.Fatalf("Encode(%d): %v", c.v, err)
		}
		if !bytes.Equal(buf, c.want) {
			t.Fatalf("Encode(%d) = %x, want %x", c.v, buf, c.want)
		}
	}
}

func TestEncodeDstTooSmall(t *testing.T) {
	buf := make([]byte, 1)
	if _, err := Encode(128, buf); !errors.Is(err, ErrDstTooSmall) {
		t.Fatalf("expected ErrDstTooSmall, got %v", err)
	}
}

func TestDecodeTruncated(t *testing.T) {
	if _, _, err := Decode([]byte{0x80}); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	if _, _, err := Decode(nil); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated for empty input, got %v", err)
	}
}

func TestDecodeOverflow(t *testing.T) {
	// Nine continuation bytes followed by a tenth, terminating byte whose
	// value exceeds the one remaining bit available at shift 63.
	overflow := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x02}
	if _, _, err := Decode(overflow); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
}

func TestDecodeAcceptsNonMinimalEncoding(t *testing.T) {
	// 0x00 with a redundant continuation byte: non-minimal, but well-formed.
	nonMinimal := []byte{0x80, 0x00}
	read, v, err := Decode(nonMinimal)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if read != 2 || v != 0 {
		t.Fatalf("got read=%d v=%d, want read=2 v=0", read, v)
	}
}

func TestLengthMatchesEncodedSize(t *testing.T) {
	for _, v := range []uint64{0, 127, 128, 1 << 20, ^uint64(0)} {
		buf := Append(nil, v)
		if len(buf) != Length(v) {
			t.Fatalf("Length(%d)=%d but Append produced %d bytes", v, Length(v), len(buf))
		}
	}
}
