// Package zeroize offers a best-effort wipe for secret byte slices. The
// core packages never allocate long-lived secret material themselves —
// callers who hold a PSK or a private key own the buffer, and this helper
// is the thing they reach for once they are done with it.
package zeroize

// Bytes overwrites every byte of b with zero. It does not shrink or
// reallocate b; the caller's slice header stays valid.
func Bytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
