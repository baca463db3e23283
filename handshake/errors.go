package handshake

import "errors"

// ErrBufferTooSmall is returned by any Write step when dst cannot hold
// the outbound message.
var ErrBufferTooSmall = errors.New("handshake: destination buffer too small")

// ErrTransportError wraps any failure reported by the underlying Noise
// engine (bad MAC, malformed message, out-of-order token). The
// reference implementation this package is modeled on does not further
// subdivide Noise failures, so neither do we; the returned error's text
// carries the Noise detail, but the Noise error itself is not wrapped.
var ErrTransportError = errors.New("handshake: transport error")

// ErrIncompatibleServerVersion is returned by an initiator that reads a
// server version with a different major number than its own. A
// responder never returns this error for a mismatched client version;
// it logs a warning and proceeds (spec §4.6).
var ErrIncompatibleServerVersion = errors.New("handshake: incompatible server version")

// ErrStageConsumed is returned when a handshake step method is called a
// second time on a value whose single transition has already been
// taken.
var ErrStageConsumed = errors.New("handshake: step already consumed")

// stageGuard enforces that each handshake step fires exactly once. Go
// has no move semantics, so nothing stops a caller from holding onto a
// stage value and invoking its method twice; this catches that at
// runtime instead of silently re-driving the Noise state machine out of
// sequence.
type stageGuard struct {
	used bool
}

func newGuard() *stageGuard {
	return &stageGuard{}
}

func (g *stageGuard) use() error {
	if g.used {
		return ErrStageConsumed
	}
	g.used = true
	return nil
}
