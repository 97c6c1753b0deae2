package modbus

import (
	"context"
	"time"
)

// FrameTransport delivers whole request ADUs and accepts whole response
// ADUs; it knows nothing about Modbus function codes, registers, or CRCs.
// The physical serial layer is free to be substituted — see
// SerialTransport for the reference 8-N-1 implementation.
type FrameTransport interface {
	// ReadFrame blocks until a complete inbound ADU has arrived or
	// timeout elapses with no frame at all, whichever is first. A nil
	// frame with a nil error means idle: nothing arrived within timeout.
	// Bytes consumed toward a frame that never completed before timeout
	// are discarded, not carried over to the next call.
	ReadFrame(ctx context.Context, timeout time.Duration) ([]byte, error)
	// WriteFrame emits adu as a single contiguous burst.
	WriteFrame(ctx context.Context, adu []byte) error
}
