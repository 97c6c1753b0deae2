package modbus

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"github.com/goburrow/serial"
)

// interCharacterSilenceFactor is how long a gap between two received bytes must
// be before it is taken as proof that the sender has finished the frame,
// expressed as a multiple of one character time (start bit + 8 data bits +
// parity + stop bit(s), approximated as 11 bit times). The real protocol
// calls for 1.5 character times between bytes and 3.5 before the next
// frame may start; this transport collapses both thresholds into a single
// inter-byte read timeout, which is the simplification the specification
// explicitly allows in place of driving RS-485 line timing directly.
const interCharacterSilenceFactor = 3.5

// fixedCharacterDelay and fixedFrameSilence replace the computed values
// at the point where line-rate timing math becomes
// dominated by OS scheduling jitter rather than by the wire; above
// 19200 baud the standard fixes the gaps at flat 750us/1.75ms instead of
// scaling them further.
const (
	fixedCharacterDelay = 750 * time.Microsecond
	fixedFrameSilence   = 1750 * time.Microsecond
)

// SerialConfig describes the physical line a SerialTransport opens.
type SerialConfig struct {
	Address  string
	BaudRate int
	DataBits int
	StopBits int
	Parity   string // "N", "E" or "O"; matches goburrow/serial.Config.Parity
}

func (c SerialConfig) toDriverConfig(timeout time.Duration) serial.Config {
	return serial.Config{
		Address:  c.Address,
		BaudRate: c.BaudRate,
		DataBits: c.DataBits,
		StopBits: c.StopBits,
		Parity:   c.Parity,
		Timeout:  timeout,
	}
}

// SerialTransport is the reference FrameTransport: a single RS-485/RS-232
// serial line carrying RTU-framed ADUs, with frame boundaries inferred
// from inter-byte silence rather than from an explicit length prefix.
//
// The underlying goburrow/serial.Port exposes a single Config.Timeout set
// at Open time rather than a per-call deadline, so the port is opened once
// with that timeout fixed to the line's inter-character silence gap — the
// VTIME-equivalent unit every read in ReadFrame is measured against. The
// caller-supplied idle timeout is then enforced on top of that, as a
// budget of repeated short reads, rather than by reconfiguring the port.
type SerialTransport struct {
	mu   sync.Mutex
	cfg  SerialConfig
	gap  time.Duration
	logger *log.Logger
	port io.ReadWriteCloser
}

// NewSerialTransport opens the named serial device with the given line
// parameters. logger may be nil.
func NewSerialTransport(cfg SerialConfig, logger *log.Logger) (*SerialTransport, error) {
	gap := frameSilence(cfg.BaudRate)
	driverCfg := cfg.toDriverConfig(gap)
	port, err := serial.Open(&driverCfg)
	if err != nil {
		return nil, err
	}
	return &SerialTransport{cfg: cfg, gap: gap, logger: logger, port: port}, nil
}

// characterDelay is the time to transmit one character (11 bit times) at
// baud, floored at the standard's fixed 750us threshold above 19200 baud.
func characterDelay(baud int) time.Duration {
	if baud <= 0 || baud > 19200 {
		return fixedCharacterDelay
	}
	return time.Duration(11*1e9/baud) * time.Nanosecond
}

// frameSilence is the minimum idle gap that marks the end of a frame.
func frameSilence(baud int) time.Duration {
	if baud <= 0 || baud > 19200 {
		return fixedFrameSilence
	}
	return time.Duration(float64(characterDelay(baud)) * interCharacterSilenceFactor)
}

func (t *SerialTransport) logf(format string, args ...interface{}) {
	if t.logger != nil {
		t.logger.Printf(format, args...)
	}
}

// ReadFrame accumulates bytes until frameSilence elapses with no further
// byte arriving, then returns whatever was collected. A read that times
// out on the very first byte (nothing arrived within timeout) reports
// idle (nil, nil) rather than an error. Bytes read but abandoned because
// the caller's ctx was cancelled mid-frame are discarded, per the
// FrameTransport contract.
func (t *SerialTransport) ReadFrame(ctx context.Context, timeout time.Duration) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	frame := make([]byte, 0, maxADU)
	one := make([]byte, 1)
	idleDeadline := time.Now().Add(timeout)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		n, err := t.port.Read(one)
		if err != nil {
			if isTimeout(err) {
				if len(frame) == 0 {
					if time.Now().Before(idleDeadline) {
						continue
					}
					return nil, nil
				}
				// silence for one inter-character gap: frame is done.
				return frame, nil
			}
			return nil, err
		}
		if n == 0 {
			if len(frame) == 0 {
				if time.Now().Before(idleDeadline) {
					continue
				}
				return nil, nil
			}
			return frame, nil
		}
		frame = append(frame, one[0])
		if len(frame) >= maxADU {
			return frame, nil
		}
	}
}

// WriteFrame emits adu as a single burst; the driver is responsible for
// not interleaving writes from elsewhere since SerialTransport itself is
// only ever driven by one Server.
func (t *SerialTransport) WriteFrame(ctx context.Context, adu []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	written := 0
	for written < len(adu) {
		n, err := t.port.Write(adu[written:])
		if err != nil {
			return err
		}
		written += n
	}
	return nil
}

// Close releases the underlying serial device.
func (t *SerialTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port.Close()
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	te, ok := err.(timeouter)
	return ok && te.Timeout()
}
