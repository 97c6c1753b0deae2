package modbus

import (
	"context"
	"log"
	"time"
)

// Result is the outcome of a single Server.ProcessOne cycle.
type Result int

const (
	// Idle means no frame arrived within the caller-supplied timeout.
	Idle Result = iota
	// Handled means a frame was read and the cycle ran to completion,
	// whether or not it produced a response on the wire (CRC failures,
	// frame shape errors and non-matching slave addresses are handled
	// cycles that intentionally produce no response).
	Handled
)

// Server is a Modbus RTU slave: it owns one Store exclusively and drives
// it from frames delivered by a FrameTransport. There is no session state
// between cycles and no retry logic — the master retries.
//
//	store := modbus.NewStore()
//	store.AddHolding(0, make([]uint16, 10), nil, nil)
//	srv := modbus.NewServer(transport, []byte{1}, store, nil)
//	for {
//		if _, err := srv.ProcessOne(ctx, 2*time.Second); err != nil {
//			log.Println(err)
//		}
//	}
type Server struct {
	mu        mutex
	transport FrameTransport
	slaves    map[byte]bool
	store     *Store
	logger    *log.Logger
}

// NewServer builds a Server for the given transport, serving the given
// set of slave addresses (a server may answer to more than one address on
// a shared bus) against store. logger may be nil, in which case internal
// failures (callback panics, etc.) are silently discarded.
func NewServer(transport FrameTransport, slaveAddresses []byte, store *Store, logger *log.Logger) *Server {
	slaves := make(map[byte]bool, len(slaveAddresses))
	for _, a := range slaveAddresses {
		slaves[a] = true
	}
	return &Server{
		mu:        newMutex(),
		transport: transport,
		slaves:    slaves,
		store:     store,
		logger:    logger,
	}
}

func (s *Server) logf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

// ProcessOne runs exactly one IDLE -> PARSING -> DISPATCHING -> RESPONDING
// cycle: it waits up to timeout for a frame, validates and dispatches it,
// and emits a response or exception. It suspends only while waiting for
// the transport; there are no internal background tasks. The register
// store is owned exclusively by the server for the duration of the call.
func (s *Server) ProcessOne(ctx context.Context, timeout time.Duration) (Result, error) {
	if err := s.mu.lock(ctx); err != nil {
		return Idle, err
	}
	defer s.mu.unlock()

	frame, err := s.transport.ReadFrame(ctx, timeout)
	if err != nil {
		return Idle, err
	}
	if frame == nil {
		return Idle, nil
	}

	req, err := decodeADU(frame, s.slaves)
	if err != nil {
		// ErrMalformedFrame, ErrBadChecksum, ErrWrongSlave: mandatory
		// silent drop, no wire traffic, bus hygiene.
		return Handled, err
	}

	payload, ex, after := s.dispatch(req)
	if ex != nil {
		if werr := s.transport.WriteFrame(ctx, encodeException(req.Slave, req.Function, ex)); werr != nil {
			return Handled, werr
		}
		return Handled, nil
	}

	if werr := s.transport.WriteFrame(ctx, encodeResponse(req.Slave, req.Function, payload)); werr != nil {
		return Handled, werr
	}

	if after != nil {
		s.runAfter(after)
	}
	return Handled, nil
}

// runAfter invokes the post-response on_write callbacks, recovering any
// panic so a misbehaving embedder callback cannot take down the cycle
// loop. The response has already gone out on the wire by this point, so a
// panic here can only be logged, not downgraded to an exception.
func (s *Server) runAfter(after func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logf("modbus: recovered from on_write callback panic: %v", r)
		}
	}()
	after()
}
