package modbus

import (
	"context"
	"testing"
	"time"
)

// loopbackTransport is a minimal in-memory FrameTransport for exercising
// Server.ProcessOne without a real serial line: requests are pushed onto in
// and responses are captured on out.
type loopbackTransport struct {
	in  chan []byte
	out chan []byte
}

func newLoopbackTransport() *loopbackTransport {
	return &loopbackTransport{in: make(chan []byte, 4), out: make(chan []byte, 4)}
}

func (l *loopbackTransport) ReadFrame(ctx context.Context, timeout time.Duration) ([]byte, error) {
	select {
	case f := <-l.in:
		return f, nil
	case <-time.After(timeout):
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *loopbackTransport) WriteFrame(ctx context.Context, adu []byte) error {
	l.out <- adu
	return nil
}

func TestProcessOneIdleWhenNothingArrives(t *testing.T) {
	transport := newLoopbackTransport()
	srv := NewServer(transport, []byte{1}, NewStore(), nil)

	result, err := srv.ProcessOne(context.Background(), 10*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != Idle {
		t.Fatalf("result = %v, want Idle", result)
	}
}

func TestProcessOneReadHoldingRegisters(t *testing.T) {
	store := NewStore()
	store.AddHolding(0, []uint16{0x0141, 0x007B}, nil, nil)
	transport := newLoopbackTransport()
	srv := NewServer(transport, []byte{1}, store, nil)

	transport.in <- putCRC([]byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x02})

	result, err := srv.ProcessOne(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != Handled {
		t.Fatalf("result = %v, want Handled", result)
	}

	want := []byte{0x01, 0x03, 0x04, 0x01, 0x41, 0x00, 0x7B, 0xEB, 0xF8}
	select {
	case got := <-transport.out:
		if string(got) != string(want) {
			t.Fatalf("response = % X, want % X", got, want)
		}
	default:
		t.Fatal("no response was written")
	}
}

func TestProcessOneReadHoldingRegistersMissingAddressIsException(t *testing.T) {
	store := NewStore()
	store.AddHolding(0, []uint16{1}, nil, nil) // only address 0 exists
	transport := newLoopbackTransport()
	srv := NewServer(transport, []byte{1}, store, nil)

	transport.in <- putCRC([]byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x02})
	if _, err := srv.ProcessOne(context.Background(), time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := <-transport.out
	if got[1] != FuncReadHoldingRegisters|0x80 {
		t.Fatalf("function byte = %#x, want exception bit set", got[1])
	}
	if got[2] != ExIllegalDataAddress.Code() {
		t.Fatalf("exception code = %#x, want ILLEGAL_DATA_ADDRESS", got[2])
	}
}

func TestProcessOneWriteSingleCoilOnAndInvalidValue(t *testing.T) {
	store := NewStore()
	store.AddCoil(0, []bool{false}, nil, nil)
	transport := newLoopbackTransport()
	srv := NewServer(transport, []byte{1}, store, nil)

	transport.in <- putCRC([]byte{0x01, 0x05, 0x00, 0x00, 0xFF, 0x00})
	if _, err := srv.ProcessOne(context.Background(), time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	echoResp := <-transport.out
	want := putCRC([]byte{0x01, 0x05, 0x00, 0x00, 0xFF, 0x00})
	if string(echoResp) != string(want) {
		t.Fatalf("echo response = % X, want % X", echoResp, want)
	}
	if v, _ := store.GetCoil(0); !v {
		t.Fatal("coil was not set to ON")
	}

	transport.in <- putCRC([]byte{0x01, 0x05, 0x00, 0x00, 0x12, 0x34})
	if _, err := srv.ProcessOne(context.Background(), time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	exResp := <-transport.out
	if exResp[2] != ExIllegalDataValue.Code() {
		t.Fatalf("exception code = %#x, want ILLEGAL_DATA_VALUE", exResp[2])
	}
}

func TestProcessOneWriteSingleRegisterFiresOnWriteAfterResponse(t *testing.T) {
	store := NewStore()
	fired := make(chan uint16, 1)
	store.AddHolding(3, []uint16{0}, nil, func(kind BankKind, base uint16, values []uint16) {
		fired <- values[0]
	})
	transport := newLoopbackTransport()
	srv := NewServer(transport, []byte{1}, store, nil)

	transport.in <- putCRC([]byte{0x01, 0x06, 0x00, 0x03, 0x00, 0x2A})
	if _, err := srv.ProcessOne(context.Background(), time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case <-transport.out:
	default:
		t.Fatal("no response written before on_write callback")
	}

	select {
	case v := <-fired:
		if v != 0x2A {
			t.Fatalf("on_write saw %#x, want 0x2A", v)
		}
	case <-time.After(time.Second):
		t.Fatal("on_write callback never fired")
	}
}

func TestProcessOneSilentlyDropsBadChecksum(t *testing.T) {
	transport := newLoopbackTransport()
	srv := NewServer(transport, []byte{1}, NewStore(), nil)

	transport.in <- []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00}
	result, err := srv.ProcessOne(context.Background(), time.Second)
	if result != Handled || err == nil {
		t.Fatalf("result=%v err=%v, want Handled with ErrBadChecksum", result, err)
	}
	select {
	case got := <-transport.out:
		t.Fatalf("expected no response, got % X", got)
	default:
	}
}

func TestProcessOneReadCoilsBitPacking(t *testing.T) {
	store := NewStore()
	store.AddCoil(0, []bool{true, false, true, false, false, false, false, false, true}, nil, nil)
	transport := newLoopbackTransport()
	srv := NewServer(transport, []byte{1}, store, nil)

	transport.in <- putCRC([]byte{0x01, 0x01, 0x00, 0x00, 0x00, 0x09})
	if _, err := srv.ProcessOne(context.Background(), time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := <-transport.out
	wantPayload := []byte{0x02, 0x05, 0x01} // byte count, then LSB-first packed bits
	if string(got[2:5]) != string(wantPayload) {
		t.Fatalf("payload = % X, want % X", got[2:5], wantPayload)
	}
}
