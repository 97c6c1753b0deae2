package modbus

import (
	"reflect"
	"testing"
)

func TestBitBankAddSetGetRemove(t *testing.T) {
	b := newBitBank(CoilBank)
	b.add(10, []bool{true, false, true}, nil, nil)

	if v, err := b.get(11); err != nil || v != false {
		t.Fatalf("get(11) = %v, %v; want false, nil", v, err)
	}
	if !b.existsRange(10, 3) {
		t.Fatal("existsRange(10, 3) = false, want true")
	}
	if b.existsRange(10, 4) {
		t.Fatal("existsRange(10, 4) = true, want false (address 13 absent)")
	}

	b.set(11, []bool{true})
	if v, _ := b.get(11); v != true {
		t.Fatal("set did not take effect")
	}

	if _, err := b.get(99); err != ErrNoSuchAddress {
		t.Fatalf("get(99) err = %v, want ErrNoSuchAddress", err)
	}

	if v, ok := b.remove(10); !ok || v != true {
		t.Fatalf("remove(10) = %v, %v; want true, true", v, ok)
	}
	if _, ok := b.remove(10); ok {
		t.Fatal("remove on an already-removed cell reported success")
	}
}

func TestBitBankAddPreservesCallbacksAcrossUpdates(t *testing.T) {
	b := newBitBank(CoilBank)
	called := false
	onWrite := func(BankKind, uint16, []bool) { called = true }
	b.add(0, []bool{false}, nil, onWrite)

	// a later add with nil callbacks must not clobber the one already
	// attached.
	b.add(0, []bool{true}, nil, nil)
	b.write(0, []bool{false}, 1)
	for _, cb := range []OnBitWriteFunc{b.cells[0].onWrite} {
		cb(CoilBank, 0, []bool{false})
	}
	if !called {
		t.Fatal("on_write callback was lost across a subsequent add")
	}
}

func TestBitBankReadInvokesCallbacksBeforeSampling(t *testing.T) {
	b := newBitBank(HoldingBank) // kind irrelevant to this test
	var order []uint16
	cb := func(kind BankKind, base uint16, values []bool) {
		order = append(order, base)
		values[0] = true // mutate before the final sample is taken
	}
	b.add(5, []bool{false, false}, cb, nil)

	got := b.read(5, 2)
	if !got[0] {
		t.Fatal("callback mutation was not reflected in the sampled read")
	}
	if len(order) != 1 || order[0] != 5 {
		t.Fatalf("callback invocation record = %v, want [5]", order)
	}
	// the mutation must also have been committed back to the cell.
	if v, _ := b.get(5); v != true {
		t.Fatal("read did not commit the callback's mutation back to the cell")
	}
}

func TestBitBankWriteRecordsChangeLogAndDedupesCallbacks(t *testing.T) {
	b := newBitBank(CoilBank)
	var fired int
	shared := func(BankKind, uint16, []bool) { fired++ }
	b.add(0, []bool{false, false}, nil, shared)

	cbs := b.write(0, []bool{true, true}, 42)
	if len(cbs) != 1 {
		t.Fatalf("write returned %d callbacks, want 1 deduplicated entry", len(cbs))
	}
	cbs[0](CoilBank, 0, []bool{true, true})
	if fired != 1 {
		t.Fatalf("shared callback fired %d times, want 1", fired)
	}

	changes := b.drainChanges()
	if len(changes) != 2 {
		t.Fatalf("drainChanges returned %d entries, want 2", len(changes))
	}
	for _, c := range changes {
		if c.Timestamp != 42 {
			t.Fatalf("change %+v carries the wrong timestamp", c)
		}
	}
}

func TestBitBankAcknowledgeIsRaceSafeCompareAndDelete(t *testing.T) {
	b := newBitBank(CoilBank)
	b.add(0, []bool{false}, nil, nil)
	b.write(0, []bool{true}, 1)

	// a stale acknowledgement (wrong timestamp) must not remove a newer,
	// unacknowledged change.
	b.write(0, []bool{false}, 2)
	if b.acknowledge(0, 1) {
		t.Fatal("acknowledge succeeded against a superseded timestamp")
	}
	if !b.acknowledge(0, 2) {
		t.Fatal("acknowledge failed against the current timestamp")
	}
	if len(b.drainChanges()) != 0 {
		t.Fatal("acknowledged change still present in the log")
	}
}

func TestWordBankMirrorsBitBank(t *testing.T) {
	w := newWordBank(HoldingBank)
	w.add(100, []uint16{1, 2, 3}, nil, nil)
	if !w.existsRange(100, 3) {
		t.Fatal("existsRange false for a fully populated range")
	}
	values := w.read(100, 3)
	if !reflect.DeepEqual(values, []uint16{1, 2, 3}) {
		t.Fatalf("read = %v, want [1 2 3]", values)
	}
	ts := uint64(7)
	cbs := w.write(100, []uint16{9, 9, 9}, ts)
	if len(cbs) != 0 {
		t.Fatalf("expected no callbacks, got %d", len(cbs))
	}
	if v, _ := w.get(101); v != 9 {
		t.Fatalf("get(101) = %d, want 9", v)
	}
}
