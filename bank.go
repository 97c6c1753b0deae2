package modbus

import "sync"

// BankKind identifies one of the four Modbus register banks.
type BankKind int

const (
	CoilBank BankKind = iota
	DiscreteInputBank
	HoldingBank
	InputBank
)

// Writable reports whether the bank accepts externally driven (wire) writes.
// Coils and holding registers are; discrete inputs and input registers are
// read-only over the wire (the embedder may still mutate them directly).
func (k BankKind) Writable() bool {
	return k == CoilBank || k == HoldingBank
}

func (k BankKind) String() string {
	switch k {
	case CoilBank:
		return "coil"
	case DiscreteInputBank:
		return "discrete_input"
	case HoldingBank:
		return "holding"
	case InputBank:
		return "input"
	default:
		return "unknown"
	}
}

// OnBitReadFunc and OnWordReadFunc are invoked, in ascending address
// order, for every cell of a
// read range that carries one, before the range is sampled. values is a
// mutable window over the whole range being read (indexed relative to the
// read's base address, not the cell's own address); a callback may refresh
// any entry before the final sample is taken.
type OnBitReadFunc func(kind BankKind, base uint16, values []bool)
type OnWordReadFunc func(kind BankKind, base uint16, values []uint16)

// OnBitWriteFunc and OnWordWriteFunc are invoked once per write, in ascending address order among
// cells that carry one, after the response has been handed to the
// transport. values is the vector that was just committed.
type OnBitWriteFunc func(kind BankKind, base uint16, values []bool)
type OnWordWriteFunc func(kind BankKind, base uint16, values []uint16)

type bitCell struct {
	value   bool
	onRead  OnBitReadFunc
	onWrite OnBitWriteFunc
}

type wordCell struct {
	value   uint16
	onRead  OnWordReadFunc
	onWrite OnWordWriteFunc
}

// BitChange is one entry of a bit bank's change log.
type BitChange struct {
	Address   uint16
	Value     bool
	Timestamp uint64
}

// WordChange is one entry of a word bank's change log.
type WordChange struct {
	Address   uint16
	Value     uint16
	Timestamp uint64
}

// bitBank backs the COIL and DISCRETE_INPUT banks.
type bitBank struct {
	kind    BankKind
	mu      sync.Mutex
	cells   map[uint16]*bitCell
	changes map[uint16]BitChange
}

func newBitBank(kind BankKind) *bitBank {
	return &bitBank{
		kind:    kind,
		cells:   make(map[uint16]*bitCell),
		changes: make(map[uint16]BitChange),
	}
}

// add creates or overwrites cells at addr..addr+len(values)-1. Pre-existing
// callbacks are preserved unless new ones are explicitly supplied.
func (b *bitBank) add(addr uint16, values []bool, onRead OnBitReadFunc, onWrite OnBitWriteFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, v := range values {
		a := addr + uint16(i)
		c, ok := b.cells[a]
		if !ok {
			c = &bitCell{}
			b.cells[a] = c
		}
		c.value = v
		if onRead != nil {
			c.onRead = onRead
		}
		if onWrite != nil {
			c.onWrite = onWrite
		}
	}
}

func (b *bitBank) remove(addr uint16) (bool, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.cells[addr]
	if !ok {
		return false, false
	}
	delete(b.cells, addr)
	return c.value, true
}

// set updates the value(s) at addr..addr+len(values)-1, preserving
// callbacks. Cells are created (without callbacks) if absent.
func (b *bitBank) set(addr uint16, values []bool) {
	b.add(addr, values, nil, nil)
}

func (b *bitBank) get(addr uint16) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.cells[addr]
	if !ok {
		return false, ErrNoSuchAddress
	}
	return c.value, nil
}

func (b *bitBank) addresses() []uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]uint16, 0, len(b.cells))
	for a := range b.cells {
		out = append(out, a)
	}
	return out
}

func (b *bitBank) existsRange(addr, quantity uint16) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := uint16(0); i < quantity; i++ {
		if _, ok := b.cells[addr+i]; !ok {
			return false
		}
	}
	return true
}

// read samples quantity cells starting at addr. The caller must have
// already verified existsRange. on_read callbacks fire in ascending
// address order before the final sample is taken.
func (b *bitBank) read(addr, quantity uint16) []bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	values := make([]bool, quantity)
	for i := uint16(0); i < quantity; i++ {
		values[i] = b.cells[addr+i].value
	}
	for i := uint16(0); i < quantity; i++ {
		if cb := b.cells[addr+i].onRead; cb != nil {
			cb(b.kind, addr, values)
		}
	}
	for i := uint16(0); i < quantity; i++ {
		b.cells[addr+i].value = values[i]
	}
	return values
}

// write commits values at addr..addr+len(values)-1 and appends one change
// log entry per address at timestamp ts. The caller must have already
// verified existsRange. Returns the attached on_write callbacks, in
// ascending address order, deduplicated, for the caller to invoke after
// the response has been sent.
func (b *bitBank) write(addr uint16, values []bool, ts uint64) []OnBitWriteFunc {
	b.mu.Lock()
	defer b.mu.Unlock()
	var callbacks []OnBitWriteFunc
	seen := make(map[*bitCell]bool)
	for i, v := range values {
		a := addr + uint16(i)
		c := b.cells[a]
		c.value = v
		b.changes[a] = BitChange{Address: a, Value: v, Timestamp: ts}
		if c.onWrite != nil && !seen[c] {
			seen[c] = true
			callbacks = append(callbacks, c.onWrite)
		}
	}
	return callbacks
}

func (b *bitBank) drainChanges() []BitChange {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]BitChange, 0, len(b.changes))
	for _, c := range b.changes {
		out = append(out, c)
	}
	return out
}

func (b *bitBank) acknowledge(addr uint16, ts uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.changes[addr]
	if !ok || c.Timestamp != ts {
		return false
	}
	delete(b.changes, addr)
	return true
}

// wordBank backs the HOLDING and INPUT banks; mirrors bitBank exactly but
// over uint16 values.
type wordBank struct {
	kind    BankKind
	mu      sync.Mutex
	cells   map[uint16]*wordCell
	changes map[uint16]WordChange
}

func newWordBank(kind BankKind) *wordBank {
	return &wordBank{
		kind:    kind,
		cells:   make(map[uint16]*wordCell),
		changes: make(map[uint16]WordChange),
	}
}

func (b *wordBank) add(addr uint16, values []uint16, onRead OnWordReadFunc, onWrite OnWordWriteFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, v := range values {
		a := addr + uint16(i)
		c, ok := b.cells[a]
		if !ok {
			c = &wordCell{}
			b.cells[a] = c
		}
		c.value = v
		if onRead != nil {
			c.onRead = onRead
		}
		if onWrite != nil {
			c.onWrite = onWrite
		}
	}
}

func (b *wordBank) remove(addr uint16) (uint16, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.cells[addr]
	if !ok {
		return 0, false
	}
	delete(b.cells, addr)
	return c.value, true
}

func (b *wordBank) set(addr uint16, values []uint16) {
	b.add(addr, values, nil, nil)
}

func (b *wordBank) get(addr uint16) (uint16, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.cells[addr]
	if !ok {
		return 0, ErrNoSuchAddress
	}
	return c.value, nil
}

func (b *wordBank) addresses() []uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]uint16, 0, len(b.cells))
	for a := range b.cells {
		out = append(out, a)
	}
	return out
}

func (b *wordBank) existsRange(addr, quantity uint16) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := uint16(0); i < quantity; i++ {
		if _, ok := b.cells[addr+i]; !ok {
			return false
		}
	}
	return true
}

func (b *wordBank) read(addr, quantity uint16) []uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	values := make([]uint16, quantity)
	for i := uint16(0); i < quantity; i++ {
		values[i] = b.cells[addr+i].value
	}
	for i := uint16(0); i < quantity; i++ {
		if cb := b.cells[addr+i].onRead; cb != nil {
			cb(b.kind, addr, values)
		}
	}
	for i := uint16(0); i < quantity; i++ {
		b.cells[addr+i].value = values[i]
	}
	return values
}

func (b *wordBank) write(addr uint16, values []uint16, ts uint64) []OnWordWriteFunc {
	b.mu.Lock()
	defer b.mu.Unlock()
	var callbacks []OnWordWriteFunc
	seen := make(map[*wordCell]bool)
	for i, v := range values {
		a := addr + uint16(i)
		c := b.cells[a]
		c.value = v
		b.changes[a] = WordChange{Address: a, Value: v, Timestamp: ts}
		if c.onWrite != nil && !seen[c] {
			seen[c] = true
			callbacks = append(callbacks, c.onWrite)
		}
	}
	return callbacks
}

func (b *wordBank) drainChanges() []WordChange {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]WordChange, 0, len(b.changes))
	for _, c := range b.changes {
		out = append(out, c)
	}
	return out
}

func (b *wordBank) acknowledge(addr uint16, ts uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.changes[addr]
	if !ok || c.Timestamp != ts {
		return false
	}
	delete(b.changes, addr)
	return true
}
