package modbus

import "sync/atomic"

// Store is the register model owned exclusively by a Server for the
// duration of a processing cycle: four typed banks, each independently
// addressed. Multiple Stores (and hence multiple Servers, one per slave
// address) never share state.
type Store struct {
	coils          *bitBank
	discreteInputs *bitBank
	holdings       *wordBank
	inputs         *wordBank
	changeSeq      uint64
}

// NewStore builds an empty register store with all four banks present but
// unpopulated. Use BulkSetup or the per-bank Add methods to populate it.
func NewStore() *Store {
	return &Store{
		coils:          newBitBank(CoilBank),
		discreteInputs: newBitBank(DiscreteInputBank),
		holdings:       newWordBank(HoldingBank),
		inputs:         newWordBank(InputBank),
	}
}

// nextTimestamp returns the next value of a monotonic 64-bit counter, used
// to tag change-log entries. A counter rather than a wall clock avoids
// ambiguity if the clock is reset and needs no resolution guarantees
// beyond "never repeats and never goes backwards".
func (s *Store) nextTimestamp() uint64 {
	return atomic.AddUint64(&s.changeSeq, 1)
}

// --- Coils (COIL: readable, externally writable) ---

// AddCoil creates or overwrites cells at addr..addr+len(values)-1.
// Pre-existing callbacks on those cells are preserved unless replaced here.
func (s *Store) AddCoil(addr uint16, values []bool, onRead OnBitReadFunc, onWrite OnBitWriteFunc) {
	s.coils.add(addr, values, onRead, onWrite)
}

// RemoveCoil deletes the cell at addr, returning its prior value.
func (s *Store) RemoveCoil(addr uint16) (value bool, existed bool) {
	return s.coils.remove(addr)
}

// SetCoil writes value(s) at addr..addr+len(values)-1, preserving
// callbacks, creating cells if absent. This is an embedder-initiated
// mutation, not a wire write, and does not touch the change log or fire
// on_write callbacks.
func (s *Store) SetCoil(addr uint16, values ...bool) {
	s.coils.set(addr, values)
}

// GetCoil returns the current value at addr, or ErrNoSuchAddress.
func (s *Store) GetCoil(addr uint16) (bool, error) {
	return s.coils.get(addr)
}

// CoilAddresses returns the addresses currently present in the coil bank,
// in unspecified order.
func (s *Store) CoilAddresses() []uint16 {
	return s.coils.addresses()
}

// ChangedCoils returns the change-log entries recorded for the coil bank
// since their last acknowledgement.
func (s *Store) ChangedCoils() []BitChange {
	return s.coils.drainChanges()
}

// AcknowledgeCoilChange removes the change-log entry for addr if its
// recorded timestamp still equals ts, guarding against a lost-update race
// with a concurrent new write. Returns whether the entry was removed.
func (s *Store) AcknowledgeCoilChange(addr uint16, ts uint64) bool {
	return s.coils.acknowledge(addr, ts)
}

// --- Discrete inputs (DISCRETE_INPUT: read-only over the wire) ---

// AddDiscreteInput creates or overwrites cells; see AddCoil. Discrete
// inputs cannot be written by a remote master, but the embedder may
// populate and mutate them freely.
func (s *Store) AddDiscreteInput(addr uint16, values []bool, onRead OnBitReadFunc) {
	s.discreteInputs.add(addr, values, onRead, nil)
}

func (s *Store) RemoveDiscreteInput(addr uint16) (value bool, existed bool) {
	return s.discreteInputs.remove(addr)
}

// SetDiscreteInput is the embedder's mechanism for refreshing input state
// (e.g. from a sensor poll); it is unrelated to the wire protocol, which
// never writes this bank.
func (s *Store) SetDiscreteInput(addr uint16, values ...bool) {
	s.discreteInputs.set(addr, values)
}

func (s *Store) GetDiscreteInput(addr uint16) (bool, error) {
	return s.discreteInputs.get(addr)
}

func (s *Store) DiscreteInputAddresses() []uint16 {
	return s.discreteInputs.addresses()
}

// --- Holding registers (HOLDING: readable, externally writable) ---

func (s *Store) AddHolding(addr uint16, values []uint16, onRead OnWordReadFunc, onWrite OnWordWriteFunc) {
	s.holdings.add(addr, values, onRead, onWrite)
}

func (s *Store) RemoveHolding(addr uint16) (value uint16, existed bool) {
	return s.holdings.remove(addr)
}

func (s *Store) SetHolding(addr uint16, values ...uint16) {
	s.holdings.set(addr, values)
}

func (s *Store) GetHolding(addr uint16) (uint16, error) {
	return s.holdings.get(addr)
}

func (s *Store) HoldingAddresses() []uint16 {
	return s.holdings.addresses()
}

func (s *Store) ChangedHoldings() []WordChange {
	return s.holdings.drainChanges()
}

func (s *Store) AcknowledgeHoldingChange(addr uint16, ts uint64) bool {
	return s.holdings.acknowledge(addr, ts)
}

// --- Input registers (INPUT: read-only over the wire) ---

func (s *Store) AddInput(addr uint16, values []uint16, onRead OnWordReadFunc) {
	s.inputs.add(addr, values, onRead, nil)
}

func (s *Store) RemoveInput(addr uint16) (value uint16, existed bool) {
	return s.inputs.remove(addr)
}

func (s *Store) SetInput(addr uint16, values ...uint16) {
	s.inputs.set(addr, values)
}

func (s *Store) GetInput(addr uint16) (uint16, error) {
	return s.inputs.get(addr)
}

func (s *Store) InputAddresses() []uint16 {
	return s.inputs.addresses()
}
