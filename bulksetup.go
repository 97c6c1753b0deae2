package modbus

// BitEntry describes one bulk-setup entry for a bit bank (COIL or
// DISCRETE_INPUT). Either Values is given explicitly, or Length requests a
// default-filled (false) vector of that size — exactly one of the two
// should be set; if both are zero-valued the entry resolves to a single
// false cell.
type BitEntry struct {
	Address uint16
	Values  []bool
	Length  uint16
	OnRead  OnBitReadFunc
	OnWrite OnBitWriteFunc // ignored for DISCRETE_INPUT
}

func (e BitEntry) resolve() []bool {
	if e.Values != nil {
		return e.Values
	}
	n := e.Length
	if n == 0 {
		n = 1
	}
	return make([]bool, n)
}

// WordEntry describes one bulk-setup entry for a word bank (HOLDING or
// INPUT). Either Values is given explicitly, or Length requests a
// default-filled (0) vector of that size.
type WordEntry struct {
	Address uint16
	Values  []uint16
	Length  uint16
	OnRead  OnWordReadFunc
	OnWrite OnWordWriteFunc // ignored for INPUT
}

func (e WordEntry) resolve() []uint16 {
	if e.Values != nil {
		return e.Values
	}
	n := e.Length
	if n == 0 {
		n = 1
	}
	return make([]uint16, n)
}

// Description is a declarative bank setup, keyed by bank kind. Applying it
// is equivalent to invoking the per-bank Add in the order the entries are
// presented; an entry overwrites any earlier entry at the same address.
type Description struct {
	Coils          []BitEntry
	DiscreteInputs []BitEntry
	Holdings       []WordEntry
	Inputs         []WordEntry
}

// BulkSetup applies desc to the store, entry by entry, in the order given.
func (s *Store) BulkSetup(desc Description) {
	for _, e := range desc.Coils {
		s.AddCoil(e.Address, e.resolve(), e.OnRead, e.OnWrite)
	}
	for _, e := range desc.DiscreteInputs {
		s.AddDiscreteInput(e.Address, e.resolve(), e.OnRead)
	}
	for _, e := range desc.Holdings {
		s.AddHolding(e.Address, e.resolve(), e.OnRead, e.OnWrite)
	}
	for _, e := range desc.Inputs {
		s.AddInput(e.Address, e.resolve(), e.OnRead)
	}
}
