package modbus

import "encoding/binary"

// dispatch routes a validated Request to the matching bank operation. It
// returns the PDU payload of a normal response, or a non-nil Exception if
// the request must be refused. after, if non-nil, is the set of on_write
// callbacks to run once the response has been handed to the transport —
// it is nil for reads and for any refused request.
func (s *Server) dispatch(req Request) (payload []byte, ex Exception, after func()) {
	switch req.Function {
	case FuncReadCoils:
		return s.readCoils(req)
	case FuncReadDiscreteInputs:
		return s.readDiscreteInputs(req)
	case FuncReadHoldingRegisters:
		return s.readHoldingRegisters(req)
	case FuncReadInputRegisters:
		return s.readInputRegisters(req)
	case FuncWriteSingleCoil:
		return s.writeSingleCoil(req)
	case FuncWriteSingleRegister:
		return s.writeSingleRegister(req)
	case FuncWriteMultipleCoils:
		return s.writeMultipleCoils(req)
	case FuncWriteMultipleRegisters:
		return s.writeMultipleRegisters(req)
	default:
		return nil, ExIllegalFunction, nil
	}
}

// recoverToFailure converts a panic raised by an on_read callback into the
// SLAVE_DEVICE_FAILURE exception instead of letting it escape the cycle.
// Per spec this only applies to callbacks that fire before the response is
// built (read callbacks); write callbacks fire after the response has
// already been sent and are recovered separately in ProcessOne.
func (s *Server) recoverToFailure(ex *Exception) {
	if r := recover(); r != nil {
		s.logf("modbus: recovered from callback panic: %v", r)
		*ex = ExSlaveDeviceFailure
	}
}

func (s *Server) readCoils(req Request) (payload []byte, ex Exception, after func()) {
	defer s.recoverToFailure(&ex)
	quantity := req.QuantityOrValue
	if quantity < 1 || quantity > 2000 {
		return nil, ExIllegalDataValue, nil
	}
	if !s.store.coils.existsRange(req.Address, quantity) {
		return nil, ExIllegalDataAddress, nil
	}
	values := s.store.coils.read(req.Address, quantity)
	bc := byteCount(quantity)
	payload = make([]byte, 0, 1+bc)
	payload = append(payload, byte(bc))
	payload = append(payload, packBits(values)...)
	return payload, nil, nil
}

func (s *Server) readDiscreteInputs(req Request) (payload []byte, ex Exception, after func()) {
	defer s.recoverToFailure(&ex)
	quantity := req.QuantityOrValue
	if quantity < 1 || quantity > 2000 {
		return nil, ExIllegalDataValue, nil
	}
	if !s.store.discreteInputs.existsRange(req.Address, quantity) {
		return nil, ExIllegalDataAddress, nil
	}
	values := s.store.discreteInputs.read(req.Address, quantity)
	bc := byteCount(quantity)
	payload = make([]byte, 0, 1+bc)
	payload = append(payload, byte(bc))
	payload = append(payload, packBits(values)...)
	return payload, nil, nil
}

func (s *Server) readHoldingRegisters(req Request) (payload []byte, ex Exception, after func()) {
	defer s.recoverToFailure(&ex)
	quantity := req.QuantityOrValue
	if quantity < 1 || quantity > 125 {
		return nil, ExIllegalDataValue, nil
	}
	if !s.store.holdings.existsRange(req.Address, quantity) {
		return nil, ExIllegalDataAddress, nil
	}
	values := s.store.holdings.read(req.Address, quantity)
	payload = make([]byte, 0, 1+2*int(quantity))
	payload = append(payload, byte(2*quantity))
	payload = append(payload, putWords(values)...)
	return payload, nil, nil
}

func (s *Server) readInputRegisters(req Request) (payload []byte, ex Exception, after func()) {
	defer s.recoverToFailure(&ex)
	quantity := req.QuantityOrValue
	if quantity < 1 || quantity > 125 {
		return nil, ExIllegalDataValue, nil
	}
	if !s.store.inputs.existsRange(req.Address, quantity) {
		return nil, ExIllegalDataAddress, nil
	}
	values := s.store.inputs.read(req.Address, quantity)
	payload = make([]byte, 0, 1+2*int(quantity))
	payload = append(payload, byte(2*quantity))
	payload = append(payload, putWords(values)...)
	return payload, nil, nil
}

func (s *Server) writeSingleCoil(req Request) (payload []byte, ex Exception, after func()) {
	var val bool
	switch req.QuantityOrValue {
	case 0x0000:
		val = false
	case 0xFF00:
		val = true
	default:
		return nil, ExIllegalDataValue, nil
	}
	if !s.store.coils.existsRange(req.Address, 1) {
		return nil, ExIllegalDataAddress, nil
	}
	ts := s.store.nextTimestamp()
	cbs := s.store.coils.write(req.Address, []bool{val}, ts)
	payload = echo(req.Address, req.QuantityOrValue)
	after = func() {
		for _, cb := range cbs {
			cb(CoilBank, req.Address, []bool{val})
		}
	}
	return payload, nil, after
}

func (s *Server) writeSingleRegister(req Request) (payload []byte, ex Exception, after func()) {
	if !s.store.holdings.existsRange(req.Address, 1) {
		return nil, ExIllegalDataAddress, nil
	}
	value := req.QuantityOrValue
	ts := s.store.nextTimestamp()
	cbs := s.store.holdings.write(req.Address, []uint16{value}, ts)
	payload = echo(req.Address, value)
	after = func() {
		for _, cb := range cbs {
			cb(HoldingBank, req.Address, []uint16{value})
		}
	}
	return payload, nil, after
}

func (s *Server) writeMultipleCoils(req Request) (payload []byte, ex Exception, after func()) {
	quantity := req.QuantityOrValue
	if quantity < 1 || quantity > 1968 || int(req.ByteCount) != byteCount(quantity) {
		return nil, ExIllegalDataValue, nil
	}
	if !s.store.coils.existsRange(req.Address, quantity) {
		return nil, ExIllegalDataAddress, nil
	}
	values := unpackBits(req.Data, quantity)
	ts := s.store.nextTimestamp()
	cbs := s.store.coils.write(req.Address, values, ts)
	payload = echo(req.Address, quantity)
	after = func() {
		for _, cb := range cbs {
			cb(CoilBank, req.Address, values)
		}
	}
	return payload, nil, after
}

func (s *Server) writeMultipleRegisters(req Request) (payload []byte, ex Exception, after func()) {
	quantity := req.QuantityOrValue
	if quantity < 1 || quantity > 123 || int(req.ByteCount) != 2*int(quantity) {
		return nil, ExIllegalDataValue, nil
	}
	if !s.store.holdings.existsRange(req.Address, quantity) {
		return nil, ExIllegalDataAddress, nil
	}
	values := parseWords(req.Data)
	ts := s.store.nextTimestamp()
	cbs := s.store.holdings.write(req.Address, values, ts)
	payload = echo(req.Address, quantity)
	after = func() {
		for _, cb := range cbs {
			cb(HoldingBank, req.Address, values)
		}
	}
	return payload, nil, after
}

// echo builds the protocol-standard 4-byte (address, quantity-or-value)
// echo payload shared by every write response.
func echo(address, quantityOrValue uint16) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint16(buf, address)
	binary.BigEndian.PutUint16(buf[2:], quantityOrValue)
	return buf
}
