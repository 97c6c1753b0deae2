package modbus

import "encoding/binary"

// Function codes this slave understands. Anything else is routed to the
// ILLEGAL_FUNCTION exception by the dispatcher.
const (
	FuncReadCoils              byte = 0x01
	FuncReadDiscreteInputs     byte = 0x02
	FuncReadHoldingRegisters   byte = 0x03
	FuncReadInputRegisters     byte = 0x04
	FuncWriteSingleCoil        byte = 0x05
	FuncWriteSingleRegister    byte = 0x06
	FuncWriteMultipleCoils     byte = 0x0F
	FuncWriteMultipleRegisters byte = 0x10
)

// maxADU is the largest Modbus RTU application data unit, per the
// specification's wire limit.
const maxADU = 256

// Request is a parsed RTU request ADU, with the address header and CRC
// trailer stripped off.
type Request struct {
	Slave    byte
	Function byte
	// Address is the starting address for every supported function.
	Address uint16
	// QuantityOrValue is the register/coil count for reads and multi-
	// writes, or the raw 16-bit value for WriteSingleCoil /
	// WriteSingleRegister.
	QuantityOrValue uint16
	// ByteCount and Data are populated only for the multi-write functions.
	ByteCount byte
	Data      []byte
}

// decodeADU parses a complete RTU ADU (as delimited by the transport) into
// a Request. It performs, in order: the length-floor check
// (ErrMalformedFrame), the CRC check (ErrBadChecksum), and the slave
// address filter (ErrWrongSlave). All three are silent-drop conditions
// per the protocol and carry no response. A recognized function code
// whose payload doesn't match its required shape also yields
// ErrMalformedFrame. An unrecognized function code is NOT an error here —
// it is returned as a Request so the dispatcher can reply with
// ILLEGAL_FUNCTION, since the frame itself was well formed.
func decodeADU(adu []byte, slaves map[byte]bool) (Request, error) {
	if len(adu) < 4 {
		return Request{}, ErrMalformedFrame
	}
	if !verifyCRC(adu) {
		return Request{}, ErrBadChecksum
	}
	slave := adu[0]
	if !slaves[slave] {
		return Request{}, ErrWrongSlave
	}
	function := adu[1]
	payload := adu[2 : len(adu)-2]

	req := Request{Slave: slave, Function: function}
	switch function {
	case FuncReadCoils, FuncReadDiscreteInputs, FuncReadHoldingRegisters, FuncReadInputRegisters,
		FuncWriteSingleCoil, FuncWriteSingleRegister:
		if len(payload) != 4 {
			return Request{}, ErrMalformedFrame
		}
		req.Address = binary.BigEndian.Uint16(payload[0:])
		req.QuantityOrValue = binary.BigEndian.Uint16(payload[2:])
	case FuncWriteMultipleCoils, FuncWriteMultipleRegisters:
		if len(payload) < 5 {
			return Request{}, ErrMalformedFrame
		}
		req.Address = binary.BigEndian.Uint16(payload[0:])
		req.QuantityOrValue = binary.BigEndian.Uint16(payload[2:])
		req.ByteCount = payload[4]
		req.Data = payload[5:]
		if len(req.Data) != int(req.ByteCount) {
			return Request{}, ErrMalformedFrame
		}
	default:
		// unknown function: leave Address/QuantityOrValue zeroed, the
		// dispatcher never reads them for this case.
	}
	return req, nil
}

// encodeResponse builds a normal response ADU: slave | function | payload | crc.
func encodeResponse(slave, function byte, payload []byte) []byte {
	adu := make([]byte, 0, 2+len(payload)+2)
	adu = append(adu, slave, function)
	adu = append(adu, payload...)
	return putCRC(adu)
}

// encodeException builds an exception ADU: slave | (function|0x80) | code | crc.
func encodeException(slave, function byte, ex Exception) []byte {
	adu := []byte{slave, function | 0x80, ex.Code()}
	return putCRC(adu)
}
