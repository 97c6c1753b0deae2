package modbus

import "errors"

var (
	// ErrMalformedFrame indicates that a received ADU was shorter than the
	// minimum shape for its function code, or otherwise structurally
	// invalid. Per Modbus RTU bus hygiene this produces no response.
	ErrMalformedFrame = errors.New("modbus: malformed frame")
	// ErrBadChecksum indicates that the trailing CRC of a received ADU did
	// not match the recomputed CRC of the preceding bytes. Produces no
	// response.
	ErrBadChecksum = errors.New("modbus: bad checksum")
	// ErrWrongSlave indicates the ADU's slave address is not in the
	// server's configured address set. Produces no response.
	ErrWrongSlave = errors.New("modbus: wrong slave address")
	// ErrDataSizeExceeded indicates that the given data length exceeds the limits of a modbus
	// package payload.
	ErrDataSizeExceeded = errors.New("modbus: data size exceeds limit")
	// ErrInvalidParameter signals a malformed input.
	ErrInvalidParameter = errors.New("modbus: given parameter violates restriction")
	// ErrNoSuchAddress is returned by a bank's get when no cell has been
	// created at the given address (remove reports absence as a bool).
	ErrNoSuchAddress = errors.New("modbus: no such address")
	// ErrWrongKind names addressing a cell with a value of the wrong
	// tagged-variant kind (e.g. a word written into a bit bank). The typed
	// bank API rules this out at compile time, so no function in this
	// package returns it.
	ErrWrongKind = errors.New("modbus: wrong value kind for bank")
)
