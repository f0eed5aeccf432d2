package vme

import (
	"encoding/binary"
	"fmt"
)

// Bridge frame: fixed-size header + 32-bit payload.
// Request:  TransactionID(2) Op(1) AddrMod(1) Address(4) Data(4)
// Response: TransactionID(2) Status(1) Reserved(1) Data(4)
type Frame struct {
	TransactionID uint16 // request/response correlation
	Op            uint8
	AddrMod       uint8 // VME address modifier
	Status        uint8 // response only, 0 = ok
	Address       uint32
	Data          uint32
}

// Bridge operations
const (
	OpRead  = 0x01
	OpWrite = 0x02
)

// AddrModA16 is the A16 non-privileged data access modifier.
const AddrModA16 = 0x29

const (
	requestSize  = 12
	responseSize = 8
)

// Bridge status codes (non-zero = bus fault)
const (
	StatusOK          = 0x00
	StatusBusError    = 0x01 // BERR* asserted
	StatusTimeout     = 0x02
	StatusInvalidAddr = 0x03
)

func statusText(status uint8) string {
	switch status {
	case StatusBusError:
		return "bus error (BERR)"
	case StatusTimeout:
		return "bus timeout"
	case StatusInvalidAddr:
		return "invalid address"
	default:
		return fmt.Sprintf("bridge status 0x%02x", status)
	}
}

// EncodeRequest builds the wire form of a request frame.
func (f *Frame) EncodeRequest() []byte {
	buf := make([]byte, requestSize)

	binary.BigEndian.PutUint16(buf[0:2], f.TransactionID)
	buf[2] = f.Op
	buf[3] = f.AddrMod
	binary.BigEndian.PutUint32(buf[4:8], f.Address)
	binary.BigEndian.PutUint32(buf[8:12], f.Data)

	return buf
}

// DecodeResponse parses a response frame received from the bridge.
func DecodeResponse(data []byte) (*Frame, error) {
	if len(data) < responseSize {
		return nil, fmt.Errorf("response too short: %d bytes", len(data))
	}

	f := &Frame{
		TransactionID: binary.BigEndian.Uint16(data[0:2]),
		Status:        data[2],
		Data:          binary.BigEndian.Uint32(data[4:8]),
	}

	return f, nil
}

// ReadRequest builds a single-register read of addr.
func ReadRequest(transactionID uint16, addr uint32) *Frame {
	return &Frame{
		TransactionID: transactionID,
		Op:            OpRead,
		AddrMod:       AddrModA16,
		Address:       addr,
	}
}

// WriteRequest builds a single-register write of value to addr.
func WriteRequest(transactionID uint16, addr uint32, value uint32) *Frame {
	return &Frame{
		TransactionID: transactionID,
		Op:            OpWrite,
		AddrMod:       AddrModA16,
		Address:       addr,
		Data:          value,
	}
}
