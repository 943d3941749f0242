package nbt

import (
	"encoding/binary"
	"errors"
)

const (
	// NBNS message opcodes.
	OP_QUERY       = 0x0
	OP_REGISTER    = 0x5
	OP_RELEASE     = 0x6
	OP_WACK        = 0x7
	OP_REFRESH     = 0x8
	OP_ALT_REFRESH = 0x9
	OP_MULTIHOMED  = 0xf
)

const (
	// NM flag bits.
	NM_FLAGS_B  = 1 << 0
	NM_FLAGS_RA = 1 << 3
	NM_FLAGS_RD = 1 << 4
	NM_FLAGS_TC = 1 << 5
	NM_FLAGS_AA = 1 << 6
)

const (
	// Reply codes.
	RCODE_POS_RSP = 0x0
	RCODE_FMT_ERR = 0x1
	RCODE_SRV_ERR = 0x2
	RCODE_NAM_ERR = 0x3
	RCODE_IMP_ERR = 0x4
	RCODE_RFS_ERR = 0x5
	RCODE_ACT_ERR = 0x6
	RCODE_CFT_ERR = 0x7
)

const (
	HeaderSize = 12

	// MaxDatagramSize is the maximum size of an NBNS UDP datagram.
	MaxDatagramSize = 576
)

var (
	ErrMessageTooShort = errors.New("message too short")
	ErrWrongFormat     = errors.New("wrong data format")
)

// Header extends the raw byte sequence with NBNS header functionality.
// The header is six big-endian 16-bit words: the transaction id, a packed
// flags word and the four section counts.
type Header []byte

// NewHeader allocates a zeroed NBNS header.
func NewHeader() Header {
	return Header(make([]byte, HeaderSize))
}

// Validate returns an error if the header is too short to be one.
func (h Header) Validate() error {
	if len(h) < HeaderSize {
		return ErrMessageTooShort
	}
	return nil
}

// TransactionID returns the NAME_TRN_ID field of the header.
func (h Header) TransactionID() uint16 {
	return binary.BigEndian.Uint16(h[:2])
}

// SetTransactionID sets the NAME_TRN_ID field of the header.
func (h Header) SetTransactionID(id uint16) {
	binary.BigEndian.PutUint16(h[:2], id)
}

// Flags returns the raw packed flags word of the header.
func (h Header) Flags() uint16 {
	return binary.BigEndian.Uint16(h[2:4])
}

// SetFlags sets the raw packed flags word of the header.
func (h Header) SetFlags(flags uint16) {
	binary.BigEndian.PutUint16(h[2:4], flags)
}

// IsResponse returns true if the R bit of the header is set.
func (h Header) IsResponse() bool {
	return h.Flags()&0x8000 > 0
}

// SetResponse sets or clears the R bit of the header.
func (h Header) SetResponse(response bool) {
	if response {
		h.SetFlags(h.Flags() | 0x8000)
	} else {
		h.SetFlags(h.Flags() &^ 0x8000)
	}
}

// OpCode returns the OPCODE field of the header.
func (h Header) OpCode() uint8 {
	return uint8(h.Flags() >> 11 & 0xf)
}

// SetOpCode sets the OPCODE field of the header. Out-of-range values are
// masked to four bits.
func (h Header) SetOpCode(opcode uint8) {
	h.SetFlags(h.Flags()&^(0xf<<11) | uint16(opcode&0xf)<<11)
}

// NMFlags returns the NM_FLAGS field of the header.
func (h Header) NMFlags() uint8 {
	return uint8(h.Flags() >> 4 & 0x7f)
}

// SetNMFlags sets the NM_FLAGS field of the header. Out-of-range values
// are masked to seven bits.
func (h Header) SetNMFlags(nmFlags uint8) {
	h.SetFlags(h.Flags()&^(0x7f<<4) | uint16(nmFlags&0x7f)<<4)
}

// IsNMFlagSet returns true if the specified bit(s) is (are) set in the
// NM_FLAGS field of the header.
func (h Header) IsNMFlagSet(flag uint8) bool {
	return h.NMFlags()&flag > 0
}

// RCode returns the RCODE field of the header.
func (h Header) RCode() uint8 {
	return uint8(h.Flags() & 0xf)
}

// SetRCode sets the RCODE field of the header. Out-of-range values are
// masked to four bits.
func (h Header) SetRCode(rcode uint8) {
	h.SetFlags(h.Flags()&^0xf | uint16(rcode&0xf))
}

// QDCount returns the QDCOUNT field of the header.
func (h Header) QDCount() uint16 {
	return binary.BigEndian.Uint16(h[4:6])
}

// SetQDCount sets the QDCOUNT field of the header.
func (h Header) SetQDCount(count uint16) {
	binary.BigEndian.PutUint16(h[4:6], count)
}

// ANCount returns the ANCOUNT field of the header.
func (h Header) ANCount() uint16 {
	return binary.BigEndian.Uint16(h[6:8])
}

// SetANCount sets the ANCOUNT field of the header.
func (h Header) SetANCount(count uint16) {
	binary.BigEndian.PutUint16(h[6:8], count)
}

// NSCount returns the NSCOUNT field of the header.
func (h Header) NSCount() uint16 {
	return binary.BigEndian.Uint16(h[8:10])
}

// SetNSCount sets the NSCOUNT field of the header.
func (h Header) SetNSCount(count uint16) {
	binary.BigEndian.PutUint16(h[8:10], count)
}

// ARCount returns the ARCOUNT field of the header.
func (h Header) ARCount() uint16 {
	return binary.BigEndian.Uint16(h[10:12])
}

// SetARCount sets the ARCOUNT field of the header.
func (h Header) SetARCount(count uint16) {
	binary.BigEndian.PutUint16(h[10:12], count)
}

// BuildHeader packs the header fields into a fresh 12-byte buffer.
// The opcode, NM flags and reply code are masked to their field widths
// rather than validated, which matches what existing NetBIOS stacks do.
func BuildHeader(transactionID uint16, response bool, opcode, nmFlags, rcode uint8, qdcount, ancount, nscount, arcount uint16) []byte {
	h := NewHeader()
	h.SetTransactionID(transactionID)
	h.SetResponse(response)
	h.SetOpCode(opcode)
	h.SetNMFlags(nmFlags)
	h.SetRCode(rcode)
	h.SetQDCount(qdcount)
	h.SetANCount(ancount)
	h.SetNSCount(nscount)
	h.SetARCount(arcount)
	return h
}
