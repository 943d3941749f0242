package nbt

import (
	"encoding/binary"
	"fmt"
)

const (
	// Question and resource record types.
	QUESTION_TYPE_NB     = 0x0020
	QUESTION_TYPE_NBSTAT = 0x0021

	// Question and resource record classes.
	QUESTION_CLASS_IN = 0x0001
)

// Question represents a single question entry of a request.
type Question struct {
	Name  Name
	Type  uint16
	Class uint16
}

// Encode returns the wire form of the question entry: the encoded name
// followed by the big-endian type and class.
func (q Question) Encode() ([]byte, error) {
	name, err := q.Name.Encode()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, len(name)+4)
	copy(buf, name)
	binary.BigEndian.PutUint16(buf[len(name):], q.Type)
	binary.BigEndian.PutUint16(buf[len(name)+2:], q.Class)
	return buf, nil
}

// parseQuestion parses a question entry at the beginning of the buffer and
// returns it together with the number of bytes it occupies.
func parseQuestion(data []byte) (Question, int, error) {
	name, size, err := parseName(data)
	if err != nil {
		return Question{}, 0, err
	}
	if len(data) < size+4 {
		return Question{}, 0, fmt.Errorf("%w: question entry truncated", ErrMessageTooShort)
	}
	return Question{
		Name:  name,
		Type:  binary.BigEndian.Uint16(data[size : size+2]),
		Class: binary.BigEndian.Uint16(data[size+2 : size+4]),
	}, size + 4, nil
}

// NameQueryRequest represents a NAME QUERY REQUEST (RFC 1002, 4.2.12):
// a single NB question with recursion desired, optionally broadcast.
type NameQueryRequest struct {
	TransactionID uint16
	Name          Name
	Broadcast     bool
}

// Encode returns the wire form of the request.
func (req NameQueryRequest) Encode() ([]byte, error) {
	nmFlags := uint8(NM_FLAGS_RD)
	if req.Broadcast {
		nmFlags |= NM_FLAGS_B
	}
	question, err := Question{req.Name, QUESTION_TYPE_NB, QUESTION_CLASS_IN}.Encode()
	if err != nil {
		return nil, err
	}
	header := BuildHeader(req.TransactionID, false, OP_QUERY, nmFlags, RCODE_POS_RSP, 1, 0, 0, 0)
	return append(header, question...), nil
}

// NodeStatusRequest represents a NODE STATUS REQUEST (RFC 1002, 4.2.17):
// a single NBSTAT question, always unicast and never recursive.
type NodeStatusRequest struct {
	TransactionID uint16
	Name          Name
}

// Encode returns the wire form of the request.
func (req NodeStatusRequest) Encode() ([]byte, error) {
	question, err := Question{req.Name, QUESTION_TYPE_NBSTAT, QUESTION_CLASS_IN}.Encode()
	if err != nil {
		return nil, err
	}
	header := BuildHeader(req.TransactionID, false, OP_QUERY, 0, RCODE_POS_RSP, 1, 0, 0, 0)
	return append(header, question...), nil
}

// NameRegistrationRequest represents a NAME REGISTRATION REQUEST
// (RFC 1002, 4.2.2): an NB question plus an additional record carrying the
// owner's address. The same shape serves the release (4.2.9) and refresh
// (4.2.4) requests, which only differ in the opcode and flags.
type NameRegistrationRequest struct {
	TransactionID uint16
	Name          Name
	Address       [4]byte
	Group         bool
	NodeType      uint8
	TTL           uint32
	Broadcast     bool
}

// Encode returns the wire form of the registration request.
func (req NameRegistrationRequest) Encode() ([]byte, error) {
	nmFlags := uint8(NM_FLAGS_RD)
	if req.Broadcast {
		nmFlags |= NM_FLAGS_B
	}
	return encodeNameAndAddress(req.TransactionID, OP_REGISTER, nmFlags, req.Name, req.Address, req.Group, req.NodeType, req.TTL)
}

// NameReleaseRequest represents a NAME RELEASE REQUEST (RFC 1002, 4.2.9).
type NameReleaseRequest struct {
	TransactionID uint16
	Name          Name
	Address       [4]byte
	Group         bool
	NodeType      uint8
	Broadcast     bool
}

// Encode returns the wire form of the release request.
func (req NameReleaseRequest) Encode() ([]byte, error) {
	var nmFlags uint8
	if req.Broadcast {
		nmFlags |= NM_FLAGS_B
	}
	return encodeNameAndAddress(req.TransactionID, OP_RELEASE, nmFlags, req.Name, req.Address, req.Group, req.NodeType, 0)
}

// NameRefreshRequest represents a NAME REFRESH REQUEST (RFC 1002, 4.2.4).
type NameRefreshRequest struct {
	TransactionID uint16
	Name          Name
	Address       [4]byte
	Group         bool
	NodeType      uint8
	TTL           uint32
}

// Encode returns the wire form of the refresh request.
func (req NameRefreshRequest) Encode() ([]byte, error) {
	return encodeNameAndAddress(req.TransactionID, OP_REFRESH, 0, req.Name, req.Address, req.Group, req.NodeType, req.TTL)
}

// encodeNameAndAddress builds the request shape shared by the registration,
// release and refresh requests: one NB question and one additional record
// with the NB address data.
func encodeNameAndAddress(transactionID uint16, opcode, nmFlags uint8, name Name, address [4]byte, group bool, nodeType uint8, ttl uint32) ([]byte, error) {
	question, err := Question{name, QUESTION_TYPE_NB, QUESTION_CLASS_IN}.Encode()
	if err != nil {
		return nil, err
	}
	rr := ResourceRecord{
		Name:  name,
		Type:  QUESTION_TYPE_NB,
		Class: QUESTION_CLASS_IN,
		TTL:   ttl,
		Data:  EncodeAddrEntry(AddrEntry{Flags: NBFlags(group, nodeType), Address: address}),
	}
	record, err := rr.Encode()
	if err != nil {
		return nil, err
	}
	header := BuildHeader(transactionID, false, opcode, nmFlags, RCODE_POS_RSP, 1, 0, 0, 1)
	buf := append(header, question...)
	return append(buf, record...), nil
}
