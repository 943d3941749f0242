package nbt

import (
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	// Resource record type used by negative name query responses.
	RR_TYPE_NULL = 0x000a
)

const (
	// Owner node types carried in the NB_FLAGS field.
	NODE_B = 0x0
	NODE_P = 0x1
	NODE_M = 0x2
)

const (
	// NB_FLAGS bits.
	NB_FLAGS_GROUP = 0x8000

	// NODE_NAME flags of a node status response.
	NAME_FLAGS_GROUP      = 0x8000
	NAME_FLAGS_DEREGISTER = 0x1000
	NAME_FLAGS_CONFLICT   = 0x0800
	NAME_FLAGS_ACTIVE     = 0x0400
	NAME_FLAGS_PERMANENT  = 0x0200

	// The fixed-size statistics block of a node status response.
	nodeStatisticsSize = 46
)

// NBFlags packs the group bit and the owner node type into an NB_FLAGS word.
func NBFlags(group bool, nodeType uint8) uint16 {
	flags := uint16(nodeType&0x3) << 13
	if group {
		flags |= NB_FLAGS_GROUP
	}
	return flags
}

// AddrEntry is a single ADDR_ENTRY of an NB resource record: the NB_FLAGS
// word followed by an IPv4 address.
type AddrEntry struct {
	Flags   uint16
	Address [4]byte
}

// IsGroup returns true if the entry describes a group name.
func (ae AddrEntry) IsGroup() bool {
	return ae.Flags&NB_FLAGS_GROUP > 0
}

// NodeType returns the owner node type of the entry.
func (ae AddrEntry) NodeType() uint8 {
	return uint8(ae.Flags >> 13 & 0x3)
}

// EncodeAddrEntry returns the 6-byte wire form of an ADDR_ENTRY.
func EncodeAddrEntry(ae AddrEntry) []byte {
	buf := make([]byte, 6)
	binary.BigEndian.PutUint16(buf[:2], ae.Flags)
	copy(buf[2:], ae.Address[:])
	return buf
}

// ResourceRecord represents a single resource record of a response or of
// the additional section of a registration request. Data holds the raw
// RDATA bytes.
type ResourceRecord struct {
	Name  Name
	Type  uint16
	Class uint16
	TTL   uint32
	Data  []byte
}

// Encode returns the wire form of the resource record. The owner name is
// spelled out in full rather than compressed with a pointer.
func (rr ResourceRecord) Encode() ([]byte, error) {
	name, err := rr.Name.Encode()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, len(name)+10+len(rr.Data))
	copy(buf, name)
	binary.BigEndian.PutUint16(buf[len(name):], rr.Type)
	binary.BigEndian.PutUint16(buf[len(name)+2:], rr.Class)
	binary.BigEndian.PutUint32(buf[len(name)+4:], rr.TTL)
	binary.BigEndian.PutUint16(buf[len(name)+8:], uint16(len(rr.Data)))
	copy(buf[len(name)+10:], rr.Data)
	return buf, nil
}

// AddrEntries interprets the RDATA of an NB record as a sequence of
// ADDR_ENTRY structures.
func (rr ResourceRecord) AddrEntries() ([]AddrEntry, error) {
	if len(rr.Data)%6 != 0 {
		return nil, fmt.Errorf("%w: NB record data of %d bytes", ErrWrongFormat, len(rr.Data))
	}
	entries := make([]AddrEntry, 0, len(rr.Data)/6)
	for off := 0; off < len(rr.Data); off += 6 {
		var ae AddrEntry
		ae.Flags = binary.BigEndian.Uint16(rr.Data[off : off+2])
		copy(ae.Address[:], rr.Data[off+2:off+6])
		entries = append(entries, ae)
	}
	return entries, nil
}

// parseResourceRecord parses a resource record at the given offset of the
// message and returns it together with the number of bytes it occupies.
// A record name may be a pointer back into the message, which is how
// Windows stacks reference the question name.
func parseResourceRecord(msg []byte, offset int) (ResourceRecord, int, error) {
	var rr ResourceRecord
	var size int

	data := msg[offset:]
	if len(data) >= 2 && data[0]&0xc0 == 0xc0 {
		ptr := int(binary.BigEndian.Uint16(data[:2]) & 0x3fff)
		if ptr >= offset {
			return ResourceRecord{}, 0, fmt.Errorf("%w: forward name pointer", ErrWrongFormat)
		}
		name, _, err := parseName(msg[ptr:])
		if err != nil {
			return ResourceRecord{}, 0, err
		}
		rr.Name = name
		size = 2
	} else {
		name, n, err := parseName(data)
		if err != nil {
			return ResourceRecord{}, 0, err
		}
		rr.Name = name
		size = n
	}

	if len(data) < size+10 {
		return ResourceRecord{}, 0, fmt.Errorf("%w: resource record truncated", ErrMessageTooShort)
	}
	rr.Type = binary.BigEndian.Uint16(data[size : size+2])
	rr.Class = binary.BigEndian.Uint16(data[size+2 : size+4])
	rr.TTL = binary.BigEndian.Uint32(data[size+4 : size+8])
	length := int(binary.BigEndian.Uint16(data[size+8 : size+10]))
	size += 10

	if len(data) < size+length {
		return ResourceRecord{}, 0, fmt.Errorf("%w: record data of %d bytes overruns the buffer", ErrMessageTooShort, length)
	}
	rr.Data = append([]byte(nil), data[size:size+length]...)
	return rr, size + length, nil
}

// NameQueryResponse represents a POSITIVE or NEGATIVE NAME QUERY RESPONSE
// (RFC 1002, 4.2.13 and 4.2.14). A zero RCode with at least one address
// entry makes the response positive; a non-zero RCode makes it negative
// and replaces the NB record with a NULL one.
type NameQueryResponse struct {
	TransactionID uint16
	Name          Name
	TTL           uint32
	Addresses     []AddrEntry
	RCode         uint8
}

// Encode returns the wire form of the response.
func (resp NameQueryResponse) Encode() ([]byte, error) {
	rr := ResourceRecord{
		Name:  resp.Name,
		Type:  QUESTION_TYPE_NB,
		Class: QUESTION_CLASS_IN,
		TTL:   resp.TTL,
	}
	if resp.RCode == RCODE_POS_RSP {
		for _, ae := range resp.Addresses {
			rr.Data = append(rr.Data, EncodeAddrEntry(ae)...)
		}
	} else {
		rr.Type = RR_TYPE_NULL
	}
	record, err := rr.Encode()
	if err != nil {
		return nil, err
	}
	header := BuildHeader(resp.TransactionID, true, OP_QUERY, NM_FLAGS_AA|NM_FLAGS_RD|NM_FLAGS_RA, resp.RCode, 0, 1, 0, 0)
	return append(header, record...), nil
}

// NameRegistrationResponse represents a POSITIVE or NEGATIVE NAME
// REGISTRATION RESPONSE (RFC 1002, 4.2.5 and 4.2.6). The NB record echoes
// the registered name and address back to the requestor.
type NameRegistrationResponse struct {
	TransactionID uint16
	Name          Name
	Address       [4]byte
	Group         bool
	NodeType      uint8
	TTL           uint32
	RCode         uint8
}

// Encode returns the wire form of the response.
func (resp NameRegistrationResponse) Encode() ([]byte, error) {
	rr := ResourceRecord{
		Name:  resp.Name,
		Type:  QUESTION_TYPE_NB,
		Class: QUESTION_CLASS_IN,
		TTL:   resp.TTL,
		Data:  EncodeAddrEntry(AddrEntry{Flags: NBFlags(resp.Group, resp.NodeType), Address: resp.Address}),
	}
	record, err := rr.Encode()
	if err != nil {
		return nil, err
	}
	header := BuildHeader(resp.TransactionID, true, OP_REGISTER, NM_FLAGS_AA|NM_FLAGS_RD|NM_FLAGS_RA, resp.RCode, 0, 1, 0, 0)
	return append(header, record...), nil
}

// NodeName is a single NODE_NAME entry of a node status response.
type NodeName struct {
	Value   string
	Purpose byte
	Flags   uint16
}

// NodeStatusResponse represents a NODE STATUS RESPONSE (RFC 1002, 4.2.18):
// the list of names the node owns plus a statistics block, of which only
// the unit id (the MAC address) is commonly meaningful.
type NodeStatusResponse struct {
	TransactionID uint16
	Name          Name
	Names         []NodeName
	UnitID        [6]byte
}

// Encode returns the wire form of the response.
func (resp NodeStatusResponse) Encode() ([]byte, error) {
	data := make([]byte, 1, 1+len(resp.Names)*(NameFullLen+2)+nodeStatisticsSize)
	data[0] = byte(len(resp.Names))
	for _, nn := range resp.Names {
		if len(nn.Value) > NameValueLen {
			return nil, fmt.Errorf("%w: %q", ErrNameTooLong, nn.Value)
		}
		padded := make([]byte, NameFullLen)
		copy(padded, strings.ToUpper(nn.Value))
		for i := len(nn.Value); i < NameValueLen; i++ {
			padded[i] = padByte
		}
		padded[NameValueLen] = nn.Purpose
		data = append(data, padded...)
		data = binary.BigEndian.AppendUint16(data, nn.Flags)
	}
	stats := make([]byte, nodeStatisticsSize)
	copy(stats, resp.UnitID[:])
	data = append(data, stats...)

	rr := ResourceRecord{
		Name:  resp.Name,
		Type:  QUESTION_TYPE_NBSTAT,
		Class: QUESTION_CLASS_IN,
		Data:  data,
	}
	record, err := rr.Encode()
	if err != nil {
		return nil, err
	}
	header := BuildHeader(resp.TransactionID, true, OP_QUERY, NM_FLAGS_AA, RCODE_POS_RSP, 0, 1, 0, 0)
	return append(header, record...), nil
}

// NodeNames interprets the RDATA of an NBSTAT record as a node name list
// followed by the statistics block, returning the names and the unit id.
func (rr ResourceRecord) NodeNames() ([]NodeName, [6]byte, error) {
	var unitID [6]byte
	if len(rr.Data) < 1 {
		return nil, unitID, fmt.Errorf("%w: empty NBSTAT record", ErrWrongFormat)
	}
	count := int(rr.Data[0])
	if len(rr.Data) < 1+count*(NameFullLen+2)+nodeStatisticsSize {
		return nil, unitID, fmt.Errorf("%w: NBSTAT record truncated", ErrWrongFormat)
	}

	names := make([]NodeName, 0, count)
	offset := 1
	for i := 0; i < count; i++ {
		entry := rr.Data[offset : offset+NameFullLen+2]
		names = append(names, NodeName{
			Value:   strings.TrimRight(string(entry[:NameValueLen]), string(padByte)),
			Purpose: entry[NameValueLen],
			Flags:   binary.BigEndian.Uint16(entry[NameFullLen:]),
		})
		offset += NameFullLen + 2
	}
	copy(unitID[:], rr.Data[offset:offset+6])
	return names, unitID, nil
}
