package nbt

import (
	"encoding/binary"
	"errors"
	"testing"
)

func TestNameQueryResponseRoundTrip(t *testing.T) {
	name, err := NewName("FILESRV", "EXAMPLE.COM", PURPOSE_FILE_SERVER)
	if err != nil {
		t.Fatal(err)
	}

	data, err := NameQueryResponse{
		TransactionID: 0xbeef,
		Name:          name,
		TTL:           3600,
		Addresses: []AddrEntry{
			{Flags: NBFlags(false, NODE_B), Address: [4]byte{192, 168, 1, 5}},
			{Flags: NBFlags(false, NODE_M), Address: [4]byte{10, 0, 0, 5}},
		},
	}.Encode()
	if err != nil {
		t.Fatal(err)
	}

	msg, err := DecodeMessage(data)
	if err != nil {
		t.Fatal(err)
	}

	header := msg.Header
	if !header.IsResponse() || header.OpCode() != OP_QUERY || header.RCode() != RCODE_POS_RSP {
		t.Errorf("wrong header: flags %04x", header.Flags())
	}
	if !header.IsNMFlagSet(NM_FLAGS_AA) {
		t.Error("authoritative answer bit not set")
	}
	if header.ANCount() != 1 || len(msg.Answers) != 1 {
		t.Fatal("expected exactly one answer")
	}

	rr := msg.Answers[0]
	if rr.Name != name || rr.Type != QUESTION_TYPE_NB || rr.TTL != 3600 {
		t.Errorf("wrong answer record: %+v", rr)
	}
	entries, err := rr.AddrEntries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 address entries, got %d", len(entries))
	}
	if entries[0].Address != [4]byte{192, 168, 1, 5} || entries[1].NodeType() != NODE_M {
		t.Errorf("wrong address entries: %+v", entries)
	}
}

func TestNegativeNameQueryResponse(t *testing.T) {
	name, err := NewName("NOSUCH", "", PURPOSE_WORKSTATION)
	if err != nil {
		t.Fatal(err)
	}

	data, err := NameQueryResponse{
		TransactionID: 3,
		Name:          name,
		RCode:         RCODE_NAM_ERR,
	}.Encode()
	if err != nil {
		t.Fatal(err)
	}

	msg, err := DecodeMessage(data)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Header.RCode() != RCODE_NAM_ERR {
		t.Errorf("wrong rcode: %x", msg.Header.RCode())
	}
	if msg.Answers[0].Type != RR_TYPE_NULL {
		t.Errorf("negative response must carry a NULL record, got type %04x", msg.Answers[0].Type)
	}
	if len(msg.Answers[0].Data) != 0 {
		t.Error("negative response must not carry record data")
	}
}

func TestNameRegistrationResponse(t *testing.T) {
	name, err := NewName("HOST", "", PURPOSE_WORKSTATION)
	if err != nil {
		t.Fatal(err)
	}

	data, err := NameRegistrationResponse{
		TransactionID: 0x0102,
		Name:          name,
		Address:       [4]byte{172, 16, 0, 9},
		NodeType:      NODE_P,
		TTL:           86400,
		RCode:         RCODE_ACT_ERR,
	}.Encode()
	if err != nil {
		t.Fatal(err)
	}

	msg, err := DecodeMessage(data)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Header.OpCode() != OP_REGISTER || !msg.Header.IsResponse() {
		t.Errorf("wrong header: flags %04x", msg.Header.Flags())
	}
	if msg.Header.RCode() != RCODE_ACT_ERR {
		t.Errorf("wrong rcode: %x", msg.Header.RCode())
	}
	entries, err := msg.Answers[0].AddrEntries()
	if err != nil {
		t.Fatal(err)
	}
	if entries[0].Address != [4]byte{172, 16, 0, 9} || entries[0].NodeType() != NODE_P {
		t.Errorf("wrong echoed owner: %+v", entries[0])
	}
}

func TestNodeStatusResponseRoundTrip(t *testing.T) {
	name, err := NewName(Wildcard, "", PURPOSE_WORKSTATION)
	if err != nil {
		t.Fatal(err)
	}

	data, err := NodeStatusResponse{
		TransactionID: 0x55aa,
		Name:          name,
		Names: []NodeName{
			{Value: "FILESRV", Purpose: PURPOSE_FILE_SERVER, Flags: NAME_FLAGS_ACTIVE},
			{Value: "FILESRV", Purpose: PURPOSE_WORKSTATION, Flags: NAME_FLAGS_ACTIVE},
			{Value: "WORKGROUP", Purpose: PURPOSE_WORKSTATION, Flags: NAME_FLAGS_GROUP | NAME_FLAGS_ACTIVE},
		},
		UnitID: [6]byte{0x00, 0x1b, 0x21, 0x3c, 0x4d, 0x5e},
	}.Encode()
	if err != nil {
		t.Fatal(err)
	}

	msg, err := DecodeMessage(data)
	if err != nil {
		t.Fatal(err)
	}
	rr := msg.Answers[0]
	if rr.Type != QUESTION_TYPE_NBSTAT {
		t.Errorf("wrong record type: %04x", rr.Type)
	}

	names, unitID, err := rr.NodeNames()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 3 {
		t.Fatalf("expected 3 node names, got %d", len(names))
	}
	if names[0].Value != "FILESRV" || names[0].Purpose != PURPOSE_FILE_SERVER {
		t.Errorf("wrong first node name: %+v", names[0])
	}
	if names[2].Flags&NAME_FLAGS_GROUP == 0 {
		t.Error("group flag lost")
	}
	if unitID != [6]byte{0x00, 0x1b, 0x21, 0x3c, 0x4d, 0x5e} {
		t.Errorf("wrong unit id: %x", unitID)
	}
}

func TestNodeStatusResponseNameTooLong(t *testing.T) {
	name, err := NewName(Wildcard, "", PURPOSE_WORKSTATION)
	if err != nil {
		t.Fatal(err)
	}

	_, err = NodeStatusResponse{
		TransactionID: 1,
		Name:          name,
		Names: []NodeName{
			{Value: "THISNAMEISTOOLONGTOFIT", Purpose: PURPOSE_WORKSTATION},
		},
	}.Encode()
	if !errors.Is(err, ErrNameTooLong) {
		t.Errorf("expected ErrNameTooLong for an over-long node name, got %v", err)
	}
}

func TestResourceRecordNamePointer(t *testing.T) {
	// Windows stacks compress the answer name with a pointer to the
	// question at offset 12; the decoder must follow it.
	name, err := NewName("HOST", "", PURPOSE_WORKSTATION)
	if err != nil {
		t.Fatal(err)
	}
	question, err := Question{name, QUESTION_TYPE_NB, QUESTION_CLASS_IN}.Encode()
	if err != nil {
		t.Fatal(err)
	}

	data := BuildHeader(9, true, OP_QUERY, NM_FLAGS_AA, RCODE_POS_RSP, 1, 1, 0, 0)
	data = append(data, question...)
	data = append(data, 0xc0, 0x0c) // pointer to the question name
	record := make([]byte, 10+6)
	binary.BigEndian.PutUint16(record[0:], QUESTION_TYPE_NB)
	binary.BigEndian.PutUint16(record[2:], QUESTION_CLASS_IN)
	binary.BigEndian.PutUint32(record[4:], 60)
	binary.BigEndian.PutUint16(record[8:], 6)
	copy(record[12:], []byte{10, 1, 2, 3})
	data = append(data, record...)

	msg, err := DecodeMessage(data)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Answers[0].Name != name {
		t.Errorf("pointer name not resolved: %v", msg.Answers[0].Name)
	}
	entries, err := msg.Answers[0].AddrEntries()
	if err != nil {
		t.Fatal(err)
	}
	if entries[0].Address != [4]byte{10, 1, 2, 3} {
		t.Errorf("wrong address: %v", entries[0].Address)
	}
}
