package nbt

import (
	"bytes"
	"testing"
)

func TestBuildHeader(t *testing.T) {
	header := BuildHeader(0x1234, false, OP_QUERY, NM_FLAGS_RD, RCODE_POS_RSP, 1, 0, 0, 0)
	expected := []byte{0x12, 0x34, 0x01, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	if !bytes.Equal(header, expected) {
		t.Errorf("header mismatch:\ngot  %x\nwant %x", header, expected)
	}
}

func TestHeaderFieldExtraction(t *testing.T) {
	header := Header(BuildHeader(0xabcd, true, OP_RELEASE, NM_FLAGS_AA|NM_FLAGS_RD|NM_FLAGS_B, RCODE_ACT_ERR, 1, 2, 3, 4))

	if header.TransactionID() != 0xabcd {
		t.Errorf("wrong transaction id: %04x", header.TransactionID())
	}
	if !header.IsResponse() {
		t.Error("response bit not set")
	}
	if header.OpCode() != OP_RELEASE {
		t.Errorf("wrong opcode: %x", header.OpCode())
	}
	if header.NMFlags() != NM_FLAGS_AA|NM_FLAGS_RD|NM_FLAGS_B {
		t.Errorf("wrong nm-flags: %02x", header.NMFlags())
	}
	if !header.IsNMFlagSet(NM_FLAGS_AA) || header.IsNMFlagSet(NM_FLAGS_TC) {
		t.Error("wrong individual nm-flag bits")
	}
	if header.RCode() != RCODE_ACT_ERR {
		t.Errorf("wrong rcode: %x", header.RCode())
	}
	if header.QDCount() != 1 || header.ANCount() != 2 || header.NSCount() != 3 || header.ARCount() != 4 {
		t.Error("wrong section counts")
	}
}

func TestHeaderFieldMasking(t *testing.T) {
	// Out-of-range values are masked to their field widths, never rejected.
	header := NewHeader()
	header.SetOpCode(0xff)
	header.SetNMFlags(0xff)
	header.SetRCode(0xff)

	if header.OpCode() != 0xf {
		t.Errorf("opcode not masked: %x", header.OpCode())
	}
	if header.NMFlags() != 0x7f {
		t.Errorf("nm-flags not masked: %x", header.NMFlags())
	}
	if header.RCode() != 0xf {
		t.Errorf("rcode not masked: %x", header.RCode())
	}
	if header.IsResponse() {
		t.Error("masked fields leaked into the response bit")
	}
}

func TestHeaderFieldIsolation(t *testing.T) {
	// Setting one field of the packed word must not disturb the others.
	header := NewHeader()
	header.SetResponse(true)
	header.SetOpCode(OP_REGISTER)
	header.SetNMFlags(NM_FLAGS_RD)
	header.SetRCode(RCODE_CFT_ERR)

	header.SetNMFlags(NM_FLAGS_B)
	if !header.IsResponse() || header.OpCode() != OP_REGISTER || header.RCode() != RCODE_CFT_ERR {
		t.Error("SetNMFlags disturbed neighboring fields")
	}

	header.SetOpCode(OP_QUERY)
	if header.NMFlags() != NM_FLAGS_B || header.RCode() != RCODE_CFT_ERR {
		t.Error("SetOpCode disturbed neighboring fields")
	}

	header.SetResponse(false)
	if header.Flags() != uint16(NM_FLAGS_B)<<4|RCODE_CFT_ERR {
		t.Errorf("unexpected flags word: %04x", header.Flags())
	}
}

func TestHeaderValidate(t *testing.T) {
	if err := Header(make([]byte, HeaderSize-1)).Validate(); err == nil {
		t.Error("short header accepted")
	}
	if err := NewHeader().Validate(); err != nil {
		t.Errorf("valid header rejected: %v", err)
	}
}
