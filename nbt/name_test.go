package nbt

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestNameRoundTrip(t *testing.T) {
	tests := []struct {
		value   string
		scope   string
		purpose byte
	}{
		{"WORKSTATION", "", PURPOSE_WORKSTATION},
		{"filesrv", "", PURPOSE_FILE_SERVER},
		{"user", "example.com", PURPOSE_MESSENGER},
		{"DOMAIN", "corp.example.com", PURPOSE_DOMAIN_MASTER},
		{"A", "", 0x42},
		{"FIFTEENBYTENAME", "", PURPOSE_WORKSTATION},
		{Wildcard, "", PURPOSE_WORKSTATION},
		{Wildcard, "scope", PURPOSE_WORKSTATION},
	}

	for _, tt := range tests {
		name, err := NewName(tt.value, tt.scope, tt.purpose)
		if err != nil {
			t.Fatalf("NewName(%q, %q): %v", tt.value, tt.scope, err)
		}

		enc, err := name.Encode()
		if err != nil {
			t.Fatalf("Encode(%v): %v", name, err)
		}

		dec, err := DecodeName(enc)
		if err != nil {
			t.Fatalf("DecodeName(%v): %v", name, err)
		}

		if dec != name {
			t.Errorf("round trip of %q<%02x>.%q: got %q<%02x>.%q", name.Value, name.Purpose, name.Scope, dec.Value, dec.Purpose, dec.Scope)
		}
		if dec.Value != strings.ToUpper(tt.value) || dec.Scope != strings.ToUpper(tt.scope) {
			t.Errorf("decoded name %v not upper-cased", dec)
		}
	}
}

func TestNameTooLong(t *testing.T) {
	if _, err := NewName(strings.Repeat("A", 16), "", 0); !errors.Is(err, ErrNameTooLong) {
		t.Errorf("expected ErrNameTooLong for a 16-byte name, got %v", err)
	}
	if _, err := NewName(strings.Repeat("A", 15), "", 0); err != nil {
		t.Errorf("a 15-byte name must be accepted, got %v", err)
	}

	// Encode guards the length too, for names built without NewName.
	if _, err := (Name{Value: strings.Repeat("A", 16)}).Encode(); !errors.Is(err, ErrNameTooLong) {
		t.Errorf("expected ErrNameTooLong from Encode, got %v", err)
	}
}

func TestScopeLabelTooLong(t *testing.T) {
	long := strings.Repeat("A", 64)
	if _, err := NewName("HOST", long+".COM", 0); !errors.Is(err, ErrScopeLabelTooLong) {
		t.Errorf("expected ErrScopeLabelTooLong, got %v", err)
	}
	if _, err := (Name{Value: "HOST", Scope: long}).Encode(); !errors.Is(err, ErrScopeLabelTooLong) {
		t.Errorf("expected ErrScopeLabelTooLong from Encode, got %v", err)
	}
	if _, err := NewName("HOST", strings.Repeat("A", 63)+".COM", 0); err != nil {
		t.Errorf("a 63-byte label must be accepted, got %v", err)
	}
}

func TestWildcardVector(t *testing.T) {
	name, err := NewName(Wildcard, "", PURPOSE_WORKSTATION)
	if err != nil {
		t.Fatal(err)
	}

	enc, err := name.Encode()
	if err != nil {
		t.Fatal(err)
	}

	expected := append([]byte{NameEncodedLen}, "CKAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"...)
	expected = append(expected, 0)
	if !bytes.Equal(enc, expected) {
		t.Errorf("wildcard encoding mismatch:\ngot  %x\nwant %x", enc, expected)
	}
}

func TestDecodeNameMalformed(t *testing.T) {
	valid, err := Name{Value: "HOST", Scope: "EXAMPLE.COM"}.Encode()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"empty buffer", nil},
		{"missing terminator", valid[:len(valid)-1]},
		{"non-zero final byte", append(append([]byte(nil), valid[:len(valid)-1]...), 7)},
		{"wrong length prefix", append([]byte{31}, valid[1:]...)},
		{"letter out of range", append([]byte{NameEncodedLen, 'Q'}, valid[2:]...)},
		{"label overrun", append(append([]byte(nil), valid[:len(valid)-1]...), 40, 'X')},
		{"trailing bytes", append(append([]byte(nil), valid...), 0)},
	}

	for _, tt := range tests {
		if _, err := DecodeName(tt.data); !errors.Is(err, ErrNameMalformed) {
			t.Errorf("%s: expected ErrNameMalformed, got %v", tt.name, err)
		}
	}
}

func TestNameString(t *testing.T) {
	name, err := NewName("filesrv", "example.com", PURPOSE_FILE_SERVER)
	if err != nil {
		t.Fatal(err)
	}
	if s := name.String(); s != "FILESRV<20>.EXAMPLE.COM" {
		t.Errorf("unexpected name formatting: %s", s)
	}
}
