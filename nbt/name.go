package nbt

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// NetBIOS name purposes (the 16th byte of a padded name).
	PURPOSE_WORKSTATION   = 0x00
	PURPOSE_MESSENGER     = 0x03
	PURPOSE_DOMAIN_MASTER = 0x1b
	PURPOSE_FILE_SERVER   = 0x20
)

const (
	NameFullLen    = 16 // 15 bytes of text plus the purpose byte
	NameValueLen   = NameFullLen - 1
	NameEncodedLen = NameFullLen * 2 // two ASCII bytes per name byte
	MaxLabelLen    = 63              // only 6 bits of a label length carry the length

	// Wildcard is the reserved name that matches any name in a node status query.
	Wildcard = "*"

	ordA    = 'A'
	padByte = ' '
)

var (
	ErrNameTooLong       = errors.New("NetBIOS name longer than 15 bytes")
	ErrScopeLabelTooLong = errors.New("scope label longer than 63 bytes")
	ErrNameMalformed     = errors.New("malformed NetBIOS name")
)

// Name represents a NetBIOS name: up to 15 bytes of text, an optional
// dot-separated scope and a purpose byte identifying the service behind
// the name. Both the text and the scope are kept upper-case, which is
// what actually goes on the wire.
type Name struct {
	Value   string
	Scope   string
	Purpose byte
}

// NewName validates and normalizes a NetBIOS name. The text must fit in
// 15 bytes, and every scope label must fit in 6 bits of length.
func NewName(value, scope string, purpose byte) (Name, error) {
	if len(value) > NameValueLen {
		return Name{}, fmt.Errorf("%w: %q", ErrNameTooLong, value)
	}

	scope = strings.ToUpper(scope)
	if scope != "" {
		for _, label := range strings.Split(scope, ".") {
			if len(label) > MaxLabelLen {
				return Name{}, fmt.Errorf("%w: %q", ErrScopeLabelTooLong, label)
			}
		}
	}

	return Name{
		Value:   strings.ToUpper(value),
		Scope:   scope,
		Purpose: purpose,
	}, nil
}

// String formats the name the way it is traditionally displayed, e.g.
// "FILESRV<20>.EXAMPLE.COM".
func (n Name) String() string {
	s := fmt.Sprintf("%s<%02x>", n.Value, n.Purpose)
	if n.Scope != "" {
		s += "." + n.Scope
	}
	return s
}

// pad returns the 16-byte padded form of the name: the text left-justified
// in 15 bytes of spaces (or, for the wildcard, a '*' followed by zero
// bytes), with the purpose byte appended.
func (n Name) pad() [NameFullLen]byte {
	var padded [NameFullLen]byte
	if n.Value == Wildcard {
		padded[0] = Wildcard[0]
	} else {
		copy(padded[:NameValueLen], strings.ToUpper(n.Value))
		for i := len(n.Value); i < NameValueLen; i++ {
			padded[i] = padByte
		}
	}
	padded[NameValueLen] = n.Purpose
	return padded
}

// Encode returns the first-level encoded, scope-qualified form of the name:
// a length byte of 32, the half-octet encoding of the padded name, the
// length-prefixed scope labels and a zero byte terminating the sequence.
func (n Name) Encode() ([]byte, error) {
	if len(n.Value) > NameValueLen {
		return nil, fmt.Errorf("%w: %q", ErrNameTooLong, n.Value)
	}

	scope := strings.ToUpper(n.Scope)
	buf := make([]byte, 0, 2+NameEncodedLen+len(scope)+1)
	buf = append(buf, NameEncodedLen)

	padded := n.pad()
	for _, b := range padded {
		buf = append(buf, ordA+(b>>4)&0x0f, ordA+b&0x0f)
	}

	if scope != "" {
		for _, label := range strings.Split(scope, ".") {
			if len(label) > MaxLabelLen {
				return nil, fmt.Errorf("%w: %q", ErrScopeLabelTooLong, label)
			}
			buf = append(buf, byte(len(label)))
			buf = append(buf, label...)
		}
	}

	return append(buf, 0), nil
}

// DecodeName parses a first-level encoded name occupying the whole buffer.
// The buffer must carry exactly one name: a 32-byte encoded part followed
// by the scope labels and the root label terminator.
func DecodeName(data []byte) (Name, error) {
	name, size, err := parseName(data)
	if err != nil {
		return Name{}, err
	}
	if size != len(data) {
		return Name{}, fmt.Errorf("%w: %d trailing bytes", ErrNameMalformed, len(data)-size)
	}
	return name, nil
}

// parseName parses a first-level encoded name at the beginning of the
// buffer and returns it together with the number of bytes it occupies.
// The buffer may extend past the name, which is the case whenever the name
// is embedded in a message.
func parseName(data []byte) (Name, int, error) {
	if len(data) < 2+NameEncodedLen {
		return Name{}, 0, fmt.Errorf("%w: %d bytes is too short", ErrNameMalformed, len(data))
	}
	if data[0] != NameEncodedLen {
		return Name{}, 0, fmt.Errorf("%w: name length %d instead of %d", ErrNameMalformed, data[0], NameEncodedLen)
	}

	var full [NameFullLen]byte
	for i := 0; i < NameEncodedLen; i += 2 {
		hi, lo := data[1+i]-ordA, data[2+i]-ordA
		if hi > 0x0f || lo > 0x0f {
			return Name{}, 0, fmt.Errorf("%w: byte outside of 'A'..'P'", ErrNameMalformed)
		}
		full[i/2] = hi<<4 | lo
	}

	var value string
	if full[0] == Wildcard[0] {
		value = Wildcard
	} else {
		value = strings.TrimRight(string(full[:NameValueLen]), string(padByte))
	}
	purpose := full[NameValueLen]

	var labels []string
	offset := 1 + NameEncodedLen
	for {
		if offset >= len(data) {
			return Name{}, 0, fmt.Errorf("%w: missing root label", ErrNameMalformed)
		}
		length := int(data[offset])
		offset++
		if length == 0 {
			break
		}
		if offset+length > len(data) {
			return Name{}, 0, fmt.Errorf("%w: label length %d overruns the buffer", ErrNameMalformed, length)
		}
		labels = append(labels, string(data[offset:offset+length]))
		offset += length
	}

	return Name{
		Value:   value,
		Scope:   strings.Join(labels, "."),
		Purpose: purpose,
	}, offset, nil
}
