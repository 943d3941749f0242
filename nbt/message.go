package nbt

import (
	"fmt"
)

// Message is a decoded NBNS datagram: the header plus whatever sections
// the header announced. The server loop and the resolver both consume it;
// outgoing messages are built with the concrete request and response types
// instead.
type Message struct {
	Header     Header
	Questions  []Question
	Answers    []ResourceRecord
	Authority  []ResourceRecord
	Additional []ResourceRecord
}

// DecodeMessage parses a received NBNS datagram.
func DecodeMessage(data []byte) (*Message, error) {
	header := Header(data)
	if err := header.Validate(); err != nil {
		return nil, err
	}

	msg := &Message{Header: header[:HeaderSize]}
	offset := HeaderSize

	for i := uint16(0); i < header.QDCount(); i++ {
		question, size, err := parseQuestion(data[offset:])
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i, err)
		}
		msg.Questions = append(msg.Questions, question)
		offset += size
	}

	sections := []struct {
		count   uint16
		records *[]ResourceRecord
	}{
		{header.ANCount(), &msg.Answers},
		{header.NSCount(), &msg.Authority},
		{header.ARCount(), &msg.Additional},
	}
	for _, section := range sections {
		for i := uint16(0); i < section.count; i++ {
			rr, size, err := parseResourceRecord(data, offset)
			if err != nil {
				return nil, fmt.Errorf("resource record %d: %w", i, err)
			}
			*section.records = append(*section.records, rr)
			offset += size
		}
	}

	if offset != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrWrongFormat, len(data)-offset)
	}
	return msg, nil
}
