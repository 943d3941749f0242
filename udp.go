package main

import (
	"errors"
	"fmt"
	"net"

	"github.com/mike76-dev/nbnsd/nbt"
)

// readDatagram reads a single NBNS datagram from the UDP socket.
// NBNS messages never exceed 576 bytes; anything longer is truncated by
// the read and rejected by the decoder.
func readDatagram(conn *net.UDPConn) ([]byte, *net.UDPAddr, error) {
	buf := make([]byte, nbt.MaxDatagramSize)
	n, raddr, err := conn.ReadFromUDP(buf)
	if err != nil {
		return nil, nil, fmt.Errorf("error reading datagram: %w", err)
	}
	return buf[:n], raddr, nil
}

// writeDatagram writes a single NBNS datagram to the UDP socket.
func writeDatagram(conn *net.UDPConn, msg []byte, raddr *net.UDPAddr) error {
	if len(msg) > nbt.MaxDatagramSize {
		return errors.New("datagram too long")
	}

	n, err := conn.WriteToUDP(msg, raddr)
	if err != nil {
		return fmt.Errorf("error writing datagram: %w", err)
	}
	if n < len(msg) {
		return fmt.Errorf("supposed to write %d bytes but got %d", len(msg), n)
	}

	return nil
}
