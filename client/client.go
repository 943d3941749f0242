// Package client implements the resolution side of the NetBIOS Name
// Service: broadcast and unicast name queries and node status queries,
// with the retry timers of RFC 1002, section 4.2.
package client

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"time"

	"github.com/mike76-dev/nbnsd/nbt"
)

const (
	// RFC 1002 demand timers.
	broadcastRetries = 3
	broadcastTimeout = 250 * time.Millisecond
	unicastRetries   = 3
	unicastTimeout   = 1500 * time.Millisecond
)

var (
	// ErrNotFound is returned when no positive response arrives within
	// the retry budget.
	ErrNotFound = errors.New("name not found")

	// ErrNegativeResponse is returned when the server explicitly refuses
	// the name.
	ErrNegativeResponse = errors.New("negative name query response")
)

// Resolver issues NBNS queries. The zero value broadcasts to the local
// network; setting ServerAddr switches to unicast queries against a WINS
// server.
type Resolver struct {
	// BroadcastAddr is the destination of broadcast queries.
	BroadcastAddr string

	// ServerAddr, if set, is the WINS server to query instead of
	// broadcasting.
	ServerAddr string
}

// New returns a Resolver that broadcasts to the limited broadcast address
// on the NBNS port.
func New() *Resolver {
	return &Resolver{
		BroadcastAddr: "255.255.255.255:137",
	}
}

// Resolve sends a name query and returns the addresses the name resolved
// to. Broadcast queries are retried 3 times 250ms apart, unicast queries
// 3 times 1.5s apart, per RFC 1002.
func (r *Resolver) Resolve(ctx context.Context, name nbt.Name) ([]net.IP, error) {
	transactionID := uint16(rand.Uint32())
	query, err := nbt.NameQueryRequest{
		TransactionID: transactionID,
		Name:          name,
		Broadcast:     r.ServerAddr == "",
	}.Encode()
	if err != nil {
		return nil, err
	}

	msg, err := r.exchange(ctx, query, transactionID)
	if err != nil {
		return nil, err
	}
	if rcode := msg.Header.RCode(); rcode != nbt.RCODE_POS_RSP {
		return nil, fmt.Errorf("%w: rcode %#x", ErrNegativeResponse, rcode)
	}
	if len(msg.Answers) == 0 {
		return nil, fmt.Errorf("%w: no answer records", nbt.ErrWrongFormat)
	}

	entries, err := msg.Answers[0].AddrEntries()
	if err != nil {
		return nil, err
	}
	ips := make([]net.IP, 0, len(entries))
	for _, ae := range entries {
		ips = append(ips, net.IPv4(ae.Address[0], ae.Address[1], ae.Address[2], ae.Address[3]))
	}
	return ips, nil
}

// NodeStatus asks the node at the given address for the list of names it
// owns. The queried name is usually the wildcard.
func (r *Resolver) NodeStatus(ctx context.Context, addr string, name nbt.Name) ([]nbt.NodeName, error) {
	transactionID := uint16(rand.Uint32())
	query, err := nbt.NodeStatusRequest{
		TransactionID: transactionID,
		Name:          name,
	}.Encode()
	if err != nil {
		return nil, err
	}

	msg, err := r.exchangeWith(ctx, addr, false, query, transactionID)
	if err != nil {
		return nil, err
	}
	if len(msg.Answers) == 0 || msg.Answers[0].Type != nbt.QUESTION_TYPE_NBSTAT {
		return nil, fmt.Errorf("%w: not a node status response", nbt.ErrWrongFormat)
	}
	names, _, err := msg.Answers[0].NodeNames()
	return names, err
}

// exchange picks the destination and mode from the resolver configuration.
func (r *Resolver) exchange(ctx context.Context, query []byte, transactionID uint16) (*nbt.Message, error) {
	if r.ServerAddr != "" {
		return r.exchangeWith(ctx, r.ServerAddr, false, query, transactionID)
	}
	addr := r.BroadcastAddr
	if addr == "" {
		addr = "255.255.255.255:137"
	}
	return r.exchangeWith(ctx, addr, true, query, transactionID)
}

// exchangeWith sends the query and waits for a response with a matching
// transaction id, retrying per the RFC 1002 demand timers. Datagrams with
// a foreign transaction id or ones that fail to parse are dropped.
func (r *Resolver) exchangeWith(ctx context.Context, addr string, broadcast bool, query []byte, transactionID uint16) (*nbt.Message, error) {
	raddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("error resolving destination: %w", err)
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return nil, fmt.Errorf("error opening socket: %w", err)
	}
	defer conn.Close()

	retries, timeout := unicastRetries, unicastTimeout
	if broadcast {
		retries, timeout = broadcastRetries, broadcastTimeout
	}

	buf := make([]byte, nbt.MaxDatagramSize)
	for i := 0; i < retries; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if _, err := conn.WriteToUDP(query, raddr); err != nil {
			return nil, fmt.Errorf("error sending query: %w", err)
		}

		tryDeadline := time.Now().Add(timeout)
		if deadline, ok := ctx.Deadline(); ok && deadline.Before(tryDeadline) {
			tryDeadline = deadline
		}
		conn.SetReadDeadline(tryDeadline)

		for {
			n, _, err := conn.ReadFromUDP(buf)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					break
				}
				return nil, fmt.Errorf("error reading response: %w", err)
			}

			msg, err := nbt.DecodeMessage(buf[:n])
			if err != nil {
				continue
			}
			if !msg.Header.IsResponse() || msg.Header.TransactionID() != transactionID {
				continue
			}
			return msg, nil
		}
	}

	return nil, ErrNotFound
}
