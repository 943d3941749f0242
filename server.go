package main

import (
	"context"
	"errors"
	"log"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mike76-dev/nbnsd/api"
	"github.com/mike76-dev/nbnsd/nbt"
	"github.com/mike76-dev/nbnsd/stores"
)

const (
	modeBroadcast = "broadcast"
	modeWINS      = "wins"

	// defaultTTL is granted to WINS registrations when the config does
	// not say otherwise.
	defaultTTL = 300000 // seconds, the customary NBNS refresh interval
)

type serverStats struct {
	start         time.Time
	queriesRcvd   uint64
	queriesAnswd  uint64
	registrations uint64
	releases      uint64
	dropped       uint64
	bytesSent     uint64
	bytesRcvd     uint64
}

type server struct {
	enabled       bool
	mode          string
	address       [4]byte
	ttl           uint32
	stats         serverStats
	serverGuid    [16]byte
	datagramCount map[string]int

	conn *net.UDPConn
	ns   *stores.NamesStore
	bs   *stores.BansStore
	db   *stores.Database // nil outside WINS mode
	mu   sync.Mutex
}

func newServer(conn *net.UDPConn, mode string, address [4]byte, ttl uint32, ns *stores.NamesStore, bs *stores.BansStore, db *stores.Database) *server {
	s := &server{
		enabled:       true,
		mode:          mode,
		address:       address,
		ttl:           ttl,
		serverGuid:    uuid.New(),
		datagramCount: make(map[string]int),
		conn:          conn,
		ns:            ns,
		bs:            bs,
		db:            db,
	}
	if s.ttl == 0 {
		s.ttl = defaultTTL
	}
	s.stats.start = time.Now()
	return s
}

// unitID is the identifier reported in node status responses. There is no
// physical adapter behind the daemon, so the server GUID stands in for
// the MAC address.
func (s *server) unitID() [6]byte {
	var id [6]byte
	copy(id[:], s.serverGuid[:6])
	return id
}

// blockHost puts the remote host on the ban list.
func (s *server) blockHost(host, reason string) {
	log.Printf("Blocking host %s: %s\n", host, reason)
	s.bs.Mu.Lock()
	defer s.bs.Mu.Unlock()
	s.bs.Bans[host] = struct{}{}
	if err := s.bs.Save(); err != nil {
		log.Println("Couldn't save ban list:", err)
	}
}

// handleDatagram decodes one received datagram and dispatches it by
// opcode. Responses and datagrams that fail to parse are dropped.
func (s *server) handleDatagram(data []byte, raddr *net.UDPAddr) {
	msg, err := nbt.DecodeMessage(data)
	if err != nil {
		s.mu.Lock()
		s.stats.dropped++
		s.mu.Unlock()
		return
	}
	if msg.Header.IsResponse() {
		return
	}

	switch msg.Header.OpCode() {
	case nbt.OP_QUERY:
		s.handleQuery(msg, raddr)
	case nbt.OP_REGISTER, nbt.OP_REFRESH, nbt.OP_ALT_REFRESH, nbt.OP_MULTIHOMED:
		s.handleRegistration(msg, raddr)
	case nbt.OP_RELEASE:
		s.handleRelease(msg, raddr)
	default:
		s.mu.Lock()
		s.stats.dropped++
		s.mu.Unlock()
	}
}

func (s *server) handleQuery(msg *nbt.Message, raddr *net.UDPAddr) {
	if len(msg.Questions) != 1 {
		return
	}
	q := msg.Questions[0]

	s.mu.Lock()
	s.stats.queriesRcvd++
	s.mu.Unlock()

	switch q.Type {
	case nbt.QUESTION_TYPE_NBSTAT:
		s.handleNodeStatus(msg, q, raddr)
	case nbt.QUESTION_TYPE_NB:
		s.handleNameQuery(msg, q, raddr)
	}
}

func (s *server) handleNameQuery(msg *nbt.Message, q nbt.Question, raddr *net.UDPAddr) {
	if _, owned := s.ns.Lookup(q.Name); owned {
		s.respond(raddr, nbt.NameQueryResponse{
			TransactionID: msg.Header.TransactionID(),
			Name:          q.Name,
			TTL:           s.ttl,
			Addresses: []nbt.AddrEntry{
				{Flags: nbt.NBFlags(false, nbt.NODE_B), Address: s.address},
			},
		})
		return
	}

	if s.mode == modeWINS && s.db != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		regs, err := s.db.FindRegistrations(ctx, q.Name.Value, q.Name.Scope, q.Name.Purpose)
		if err != nil {
			log.Println("Error looking up registrations:", err)
			return
		}
		if len(regs) > 0 {
			var entries []nbt.AddrEntry
			for _, reg := range regs {
				entries = append(entries, nbt.AddrEntry{
					Flags:   nbt.NBFlags(reg.Group, reg.NodeType),
					Address: reg.Address,
				})
			}
			s.respond(raddr, nbt.NameQueryResponse{
				TransactionID: msg.Header.TransactionID(),
				Name:          q.Name,
				TTL:           s.ttl,
				Addresses:     entries,
			})
			return
		}
	}

	// A broadcast query for a name this node does not own gets silence;
	// a directed query gets an explicit negative response.
	if !msg.Header.IsNMFlagSet(nbt.NM_FLAGS_B) {
		s.respond(raddr, nbt.NameQueryResponse{
			TransactionID: msg.Header.TransactionID(),
			Name:          q.Name,
			RCode:         nbt.RCODE_NAM_ERR,
		})
	}
}

func (s *server) handleNodeStatus(msg *nbt.Message, q nbt.Question, raddr *net.UDPAddr) {
	_, owned := s.ns.Lookup(q.Name)
	if !owned && q.Name.Value != nbt.Wildcard {
		return
	}

	var names []nbt.NodeName
	for _, name := range s.ns.All() {
		names = append(names, nbt.NodeName{
			Value:   name.Value,
			Purpose: name.Purpose,
			Flags:   nbt.NAME_FLAGS_ACTIVE,
		})
	}

	s.respond(raddr, nbt.NodeStatusResponse{
		TransactionID: msg.Header.TransactionID(),
		Name:          q.Name,
		Names:         names,
		UnitID:        s.unitID(),
	})
}

func (s *server) handleRegistration(msg *nbt.Message, raddr *net.UDPAddr) {
	if len(msg.Questions) != 1 || len(msg.Additional) != 1 {
		return
	}
	q := msg.Questions[0]
	entries, err := msg.Additional[0].AddrEntries()
	if err != nil || len(entries) == 0 {
		return
	}
	entry := entries[0]

	s.mu.Lock()
	s.stats.registrations++
	s.mu.Unlock()

	// Defend owned names against unique registrations by other nodes.
	if _, owned := s.ns.Lookup(q.Name); owned && !entry.IsGroup() && entry.Address != s.address {
		s.respond(raddr, nbt.NameRegistrationResponse{
			TransactionID: msg.Header.TransactionID(),
			Name:          q.Name,
			Address:       s.address,
			NodeType:      nbt.NODE_B,
			TTL:           s.ttl,
			RCode:         nbt.RCODE_ACT_ERR,
		})
		return
	}

	if s.mode != modeWINS || s.db == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ttl := msg.Additional[0].TTL
	if ttl == 0 || ttl > s.ttl {
		ttl = s.ttl
	}
	err = s.db.AddRegistration(ctx, stores.Registration{
		Value:    q.Name.Value,
		Scope:    q.Name.Scope,
		Purpose:  q.Name.Purpose,
		Group:    entry.IsGroup(),
		NodeType: entry.NodeType(),
		Address:  entry.Address,
		Expires:  time.Now().Add(time.Duration(ttl) * time.Second),
	})

	resp := nbt.NameRegistrationResponse{
		TransactionID: msg.Header.TransactionID(),
		Name:          q.Name,
		Address:       entry.Address,
		Group:         entry.IsGroup(),
		NodeType:      entry.NodeType(),
		TTL:           ttl,
	}
	if errors.Is(err, stores.ErrNameConflict) {
		resp.RCode = nbt.RCODE_ACT_ERR
	} else if err != nil {
		log.Println("Error storing registration:", err)
		resp.RCode = nbt.RCODE_SRV_ERR
	}
	s.respond(raddr, resp)
}

func (s *server) handleRelease(msg *nbt.Message, raddr *net.UDPAddr) {
	if len(msg.Questions) != 1 || len(msg.Additional) != 1 {
		return
	}
	if s.mode != modeWINS || s.db == nil {
		return
	}
	q := msg.Questions[0]
	entries, err := msg.Additional[0].AddrEntries()
	if err != nil || len(entries) == 0 {
		return
	}
	entry := entries[0]

	s.mu.Lock()
	s.stats.releases++
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	released, err := s.db.ReleaseRegistration(ctx, q.Name.Value, q.Name.Scope, q.Name.Purpose, entry.Address)
	if err != nil {
		log.Println("Error releasing registration:", err)
		return
	}

	resp := nbt.NameRegistrationResponse{
		TransactionID: msg.Header.TransactionID(),
		Name:          q.Name,
		Address:       entry.Address,
		Group:         entry.IsGroup(),
		NodeType:      entry.NodeType(),
	}
	if !released {
		resp.RCode = nbt.RCODE_NAM_ERR
	}
	s.respond(raddr, resp)
}

// respond encodes and sends a response datagram.
func (s *server) respond(raddr *net.UDPAddr, resp interface{ Encode() ([]byte, error) }) {
	buf, err := resp.Encode()
	if err != nil {
		log.Println("Error encoding response:", err)
		return
	}
	if err := writeDatagram(s.conn, buf, raddr); err != nil {
		log.Println("Error sending response:", err)
		return
	}

	s.mu.Lock()
	s.stats.queriesAnswd++
	s.stats.bytesSent += uint64(len(buf))
	s.mu.Unlock()
}

// Stats implements api.Server.
func (s *server) Stats() api.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return api.Stats{
		Start:           s.stats.start,
		QueriesReceived: s.stats.queriesRcvd,
		QueriesAnswered: s.stats.queriesAnswd,
		Registrations:   s.stats.registrations,
		Releases:        s.stats.releases,
		Dropped:         s.stats.dropped,
		BytesSent:       s.stats.bytesSent,
		BytesReceived:   s.stats.bytesRcvd,
	}
}

// OwnedNames implements api.Server.
func (s *server) OwnedNames() []nbt.Name {
	return s.ns.All()
}

// AddName implements api.Server.
func (s *server) AddName(name nbt.Name) error {
	s.ns.Add(name)
	s.ns.Mu.Lock()
	defer s.ns.Mu.Unlock()
	return s.ns.Save()
}

// Registrations implements api.Server.
func (s *server) Registrations(ctx context.Context) ([]stores.Registration, error) {
	if s.db == nil {
		return nil, nil
	}
	return s.db.Registrations(ctx)
}

// BanHost implements api.Server.
func (s *server) BanHost(host, reason string) error {
	s.blockHost(host, reason)
	return nil
}

// UnbanHost implements api.Server.
func (s *server) UnbanHost(host string) error {
	s.bs.Mu.Lock()
	defer s.bs.Mu.Unlock()
	delete(s.bs.Bans, host)
	return s.bs.Save()
}
