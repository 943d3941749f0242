package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mike76-dev/nbnsd/api"
	"github.com/mike76-dev/nbnsd/nbt"
	"github.com/mike76-dev/nbnsd/stores"
)

const version = "1.0.2"

var storesDir = flag.String("dir", ".", "directory for storing persistent data")

func main() {
	log.Printf("Starting nbnsd v%s...\n", version)

	// Parse command-line args.
	flag.Parse()
	dir, err := filepath.Abs(*storesDir)
	if err != nil {
		panic(err)
	}

	// Read the config file.
	cfg, err := stores.ReadConfig(dir)
	if err != nil {
		panic(err)
	}

	if cfg.Mode != "broadcast" && cfg.Mode != "wins" {
		panic("invalid mode")
	}

	address := net.ParseIP(cfg.Address).To4()
	if address == nil {
		panic("invalid IPv4 address")
	}
	var addr [4]byte
	copy(addr[:], address)

	// Initialize stores.
	bs, err := stores.NewJSONBansStore(dir)
	if err != nil {
		panic(err)
	}

	ns, err := stores.NewJSONNamesStore(dir)
	if err != nil {
		panic(err)
	}
	for _, nc := range cfg.Names {
		name, err := nbt.NewName(nc.Value, nc.Scope, nc.Purpose)
		if err != nil {
			panic(err)
		}
		ns.Add(name)
	}

	// WINS mode keeps the registrations in a SQL database.
	var db *stores.Database
	if cfg.Mode == "wins" {
		if len(cfg.Database.Password) < 4 {
			panic("database password too short")
		}
		db, err = stores.NewStore(context.Background(), cfg.Database)
		if err != nil {
			panic(err)
		}
		defer db.Close()
	}

	// Start listening on the NBNS port 137.
	bindAddress := cfg.BindAddress
	if bindAddress == "" {
		bindAddress = ":137"
	}
	laddr, err := net.ResolveUDPAddr("udp4", bindAddress)
	if err != nil {
		log.Fatal(err)
	}
	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("Listening at %s ...\n", conn.LocalAddr())
	defer conn.Close()

	// Start the name server.
	server := newServer(conn, cfg.Mode, addr, cfg.TTL, ns, bs, db)
	for _, name := range ns.All() {
		log.Printf("Owning name %s\n", name)
	}

	// Start the API server.
	handler := api.NewAPI(server)
	defer handler.Close()
	if cfg.APIPort > 0 {
		go func() {
			addr := fmt.Sprintf("localhost:%d", cfg.APIPort)
			if err := http.ListenAndServe(addr, api.BasicAuth(cfg.APIPassword)(handler)); err != nil {
				log.Println("API server failed:", err)
			}
		}()
	}

	// Start a thread to watch for the stop signal.
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		func() {
			for {
				select {
				case <-c:
					return
				case <-time.After(10 * time.Minute):
					// Reset the abuse protection.
					server.mu.Lock()
					server.datagramCount = make(map[string]int)
					server.mu.Unlock()

					// Save the ban list.
					server.bs.Mu.Lock()
					if err := server.bs.Save(); err != nil {
						log.Println("Couldn't save state:", err)
					}
					server.bs.Mu.Unlock()

					// Drop the registrations whose TTL ran out.
					if server.db != nil {
						ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
						if pruned, err := server.db.PruneExpired(ctx); err != nil {
							log.Println("Couldn't prune registrations:", err)
						} else if pruned > 0 {
							log.Printf("Pruned %d expired registrations\n", pruned)
						}
						cancel()
					}
				}
			}
		}()

		log.Println("Received interrupt signal, shutting down...")
		server.mu.Lock()
		server.enabled = false
		server.mu.Unlock()

		server.bs.Mu.Lock()
		if err := server.bs.Save(); err != nil {
			log.Println("Couldn't save state:", err)
		}
		server.bs.Mu.Unlock()

		conn.Close()
		os.Exit(0)
	}()

	for {
		msg, raddr, err := readDatagram(conn)
		if err != nil {
			log.Println(err)
			continue
		}

		// Check if the remote host is on the ban list.
		host := raddr.IP.String()
		server.bs.Mu.Lock()
		_, banned := server.bs.Bans[host]
		server.bs.Mu.Unlock()
		if banned {
			continue
		}

		// Ban the remote host if it floods the server.
		server.mu.Lock()
		server.stats.bytesRcvd += uint64(len(msg))
		num := server.datagramCount[host]
		server.datagramCount[host] = num + 1
		enabled := server.enabled
		server.mu.Unlock()
		if cfg.MaxDatagrams > 0 && num >= cfg.MaxDatagrams {
			server.blockHost(host, "too many datagrams")
			continue
		}

		if !enabled {
			return
		}

		go server.handleDatagram(msg, raddr)
	}
}
