// Package natsembed runs an in-process NATS server with JetStream for
// single-binary deployments and tests.
package natsembed

import (
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// Options configures the embedded server.
type Options struct {
	// StoreDir persists JetStream state. Empty uses a temporary directory
	// chosen by the server.
	StoreDir string

	// Port is the client port; -1 picks a free one.
	Port int

	ReadyTimeout time.Duration
}

// Server is a running embedded server and a client connection to it.
type Server struct {
	ns   *server.Server
	Conn *nats.Conn
}

// Start boots the server, waits until it accepts clients and connects.
func Start(opts Options) (*Server, error) {
	if opts.Port == 0 {
		opts.Port = -1
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 5 * time.Second
	}

	ns, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      opts.Port,
		JetStream: true,
		StoreDir:  opts.StoreDir,
		NoLog:     true,
		NoSigs:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedded NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(opts.ReadyTimeout) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded NATS server failed to start")
	}

	conn, err := nats.Connect(ns.ClientURL())
	if err != nil {
		ns.Shutdown()
		return nil, fmt.Errorf("connect to embedded NATS: %w", err)
	}
	return &Server{ns: ns, Conn: conn}, nil
}

// ClientURL is the address other clients can connect to.
func (s *Server) ClientURL() string { return s.ns.ClientURL() }

// Shutdown drains the connection and stops the server.
func (s *Server) Shutdown() {
	if s.Conn != nil {
		_ = s.Conn.Drain()
		s.Conn.Close()
	}
	s.ns.Shutdown()
	s.ns.WaitForShutdown()
}
