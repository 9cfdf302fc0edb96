// Package natstest provides an embedded NATS server for tests.
package natstest

import (
	"testing"

	"github.com/c360studio/semdigest/natsembed"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Server is a per-test embedded server.
type Server struct {
	*natsembed.Server
	JS jetstream.JetStream
}

// Start boots a JetStream-enabled server in a temp dir and stops it when
// the test ends.
func Start(t testing.TB) *Server {
	t.Helper()

	srv, err := natsembed.Start(natsembed.Options{StoreDir: t.TempDir()})
	if err != nil {
		t.Fatalf("start embedded NATS: %v", err)
	}
	t.Cleanup(srv.Shutdown)

	js, err := jetstream.New(srv.Conn)
	if err != nil {
		t.Fatalf("create JetStream context: %v", err)
	}
	return &Server{Server: srv, JS: js}
}

// Connect opens an additional client connection, closed at test end.
func (s *Server) Connect(t testing.TB) *nats.Conn {
	t.Helper()
	nc, err := nats.Connect(s.ClientURL())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(nc.Close)
	return nc
}
