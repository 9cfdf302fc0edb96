package email

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/c360studio/semdigest/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SMTPHost = "127.0.0.1"
	cfg.From = "digest@example.com"
	cfg.To = "a@example.com, b@example.com"
	return cfg
}

func newSink(t *testing.T, cfg Config) *Sink {
	t.Helper()
	s, err := New(cfg, nil)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	return s
}

func TestBuildMessage(t *testing.T) {
	s := newSink(t, testConfig())

	msg, err := s.buildMessage("<html><body>hi</body></html>", pipeline.Metadata{Title: "Big news"})
	require.NoError(t, err)
	text := string(msg)

	assert.Contains(t, text, "From: digest@example.com\r\n")
	assert.Contains(t, text, "To: a@example.com, b@example.com\r\n")
	assert.Contains(t, text, "Subject: Digest Update: Big news\r\n")
	assert.Contains(t, text, "Content-Type: text/html; charset=UTF-8\r\n")
	assert.Contains(t, text, "Date: Thu, 02 Jan 2025 03:04:05 +0000\r\n")
	assert.True(t, strings.HasSuffix(text, "<html><body>hi</body></html>"))

	msg, err = s.buildMessage("# plain", pipeline.Metadata{Title: "Grüße"})
	require.NoError(t, err)
	assert.Contains(t, string(msg), "Content-Type: text/plain; charset=UTF-8\r\n")
	assert.Contains(t, string(msg), "Subject: =?utf-8?q?")
}

func TestSubjectTemplate(t *testing.T) {
	cfg := testConfig()
	cfg.SubjectTemplate = "[{{.Articles}}] {{.Title}} ({{.RunID}})"
	s := newSink(t, cfg)

	msg, err := s.buildMessage("x", pipeline.Metadata{Title: "T", Articles: 3, RunID: "r1"})
	require.NoError(t, err)
	assert.Contains(t, string(msg), "Subject: [3] T (r1)\r\n")

	cfg.SubjectTemplate = "{{ .Title"
	_, err = New(cfg, nil)
	assert.Error(t, err)
}

func TestDeliver_SendFailureReturnsFalse(t *testing.T) {
	s := newSink(t, testConfig())
	s.send = func(context.Context, []byte) error { return errors.New("connection refused") }
	assert.False(t, s.Deliver(t.Context(), "x", pipeline.Metadata{}))

	var sent []byte
	s.send = func(_ context.Context, msg []byte) error { sent = msg; return nil }
	assert.True(t, s.Deliver(t.Context(), "x", pipeline.Metadata{}))
	assert.NotEmpty(t, sent)
}

// fakeSMTP speaks just enough SMTP for net/smtp without TLS or auth.
type fakeSMTP struct {
	mu    sync.Mutex
	rcpts []string
	data  string
}

func startFakeSMTP(t *testing.T) (*fakeSMTP, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	srv := &fakeSMTP{}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		srv.serve(conn)
	}()
	return srv, ln.Addr().(*net.TCPAddr).Port
}

func (f *fakeSMTP) serve(conn net.Conn) {
	r := bufio.NewReader(conn)
	reply := func(s string) { _, _ = conn.Write([]byte(s + "\r\n")) }

	reply("220 fake ESMTP")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.ToUpper(strings.TrimSpace(line))
		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			reply("250 fake")
		case strings.HasPrefix(cmd, "MAIL FROM"):
			reply("250 ok")
		case strings.HasPrefix(cmd, "RCPT TO"):
			f.mu.Lock()
			f.rcpts = append(f.rcpts, strings.TrimSpace(line))
			f.mu.Unlock()
			reply("250 ok")
		case cmd == "DATA":
			reply("354 go ahead")
			var body strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				body.WriteString(l)
			}
			f.mu.Lock()
			f.data = body.String()
			f.mu.Unlock()
			reply("250 queued")
		case cmd == "QUIT":
			reply("221 bye")
			return
		default:
			reply("502 unsupported")
		}
	}
}

func TestDeliver_OverSMTP(t *testing.T) {
	srv, port := startFakeSMTP(t)

	cfg := testConfig()
	cfg.SMTPPort = port
	cfg.StartTLS = false
	s := newSink(t, cfg)

	require.True(t, s.Deliver(t.Context(), "hello digest", pipeline.Metadata{Title: "Run"}))

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Len(t, srv.rcpts, 2)
	assert.Contains(t, srv.data, "Subject: Digest Update: Run")
	assert.Contains(t, srv.data, "hello digest")
}

func TestDeliver_RequiresStartTLS(t *testing.T) {
	_, port := startFakeSMTP(t)

	cfg := testConfig()
	cfg.SMTPPort = port
	s := newSink(t, cfg)

	assert.False(t, s.Deliver(t.Context(), "x", pipeline.Metadata{}))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "no host", mutate: func(c *Config) { c.SMTPHost = "" }},
		{name: "bad port", mutate: func(c *Config) { c.SMTPPort = 70000 }},
		{name: "no from", mutate: func(c *Config) { c.From = "" }},
		{name: "no to", mutate: func(c *Config) { c.To = " , " }},
		{name: "bad timeout", mutate: func(c *Config) { c.Timeout = "soon" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNewComponent(t *testing.T) {
	sink, err := NewComponent(json.RawMessage(`{"smtp_host":"mail.example.com","from_email":"a@b.c","to_email":"d@e.f","smtp_port":`+strconv.Itoa(2525)+`}`), pipeline.Dependencies{})
	require.NoError(t, err)
	s := sink.(*Sink)
	assert.True(t, s.cfg.StartTLS)
	assert.Equal(t, DefaultSubject, s.cfg.SubjectTemplate)
}
