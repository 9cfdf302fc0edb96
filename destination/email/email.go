// Package email is a sink that mails each payload over SMTP.
package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/c360studio/semdigest/pipeline"
)

// Name is the registered sink type.
const Name = "email"

// DefaultSubject is used when subject_template is empty.
const DefaultSubject = "Digest Update: {{.Title}}"

// Config holds the email sink args.
type Config struct {
	SMTPHost string `json:"smtp_host"`
	SMTPPort int    `json:"smtp_port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from_email"`

	// To is one address or a comma-separated list.
	To string `json:"to_email"`

	// SubjectTemplate is a text/template over pipeline.Metadata.
	SubjectTemplate string `json:"subject_template"`

	// StartTLS requires the server to upgrade the connection before auth.
	StartTLS bool `json:"starttls"`

	Timeout string `json:"timeout"`
}

// DefaultConfig returns the default email config.
func DefaultConfig() Config {
	return Config{
		SMTPPort:        587,
		SubjectTemplate: DefaultSubject,
		StartTLS:        true,
		Timeout:         "30s",
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch {
	case c.SMTPHost == "":
		return fmt.Errorf("smtp_host is required")
	case c.SMTPPort <= 0 || c.SMTPPort > 65535:
		return fmt.Errorf("smtp_port out of range: %d", c.SMTPPort)
	case c.From == "":
		return fmt.Errorf("from_email is required")
	case len(c.recipients()) == 0:
		return fmt.Errorf("to_email is required")
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout format: %w", err)
	}
	return nil
}

func (c *Config) recipients() []string {
	var to []string
	for _, addr := range strings.Split(c.To, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			to = append(to, addr)
		}
	}
	return to
}

// Sink sends one message per delivery. Payloads containing an <html>
// element go out as text/html, everything else as text/plain.
type Sink struct {
	cfg     Config
	to      []string
	subject *template.Template
	timeout time.Duration
	now     func() time.Time
	send    func(ctx context.Context, msg []byte) error
	logger  *slog.Logger
}

// New creates an email sink.
func New(cfg Config, logger *slog.Logger) (*Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.SubjectTemplate == "" {
		cfg.SubjectTemplate = DefaultSubject
	}
	subject, err := template.New("subject").Option("missingkey=zero").Parse(cfg.SubjectTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse subject_template: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout, _ := time.ParseDuration(cfg.Timeout)

	s := &Sink{
		cfg:     cfg,
		to:      cfg.recipients(),
		subject: subject,
		timeout: timeout,
		now:     time.Now,
		logger:  logger,
	}
	s.send = s.sendSMTP
	return s, nil
}

// NewComponent is the pipeline factory for email.
func NewComponent(args json.RawMessage, deps pipeline.Dependencies) (pipeline.Sink, error) {
	cfg := DefaultConfig()
	if err := pipeline.DecodeArgs(args, &cfg); err != nil {
		return nil, err
	}
	return New(cfg, deps.ComponentLogger(Name))
}

// Deliver implements pipeline.Sink.
func (s *Sink) Deliver(ctx context.Context, payload string, meta pipeline.Metadata) bool {
	msg, err := s.buildMessage(payload, meta)
	if err != nil {
		s.logger.Error("Failed to build email", "title", meta.Title, "error", err)
		return false
	}
	if err := s.send(ctx, msg); err != nil {
		s.logger.Error("Failed to send email", "host", s.cfg.SMTPHost, "title", meta.Title, "error", err)
		return false
	}
	s.logger.Info("Sent email", "to", s.cfg.To, "title", meta.Title)
	return true
}

func (s *Sink) buildMessage(payload string, meta pipeline.Metadata) ([]byte, error) {
	var subject strings.Builder
	if err := s.subject.Execute(&subject, meta); err != nil {
		return nil, fmt.Errorf("render subject: %w", err)
	}

	contentType := "text/plain"
	if pipeline.LooksLikeHTML(payload) {
		contentType = "text/html"
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(s.to, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject.String()))
	fmt.Fprintf(&buf, "Date: %s\r\n", s.now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: %s; charset=UTF-8\r\n", contentType)
	buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n\r\n")

	qp := quotedprintable.NewWriter(&buf)
	if _, err := qp.Write([]byte(payload)); err != nil {
		return nil, err
	}
	if err := qp.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Sink) sendSMTP(ctx context.Context, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	addr := net.JoinHostPort(s.cfg.SMTPHost, strconv.Itoa(s.cfg.SMTPPort))
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, s.cfg.SMTPHost)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if s.cfg.StartTLS {
		if ok, _ := c.Extension("STARTTLS"); !ok {
			return fmt.Errorf("server does not support STARTTLS")
		}
		if err := c.StartTLS(&tls.Config{ServerName: s.cfg.SMTPHost}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if s.cfg.Username != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.SMTPHost)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := c.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range s.to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt %s: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish message: %w", err)
	}
	return c.Quit()
}
