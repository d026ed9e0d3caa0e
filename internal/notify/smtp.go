package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hellojin97/copilot-ci-automation/internal/analysis"
	"github.com/rs/zerolog"
)

// Defaults for the mail submission endpoint.
const (
	DefaultHost = "smtp.gmail.com"
	DefaultPort = 587
)

// Request describes one report delivery.
type Request struct {
	DocumentPath string
	Sender       string
	// Password is the sender credential. It is never logged.
	Password   string
	Recipients []string
	// Subject overrides DefaultSubject when set.
	Subject        string
	Host           string
	Port           int
	Analysis       *analysis.Result
	CurrencySymbol string
}

func (r Request) addr() (string, string) {
	host := r.Host
	if host == "" {
		host = DefaultHost
	}
	port := r.Port
	if port <= 0 {
		port = DefaultPort
	}
	return host, net.JoinHostPort(host, strconv.Itoa(port))
}

// Client is the subset of *smtp.Client used for delivery.
type Client interface {
	Hello(localName string) error
	Extension(ext string) (bool, string)
	StartTLS(config *tls.Config) error
	Auth(a smtp.Auth) error
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// Dialer opens an SMTP session.
type Dialer interface {
	Dial(ctx context.Context, addr, host string) (Client, error)
}

// NetDialer dials a real SMTP server over TCP.
type NetDialer struct {
	// Timeout bounds the connection and the whole session. 0 leaves the
	// transport defaults in place.
	Timeout time.Duration
}

// Dial connects to addr and returns an SMTP client for host.
func (d NetDialer) Dial(ctx context.Context, addr, host string) (Client, error) {
	nd := net.Dialer{Timeout: d.Timeout}
	conn, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if d.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(d.Timeout))
	}
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

// Sender delivers a report.
type Sender interface {
	Deliver(ctx context.Context, req Request) error
}

// SMTPSender sends reports over a single STARTTLS SMTP session.
type SMTPSender struct {
	Dialer Dialer
	// Now is used for the Date header and body timestamp.
	Now func() time.Time
}

// NewSMTPSender returns a sender using a TCP dialer with the given timeout.
func NewSMTPSender(timeout time.Duration) *SMTPSender {
	return &SMTPSender{Dialer: NetDialer{Timeout: timeout}, Now: time.Now}
}

// Deliver validates the request, builds the message and sends it. Validation
// and attachment errors are returned as their own types; everything that
// happens on the wire is a *DeliveryError.
func (s *SMTPSender) Deliver(ctx context.Context, req Request) error {
	if err := Validate(req.Sender, req.Recipients); err != nil {
		return err
	}
	data, err := os.ReadFile(req.DocumentPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &AttachmentNotFoundError{Path: req.DocumentPath, Err: err}
		}
		return fmt.Errorf("read attachment: %w", err)
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	ts := now()
	subject := req.Subject
	if subject == "" {
		subject = DefaultSubject(req.Analysis, ts)
	}
	body, err := RenderHTML(req.Analysis, req.CurrencySymbol, filepath.Base(req.DocumentPath), ts)
	if err != nil {
		return err
	}
	msg := &Message{
		From:           req.Sender,
		To:             req.Recipients,
		Subject:        subject,
		HTML:           body,
		AttachmentName: req.DocumentPath,
		Attachment:     data,
		Date:           ts,
	}
	raw, err := msg.Bytes()
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}

	host, addr := req.addr()
	log := zerolog.Ctx(ctx)
	log.Debug().Str("addr", addr).Str("from", MaskAddress(req.Sender)).Int("recipients", len(req.Recipients)).Int("bytes", len(raw)).Msg("connecting to smtp server")

	c, err := s.Dialer.Dial(ctx, addr, host)
	if err != nil {
		return &DeliveryError{Stage: "connect", Host: addr, Err: err}
	}
	defer c.Close()

	// Extension swallows EHLO failures, so greet first to surface them.
	if err := c.Hello("localhost"); err != nil {
		return &DeliveryError{Stage: "connect", Host: addr, Err: err}
	}
	if ok, _ := c.Extension("STARTTLS"); !ok {
		return &DeliveryError{Stage: "starttls", Host: addr, Err: errors.New("server does not offer STARTTLS")}
	}
	if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
		return &DeliveryError{Stage: "starttls", Host: addr, Err: err}
	}
	if err := c.Auth(smtp.PlainAuth("", req.Sender, req.Password, host)); err != nil {
		return &DeliveryError{Stage: "auth", Host: addr, Err: err}
	}
	if err := c.Mail(req.Sender); err != nil {
		return &DeliveryError{Stage: "mail", Host: addr, Err: err}
	}
	for _, r := range req.Recipients {
		if err := c.Rcpt(r); err != nil {
			return &DeliveryError{Stage: "rcpt", Host: addr, Err: err}
		}
	}
	w, err := c.Data()
	if err != nil {
		return &DeliveryError{Stage: "data", Host: addr, Err: err}
	}
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return &DeliveryError{Stage: "data", Host: addr, Err: err}
	}
	if err := w.Close(); err != nil {
		return &DeliveryError{Stage: "data", Host: addr, Err: err}
	}
	if err := c.Quit(); err != nil {
		return &DeliveryError{Stage: "quit", Host: addr, Err: err}
	}
	return nil
}
