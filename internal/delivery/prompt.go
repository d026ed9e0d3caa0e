package delivery

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter asks for delivery settings on a terminal.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
	// readSecret reads the password without echo.
	readSecret func() (string, error)
}

// NewPrompter returns a Prompter reading from in and writing questions to
// out. readSecret, when nil, falls back to a plain line read.
func NewPrompter(in io.Reader, out io.Writer, readSecret func() (string, error)) *Prompter {
	p := &Prompter{in: bufio.NewReader(in), out: out, readSecret: readSecret}
	if p.readSecret == nil {
		p.readSecret = p.line
	}
	return p
}

// TerminalSecret reads a line from f without echoing it.
func TerminalSecret(f *os.File) func() (string, error) {
	return func() (string, error) {
		b, err := term.ReadPassword(int(f.Fd()))
		return string(b), err
	}
}

// IsInteractive reports whether f is attached to a terminal.
func IsInteractive(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func (p *Prompter) line() (string, error) {
	s, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

func (p *Prompter) ask(q string) (string, error) {
	fmt.Fprint(p.out, q)
	return p.line()
}

// Prompt asks whether to email the report and, if so, for the settings.
// The second result is false when the user declines.
func (p *Prompter) Prompt(defaultSubject string, def Defaults) (*Config, bool, error) {
	ans, err := p.ask("Send the report by email? (y/N): ")
	if err != nil {
		return nil, false, err
	}
	switch strings.ToLower(ans) {
	case "y", "yes":
	default:
		return nil, false, nil
	}

	cfg := &Config{}
	if cfg.Sender, err = p.ask("Sender email: "); err != nil {
		return nil, false, err
	}
	fmt.Fprint(p.out, "Password (app password for accounts with two-factor authentication): ")
	if cfg.Password, err = p.readSecret(); err != nil {
		return nil, false, fmt.Errorf("read password: %w", err)
	}
	fmt.Fprintln(p.out)
	cfg.Password = strings.TrimSpace(cfg.Password)
	rcpt, err := p.ask("Recipient emails (comma-separated): ")
	if err != nil {
		return nil, false, err
	}
	cfg.Recipients = ParseRecipients(rcpt)
	q := "Subject (blank for default): "
	if defaultSubject != "" {
		q = fmt.Sprintf("Subject (blank for %q): ", defaultSubject)
	}
	if cfg.Subject, err = p.ask(q); err != nil {
		return nil, false, err
	}
	host, err := p.ask(fmt.Sprintf("SMTP host (blank for %s): ", def.host("")))
	if err != nil {
		return nil, false, err
	}
	cfg.Host = def.host(host)
	port, err := p.ask(fmt.Sprintf("SMTP port (blank for %d): ", def.port("")))
	if err != nil {
		return nil, false, err
	}
	cfg.Port = def.port(port)
	return cfg, true, nil
}
