package notify

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

// emailFunc sends one plain-text email with the given relay settings.
type emailFunc func(cfg EmailSettings, to, subject, body string) error

func buildEmail(from, to, subject, body string) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\r\n", from)
	fmt.Fprintf(&sb, "To: %s\r\n", to)
	fmt.Fprintf(&sb, "Subject: %s\r\n", subject)
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(body)
	return []byte(sb.String())
}

// SendMail delivers through the configured relay. Port 465 uses implicit
// TLS; any other port starts plain and upgrades with STARTTLS when UseTLS is
// set and the server offers it.
func SendMail(cfg EmailSettings, to, subject, body string) error {
	addr := net.JoinHostPort(cfg.SMTPServer, cfg.SMTPPort)
	msg := buildEmail(cfg.FromEmail, to, subject, body)

	var c *smtp.Client
	if cfg.SMTPPort == "465" {
		conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: cfg.SMTPServer})
		if err != nil {
			return fmt.Errorf("TLS dial: %w", err)
		}
		c, err = smtp.NewClient(conn, cfg.SMTPServer)
		if err != nil {
			return fmt.Errorf("creating SMTP client: %w", err)
		}
	} else {
		var err error
		c, err = smtp.Dial(addr)
		if err != nil {
			return fmt.Errorf("dial: %w", err)
		}
		if cfg.UseTLS {
			if ok, _ := c.Extension("STARTTLS"); ok {
				if err := c.StartTLS(&tls.Config{ServerName: cfg.SMTPServer}); err != nil {
					_ = c.Close()
					return fmt.Errorf("starttls: %w", err)
				}
			}
		}
	}
	defer func() { _ = c.Close() }()

	if cfg.SMTPUsername != "" && cfg.SMTPPassword != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPServer)
			if err := c.Auth(auth); err != nil {
				return fmt.Errorf("auth: %w", err)
			}
		}
	}

	if err := c.Mail(cfg.FromEmail); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to %s: %w", to, err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data: %w", err)
	}

	return c.Quit()
}
