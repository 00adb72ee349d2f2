package auth

import (
	"fmt"
	"log/slog"

	"github.com/evcraddock/showinghive/internal/notify"
)

// Mailer sends magic link emails.
type Mailer struct {
	config   Config
	settings *notify.Store
	send     func(cfg notify.EmailSettings, to, subject, body string) error
}

// NewMailer creates a mailer. When the config has no SMTP host, the relay
// configured for client notifications in settings is used instead; settings
// may be nil.
func NewMailer(config Config, settings *notify.Store) *Mailer {
	return &Mailer{config: config, settings: settings, send: notify.SendMail}
}

// SendMagicLink emails a browser login link and returns it.
func (m *Mailer) SendMagicLink(email, token string) (string, error) {
	link := fmt.Sprintf("%s/auth/verify?token=%s", m.config.BaseURL, token)
	return link, m.deliver(email, link,
		"ShowingHive login link",
		"Click the link below to log in to ShowingHive:",
	)
}

// SendCLIMagicLink emails a link that completes a CLI login.
func (m *Mailer) SendCLIMagicLink(email, token string) (string, error) {
	link := fmt.Sprintf("%s/cli/auth/verify?token=%s", m.config.BaseURL, token)
	return link, m.deliver(email, link,
		"ShowingHive CLI login link",
		"Click the link below to log in to the hive command line tool:",
	)
}

func (m *Mailer) deliver(to, link, subject, intro string) error {
	if m.config.DevMode {
		slog.Info("magic link", "email", to, "link", link)
		return nil
	}

	relay, err := m.relay()
	if err != nil {
		return err
	}
	if !relay.Complete() {
		return fmt.Errorf("no SMTP relay configured")
	}

	body := fmt.Sprintf("%s\n\n%s\n\nThis link expires in 15 minutes and can only be used once.", intro, link)
	if err := m.send(relay, to, subject, body); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	return nil
}

func (m *Mailer) relay() (notify.EmailSettings, error) {
	if m.config.SMTPHost != "" || m.settings == nil {
		return notify.EmailSettings{
			SMTPServer:   m.config.SMTPHost,
			SMTPPort:     m.config.SMTPPort,
			SMTPUsername: m.config.SMTPUser,
			SMTPPassword: m.config.SMTPPass,
			FromEmail:    m.config.SMTPFrom,
			UseTLS:       true,
		}, nil
	}
	s, err := m.settings.Load()
	if err != nil {
		return notify.EmailSettings{}, fmt.Errorf("loading email settings: %w", err)
	}
	return s.Email, nil
}
