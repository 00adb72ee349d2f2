// Package notify delivers showing notifications by SMS and email.
package notify

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/evcraddock/showinghive/internal/apperr"
)

// ErrBadPort is returned when an SMTP port is not a number.
var ErrBadPort = apperr.Invalid("smtp_port must be a number")

// TwilioSettings are the credentials used to send SMS.
type TwilioSettings struct {
	AccountSID string `json:"account_sid"`
	AuthToken  string `json:"auth_token"`
	FromNumber string `json:"from_number"`
}

// Complete reports whether every field needed to send is set.
func (t TwilioSettings) Complete() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.FromNumber != ""
}

// EmailSettings describe the SMTP relay used for client email.
type EmailSettings struct {
	SMTPServer   string `json:"smtp_server"`
	SMTPPort     string `json:"smtp_port"`
	SMTPUsername string `json:"smtp_username"`
	SMTPPassword string `json:"smtp_password"`
	FromEmail    string `json:"from_email"`
	UseTLS       bool   `json:"use_tls"`
}

// Complete reports whether server, port and sender are set.
func (e EmailSettings) Complete() bool {
	return e.SMTPServer != "" && e.SMTPPort != "" && e.FromEmail != ""
}

// Settings is the full notification configuration.
type Settings struct {
	Twilio TwilioSettings `json:"twilio"`
	Email  EmailSettings  `json:"email"`
}

// Store keeps channel settings in the settings table.
type Store struct {
	db *sql.DB
}

// NewStore creates a settings store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const (
	keyTwilioSID   = "twilio.account_sid"
	keyTwilioToken = "twilio.auth_token"
	keyTwilioFrom  = "twilio.from_number"
	keySMTPServer  = "email.smtp_server"
	keySMTPPort    = "email.smtp_port"
	keySMTPUser    = "email.smtp_username"
	keySMTPPass    = "email.smtp_password"
	keyFromEmail   = "email.from_email"
	keyUseTLS      = "email.use_tls"
)

// Load reads all notification settings. Missing keys are empty; use_tls
// defaults to true.
func (s *Store) Load() (Settings, error) {
	rows, err := s.db.Query("SELECT key, value FROM settings WHERE key LIKE 'twilio.%' OR key LIKE 'email.%'")
	if err != nil {
		return Settings{}, fmt.Errorf("querying settings: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			slog.Warn("closing rows", "err", cerr)
		}
	}()

	values := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Settings{}, fmt.Errorf("scanning setting: %w", err)
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return Settings{}, err
	}

	useTLS := true
	if v, ok := values[keyUseTLS]; ok {
		useTLS, _ = strconv.ParseBool(v)
	}

	return Settings{
		Twilio: TwilioSettings{
			AccountSID: values[keyTwilioSID],
			AuthToken:  values[keyTwilioToken],
			FromNumber: values[keyTwilioFrom],
		},
		Email: EmailSettings{
			SMTPServer:   values[keySMTPServer],
			SMTPPort:     values[keySMTPPort],
			SMTPUsername: values[keySMTPUser],
			SMTPPassword: values[keySMTPPass],
			FromEmail:    values[keyFromEmail],
			UseTLS:       useTLS,
		},
	}, nil
}

// SaveTwilio replaces the Twilio settings.
func (s *Store) SaveTwilio(t TwilioSettings) error {
	return s.save(map[string]string{
		keyTwilioSID:   strings.TrimSpace(t.AccountSID),
		keyTwilioToken: strings.TrimSpace(t.AuthToken),
		keyTwilioFrom:  strings.TrimSpace(t.FromNumber),
	})
}

// SaveEmail replaces the SMTP settings. A non-numeric port is rejected.
func (s *Store) SaveEmail(e EmailSettings) error {
	port := strings.TrimSpace(e.SMTPPort)
	if port != "" {
		if _, err := strconv.Atoi(port); err != nil {
			return ErrBadPort
		}
	}
	return s.save(map[string]string{
		keySMTPServer: strings.TrimSpace(e.SMTPServer),
		keySMTPPort:   port,
		keySMTPUser:   strings.TrimSpace(e.SMTPUsername),
		keySMTPPass:   e.SMTPPassword,
		keyFromEmail:  strings.TrimSpace(e.FromEmail),
		keyUseTLS:     strconv.FormatBool(e.UseTLS),
	})
}

func (s *Store) save(values map[string]string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for k, v := range values {
		_, err := tx.Exec(
			`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			k, v,
		)
		if err != nil {
			return fmt.Errorf("saving %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing settings: %w", err)
	}
	return nil
}
