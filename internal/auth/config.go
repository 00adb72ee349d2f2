// Package auth provides magic link login, sessions, API keys and passkeys.
package auth

// Config holds authentication configuration.
type Config struct {
	AdminEmail string
	SMTPHost   string
	SMTPPort   string
	SMTPUser   string
	SMTPPass   string
	SMTPFrom   string
	DevMode    bool
	BaseURL    string // e.g. http://localhost:8080
}
