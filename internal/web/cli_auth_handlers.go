package web

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/evcraddock/showinghive/internal/auth"
)

// cliAuthHandlers handles the /cli/auth flow: the CLI opens this page, the
// user logs in, and the page shows a fresh API key to paste back.
type cliAuthHandlers struct {
	tokens   *auth.TokenStore
	sessions *auth.SessionStore
	passkeys *auth.PasskeyStore
	apiKeys  *auth.APIKeyStore
	users    *auth.UserStore
	mailer   *auth.Mailer
	render   func(w http.ResponseWriter, name string, data interface{})
}

type cliAuthData struct {
	APIKey      string
	Message     string
	Error       string
	HasPasskeys bool
}

func (h *cliAuthHandlers) page(w http.ResponseWriter, data cliAuthData) {
	if data.APIKey == "" {
		data.HasPasskeys = h.hasPasskeys()
	}
	h.render(w, "cli_auth.html", data)
}

func (h *cliAuthHandlers) showLoginForm(w http.ResponseWriter, r *http.Request) {
	h.page(w, cliAuthData{})
}

func (h *cliAuthHandlers) submitEmail(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	email := strings.TrimSpace(strings.ToLower(r.FormValue("email")))
	if email == "" {
		h.page(w, cliAuthData{Error: "Email is required"})
		return
	}

	if h.users.IsAuthorized(email) {
		token, err := h.tokens.Create(email)
		if err != nil {
			slog.Error("creating token", "err", err)
		} else if _, err := h.mailer.SendCLIMagicLink(email, token); err != nil {
			slog.Error("sending magic link", "err", err)
		}
	}

	h.page(w, cliAuthData{Message: loginSentMsg})
}

// handleCLIAuthVerify consumes the magic link, starts a session and sends
// the browser on to /cli/auth/complete.
func (h *cliAuthHandlers) handleCLIAuthVerify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		h.page(w, cliAuthData{Error: "Invalid login link"})
		return
	}

	email, err := h.tokens.Validate(token)
	if err != nil {
		h.page(w, cliAuthData{Error: "Invalid or expired login link. Please try again."})
		return
	}

	if err := h.sessions.Create(w, email); err != nil {
		slog.Error("creating session", "err", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/cli/auth/complete", http.StatusSeeOther)
}

// handleCLIAuthComplete issues an API key to the logged-in user.
func (h *cliAuthHandlers) handleCLIAuthComplete(w http.ResponseWriter, r *http.Request) {
	email, err := h.sessions.Validate(r)
	if err != nil || !h.users.IsAuthorized(email) {
		http.Redirect(w, r, "/cli/auth", http.StatusSeeOther)
		return
	}

	rawKey, _, err := h.apiKeys.Create("CLI", email)
	if err != nil {
		slog.Error("creating api key", "err", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	slog.Info("cli login", "email", email)
	h.page(w, cliAuthData{APIKey: rawKey})
}

func (h *cliAuthHandlers) hasPasskeys() bool {
	if h.passkeys == nil {
		return false
	}
	emails, err := h.users.AllEmails()
	if err != nil {
		return false
	}
	for _, email := range emails {
		if creds, err := h.passkeys.WebAuthnCredentials(email); err == nil && len(creds) > 0 {
			return true
		}
	}
	return false
}
