package web

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/evcraddock/showinghive/internal/auth"
)

// authHandlers holds the browser login handlers.
type authHandlers struct {
	tokens   *auth.TokenStore
	sessions *auth.SessionStore
	users    *auth.UserStore
	mailer   *auth.Mailer
	render   func(w http.ResponseWriter, name string, data interface{})
}

type loginData struct {
	Message string
	Error   string
}

// Shown for every submitted email so the form cannot be used to probe
// which addresses are registered.
const loginSentMsg = "If that email is registered, a login link has been sent. Check your inbox."

func (h *authHandlers) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, "login.html", loginData{})
}

func (h *authHandlers) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	email := strings.TrimSpace(strings.ToLower(r.FormValue("email")))
	if email == "" {
		h.render(w, "login.html", loginData{Error: "Email is required"})
		return
	}

	if h.users.IsAuthorized(email) {
		token, err := h.tokens.Create(email)
		if err != nil {
			slog.Error("creating token", "err", err)
		} else if _, err := h.mailer.SendMagicLink(email, token); err != nil {
			slog.Error("sending magic link", "err", err)
		}
	}

	h.render(w, "login.html", loginData{Message: loginSentMsg})
}

func (h *authHandlers) handleVerify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		h.render(w, "login.html", loginData{Error: "Invalid login link"})
		return
	}

	email, err := h.tokens.Validate(token)
	if err != nil {
		h.render(w, "login.html", loginData{Error: "Invalid or expired login link. Please request a new one."})
		return
	}

	if err := h.sessions.Create(w, email); err != nil {
		slog.Error("creating session", "err", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	slog.Info("login success", "email", email, "method", "magic_link")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *authHandlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Destroy(w, r); err != nil {
		slog.Error("destroying session", "err", err)
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
