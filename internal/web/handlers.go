package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/evcraddock/showinghive/internal/apperr"
	"github.com/evcraddock/showinghive/internal/auth"
	"github.com/evcraddock/showinghive/internal/dashboard"
	"github.com/evcraddock/showinghive/internal/property"
)

type homeData struct {
	Email      string
	IsAdmin    bool
	Properties []*property.Property
}

type dashboardData struct {
	*dashboard.Dashboard
	IsAdmin bool
}

// handleHome lists the properties the caller owns; the admin sees all.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	email := auth.EmailFrom(r.Context())
	isAdmin := s.users.IsAdmin(email)

	opts := property.ListOptions{OwnerEmail: email}
	if isAdmin {
		opts = property.ListOptions{}
	}
	props, err := s.props.List(opts)
	if err != nil {
		slog.Error("listing properties", "err", err)
		http.Error(w, "Error loading properties", http.StatusInternalServerError)
		return
	}

	s.render(w, "home.html", homeData{Email: email, IsAdmin: isAdmin, Properties: props})
}

// handleDashboardPage renders the seller dashboard for one property.
func (s *Server) handleDashboardPage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.ownedProperty(r, id); err != nil {
		switch apperr.KindOf(err) {
		case apperr.KindNotFound:
			http.NotFound(w, r)
		case apperr.KindForbidden:
			http.Error(w, "Forbidden", http.StatusForbidden)
		default:
			slog.Error("loading property", "err", err)
			http.Error(w, "Internal error", http.StatusInternalServerError)
		}
		return
	}

	d, err := s.dashboard.Build(id)
	if err != nil {
		slog.Error("building dashboard", "property", id, "err", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	s.render(w, "dashboard.html", dashboardData{Dashboard: d, IsAdmin: s.users.IsAdmin(auth.EmailFrom(r.Context()))})
}

type settingsData struct {
	Email    string
	IsAdmin  bool
	Passkeys []auth.StoredCredential
	Keys     []auth.APIKey
	NewKey   string
	Flash    string
}

// handleSettings renders the caller's passkeys and API keys.
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	s.renderSettings(w, r, "", "")
}

func (s *Server) renderSettings(w http.ResponseWriter, r *http.Request, newKey, flash string) {
	email := auth.EmailFrom(r.Context())

	passkeys, err := s.passkeys.ListByEmail(email)
	if err != nil {
		slog.Error("listing passkeys", "err", err)
		http.Error(w, "Error loading passkeys", http.StatusInternalServerError)
		return
	}
	keys, err := s.apiKeys.List(email)
	if err != nil {
		slog.Error("listing api keys", "err", err)
		http.Error(w, "Error loading API keys", http.StatusInternalServerError)
		return
	}

	s.render(w, "settings.html", settingsData{
		Email:    email,
		IsAdmin:  s.users.IsAdmin(email),
		Passkeys: passkeys,
		Keys:     keys,
		NewKey:   newKey,
		Flash:    flash,
	})
}

// handlePasskeyDelete removes one of the caller's passkeys.
func (s *Server) handlePasskeyDelete(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	id := r.FormValue("id")
	if id == "" {
		http.Error(w, "Missing credential ID", http.StatusBadRequest)
		return
	}

	err := s.passkeys.Delete(id, auth.EmailFrom(r.Context()))
	if errors.Is(err, auth.ErrCredentialNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		slog.Error("deleting passkey", "err", err)
		http.Error(w, "Error deleting passkey", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/settings", http.StatusSeeOther)
}

// handleKeyCreate issues an API key and shows it once.
func (s *Server) handleKeyCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		name = "API Key"
	}

	raw, _, err := s.apiKeys.Create(name, auth.EmailFrom(r.Context()))
	if err != nil {
		slog.Error("creating api key", "err", err)
		http.Error(w, "Error creating API key", http.StatusInternalServerError)
		return
	}
	s.renderSettings(w, r, raw, "")
}

// handleKeyRevoke deletes one of the caller's API keys.
func (s *Server) handleKeyRevoke(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	id, err := strconv.ParseInt(r.FormValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid key ID", http.StatusBadRequest)
		return
	}

	err = s.apiKeys.Delete(id, auth.EmailFrom(r.Context()))
	if errors.Is(err, auth.ErrKeyNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		slog.Error("revoking api key", "err", err)
		http.Error(w, "Error revoking API key", http.StatusInternalServerError)
		return
	}

	s.renderSettings(w, r, "", "API key revoked.")
}
