// Package web provides the HTTP server: the JSON API, the login flows and
// the few HTML pages sellers and the admin use.
package web

import (
	"database/sql"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/evcraddock/showinghive/internal/auth"
	"github.com/evcraddock/showinghive/internal/block"
	"github.com/evcraddock/showinghive/internal/dashboard"
	"github.com/evcraddock/showinghive/internal/feedback"
	"github.com/evcraddock/showinghive/internal/lock"
	"github.com/evcraddock/showinghive/internal/logging"
	"github.com/evcraddock/showinghive/internal/notify"
	"github.com/evcraddock/showinghive/internal/property"
	"github.com/evcraddock/showinghive/internal/showing"
	"github.com/evcraddock/showinghive/internal/tour"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Config wires the server to its collaborators.
type Config struct {
	Auth auth.Config
	// Location interprets times given without an offset. Nil means UTC.
	Location *time.Location
	// Locker serializes bookings per property. Nil means in-process.
	Locker lock.Locker
	// Notifier receives showing events. Nil drops them.
	Notifier showing.Notifier
}

// Server is the HTTP server.
type Server struct {
	props     *property.Repository
	blocks    *block.Repository
	showings  *showing.Service
	feedback  *feedback.Repository
	tours     *tour.Repository
	dashboard *dashboard.Builder
	settings  *notify.Store

	sessions *auth.SessionStore
	tokens   *auth.TokenStore
	apiKeys  *auth.APIKeyStore
	users    *auth.UserStore
	passkeys *auth.PasskeyStore

	loc       *time.Location
	templates *template.Template
	router    chi.Router
}

// NewServer creates a server over the given database.
func NewServer(d *sql.DB, cfg Config) (*Server, error) {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	tmpl, err := template.New("").Funcs(template.FuncMap{
		"when":  func(t time.Time) string { return t.In(loc).Format("Mon Jan 2, 2006 15:04") },
		"stars": stars,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	props := property.NewRepository(d)
	blocks := block.NewRepository(d, loc)
	fb := feedback.NewRepository(d)
	showingRepo := showing.NewRepository(d)

	s := &Server{
		props:    props,
		blocks:   blocks,
		feedback: fb,
		tours:    tour.NewRepository(d),
		showings: showing.NewService(showing.Deps{
			Repo:       showingRepo,
			Properties: props,
			Blocks:     blocks,
			Locker:     cfg.Locker,
			Notifier:   cfg.Notifier,
			Location:   loc,
		}),
		dashboard: dashboard.NewBuilder(props, showingRepo, blocks, fb),
		settings:  notify.NewStore(d),
		sessions:  auth.NewSessionStore(d),
		tokens:    auth.NewTokenStore(d),
		apiKeys:   auth.NewAPIKeyStore(d),
		users:     auth.NewUserStore(d, cfg.Auth.AdminEmail),
		passkeys:  auth.NewPasskeyStore(d),
		loc:       loc,
		templates: tmpl,
	}

	if err := s.routes(cfg.Auth); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) routes(cfg auth.Config) error {
	mailer := auth.NewMailer(cfg, s.settings)
	ah := &authHandlers{tokens: s.tokens, sessions: s.sessions, users: s.users, mailer: mailer, render: s.render}
	ch := &cliAuthHandlers{tokens: s.tokens, sessions: s.sessions, passkeys: s.passkeys, apiKeys: s.apiKeys, users: s.users, mailer: mailer, render: s.render}
	kh := &apikeyHandlers{apiKeys: s.apiKeys}
	uh := &userHandlers{users: s.users}

	var ph *passkeyHandlers
	if cfg.BaseURL != "" {
		var err error
		ph, err = newPasskeyHandlers(cfg, s.passkeys, s.sessions, s.users)
		if err != nil {
			return fmt.Errorf("configuring passkeys: %w", err)
		}
	}

	staticContent, err := fs.Sub(staticFS, "static")
	if err != nil {
		return fmt.Errorf("creating static sub-fs: %w", err)
	}

	session := auth.RequireSession(s.sessions, s.users)
	sessionAPI := auth.RequireSessionAPI(s.sessions, s.users)
	admin := auth.RequireAdmin(s.users)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logging.RequestLogger)

	r.Get("/health", handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticContent))))

	// Login flows are public and rate limited per client.
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(30, time.Minute))
		r.Get("/login", ah.handleLoginPage)
		r.Post("/auth/login", ah.handleLoginSubmit)
		r.Get("/auth/verify", ah.handleVerify)
		r.Get("/auth/logout", ah.handleLogout)
		r.Post("/auth/logout", ah.handleLogout)
		r.Get("/cli/auth", ch.showLoginForm)
		r.Post("/cli/auth", ch.submitEmail)
		r.Get("/cli/auth/verify", ch.handleCLIAuthVerify)
		r.Get("/cli/auth/complete", ch.handleCLIAuthComplete)
		if ph != nil {
			r.Post("/passkey/login/begin", ph.handleBeginLogin)
			r.Post("/passkey/login/finish", ph.handleFinishLogin)
		}
	})

	// HTML pages.
	r.Group(func(r chi.Router) {
		r.Use(session)
		r.Get("/", s.handleHome)
		r.Get("/properties/{id}", s.handleDashboardPage)
		r.Get("/settings", s.handleSettings)
		r.Post("/settings/keys", s.handleKeyCreate)
		r.Post("/settings/keys/revoke", s.handleKeyRevoke)
		r.Post("/settings/passkeys/delete", s.handlePasskeyDelete)
		if ph != nil {
			r.Post("/passkey/register/begin", ph.handleBeginRegistration)
			r.Post("/passkey/register/finish", ph.handleFinishRegistration)
		}
		r.Group(func(r chi.Router) {
			r.Use(admin)
			r.Get("/admin/twilio", s.handleTwilioAdmin)
			r.Post("/admin/twilio", s.handleTwilioAdmin)
			r.Get("/admin/email", s.handleEmailAdmin)
			r.Post("/admin/email", s.handleEmailAdmin)
		})
	})

	r.Route("/api", func(r chi.Router) {
		// Key and user management are driven from the browser.
		r.Group(func(r chi.Router) {
			r.Use(sessionAPI)
			r.Get("/keys", kh.handleListKeys)
			r.Post("/keys", kh.handleCreateKey)
			r.Delete("/keys/{id}", kh.handleDeleteKey)
			r.Group(func(r chi.Router) {
				r.Use(admin)
				r.Get("/users", uh.listUsers)
				r.Post("/users", uh.addUser)
				r.Delete("/users/{id}", uh.deleteUser)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAPIKey(s.apiKeys, s.users, auth.NewFailureLimiter()))
			s.apiRoutes(r, admin)
		})
	})

	s.router = r
	return nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Showings returns the showing service, for the background jobs.
func (s *Server) Showings() *showing.Service { return s.showings }

// Sessions returns the session store.
func (s *Server) Sessions() *auth.SessionStore { return s.sessions }

// Tokens returns the magic link token store.
func (s *Server) Tokens() *auth.TokenStore { return s.tokens }

// NewHTTPServer wraps the server with timeouts for addr.
func (s *Server) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if _, err := w.Write([]byte("ok")); err != nil {
		slog.Error("writing health response", "err", err)
	}
}

func (s *Server) render(w http.ResponseWriter, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.Error("rendering template", "template", name, "err", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

func stars(rating int) string {
	out := make([]rune, 0, 5)
	for i := 1; i <= 5; i++ {
		if i <= rating {
			out = append(out, '★')
		} else {
			out = append(out, '☆')
		}
	}
	return string(out)
}
