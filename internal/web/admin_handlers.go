package web

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/evcraddock/showinghive/internal/apperr"
	"github.com/evcraddock/showinghive/internal/notify"
)

type adminData struct {
	Settings notify.Settings
	Message  string
	Error    string
}

// handleTwilioAdmin shows and saves the SMS credentials.
func (s *Server) handleTwilioAdmin(w http.ResponseWriter, r *http.Request) {
	var data adminData
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}
		err := s.settings.SaveTwilio(notify.TwilioSettings{
			AccountSID: r.FormValue("account_sid"),
			AuthToken:  r.FormValue("auth_token"),
			FromNumber: r.FormValue("from_number"),
		})
		if err != nil {
			slog.Error("saving twilio settings", "err", err)
			data.Error = "Could not save configuration."
		} else {
			data.Message = "Configuration updated successfully."
		}
	}
	s.renderAdmin(w, "admin_twilio.html", data)
}

// handleEmailAdmin shows and saves the SMTP relay used for client email.
func (s *Server) handleEmailAdmin(w http.ResponseWriter, r *http.Request) {
	var data adminData
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}
		err := s.settings.SaveEmail(notify.EmailSettings{
			SMTPServer:   r.FormValue("smtp_server"),
			SMTPPort:     r.FormValue("smtp_port"),
			SMTPUsername: r.FormValue("smtp_username"),
			SMTPPassword: r.FormValue("smtp_password"),
			FromEmail:    r.FormValue("from_email"),
			UseTLS:       !strings.EqualFold(r.FormValue("use_tls"), "false"),
		})
		switch {
		case apperr.KindOf(err) == apperr.KindInvalid:
			data.Error = apperr.Message(err)
		case err != nil:
			slog.Error("saving email settings", "err", err)
			data.Error = "Could not save configuration."
		default:
			data.Message = "Email configuration updated successfully."
		}
	}
	s.renderAdmin(w, "admin_email.html", data)
}

func (s *Server) renderAdmin(w http.ResponseWriter, name string, data adminData) {
	settings, err := s.settings.Load()
	if err != nil {
		slog.Error("loading notification settings", "err", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	data.Settings = settings
	s.render(w, name, data)
}
