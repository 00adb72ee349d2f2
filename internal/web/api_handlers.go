package web

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/evcraddock/showinghive/internal/apperr"
	"github.com/evcraddock/showinghive/internal/auth"
	"github.com/evcraddock/showinghive/internal/block"
	"github.com/evcraddock/showinghive/internal/dashboard"
	"github.com/evcraddock/showinghive/internal/feedback"
	"github.com/evcraddock/showinghive/internal/notify"
	"github.com/evcraddock/showinghive/internal/property"
	"github.com/evcraddock/showinghive/internal/showing"
	"github.com/evcraddock/showinghive/internal/tour"
)

var errForbidden = apperr.New(apperr.KindForbidden, "only the property owner can do that")

// apiError writes a JSON error response.
func apiError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	resp := map[string]string{"error": msg}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("encoding error response", "err", err)
	}
}

// apiJSON writes a JSON response with the given status code.
func apiJSON(w http.ResponseWriter, data interface{}, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding response", "err", err)
	}
}

// apiFail maps a domain error to its status code. Errors without a kind are
// logged and reported as 500 without their text.
func apiFail(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindInvalid:
		code = http.StatusBadRequest
	case apperr.KindNotFound:
		code = http.StatusNotFound
	case apperr.KindConflict:
		code = http.StatusConflict
	case apperr.KindGone:
		code = http.StatusGone
	case apperr.KindForbidden:
		code = http.StatusForbidden
	default:
		slog.Error("api request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		apiError(w, "internal error", code)
		return
	}
	apiError(w, apperr.Message(err), code)
}

// decodeJSON reads the request body into v. Numbers are kept as json.Number.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return apperr.Invalid("invalid JSON body")
	}
	return nil
}

func (s *Server) apiRoutes(r chi.Router, admin func(http.Handler) http.Handler) {
	r.Route("/properties", func(r chi.Router) {
		r.Get("/", s.apiListProperties)
		r.Post("/", s.apiCreateProperty)
		r.Get("/{id}", s.apiGetProperty)
		r.Delete("/{id}", s.apiDeleteProperty)
		r.Get("/{id}/blocks", s.apiListBlocks)
		r.Post("/{id}/blocks", s.apiAddBlock)
		r.Delete("/{id}/blocks/{blockID}", s.apiDeleteBlock)
		r.Get("/{id}/dashboard", s.apiDashboard)
	})

	r.Route("/showings", func(r chi.Router) {
		r.Get("/", s.apiListShowings)
		r.Post("/", s.apiRequestShowing)
		r.Get("/{id}", s.apiGetShowing)
		r.Post("/{id}/approve", s.apiApprove)
		r.Post("/{id}/decline", s.apiDecline)
		r.Post("/{id}/reschedule", s.apiReschedule)
		r.Get("/{id}/feedback", s.apiListFeedback)
		r.Post("/{id}/feedback", s.apiAddFeedback)
		r.Get("/{id}/code", s.apiCode)
	})

	r.Route("/tours", func(r chi.Router) {
		r.Get("/", s.apiListTours)
		r.Post("/", s.apiCreateTour)
		r.Get("/{id}", s.apiGetTour)
		r.Get("/{id}/calendar.ics", s.apiTourCalendar)
	})

	r.With(admin).Get("/admin/notify", s.apiGetNotify)
	r.With(admin).Put("/admin/notify", s.apiPutNotify)
}

// ownedProperty loads the property and checks the caller may manage it.
func (s *Server) ownedProperty(r *http.Request, id string) (*property.Property, error) {
	p, err := s.props.GetByID(id)
	if err != nil {
		return nil, err
	}
	email := auth.EmailFrom(r.Context())
	if !p.OwnedBy(email) && !s.users.IsAdmin(email) {
		return nil, errForbidden
	}
	return p, nil
}

// ownedShowing checks the caller may manage the property of showing id.
func (s *Server) ownedShowing(r *http.Request, id string) error {
	sh, err := s.showings.Get(id)
	if err != nil {
		return err
	}
	_, err = s.ownedProperty(r, sh.PropertyID)
	return err
}

// canSeeCode reports whether the caller may see the lockbox code of sh: the
// agent who booked it, the property owner or the admin. owners caches
// property ownership across a list.
func (s *Server) canSeeCode(r *http.Request, sh *showing.Showing, owners map[string]bool) (bool, error) {
	email := auth.EmailFrom(r.Context())
	if strings.EqualFold(sh.RequestedBy, email) || s.users.IsAdmin(email) {
		return true, nil
	}
	owned, ok := owners[sh.PropertyID]
	if !ok {
		p, err := s.props.GetByID(sh.PropertyID)
		if err != nil {
			return false, err
		}
		owned = p.OwnedBy(email)
		owners[sh.PropertyID] = owned
	}
	return owned, nil
}

// redact clears the lockbox code from showings the caller may not see.
func (s *Server) redact(r *http.Request, list []*showing.Showing) ([]*showing.Showing, error) {
	owners := map[string]bool{}
	out := make([]*showing.Showing, 0, len(list))
	for _, sh := range list {
		ok, err := s.canSeeCode(r, sh, owners)
		if err != nil {
			return nil, err
		}
		if !ok {
			sh = sh.WithoutCode()
		}
		out = append(out, sh)
	}
	return out, nil
}

// Properties

func (s *Server) apiListProperties(w http.ResponseWriter, r *http.Request) {
	opts := property.ListOptions{}
	if r.URL.Query().Get("mine") == "true" {
		opts.OwnerEmail = auth.EmailFrom(r.Context())
	}
	props, err := s.props.List(opts)
	if err != nil {
		apiFail(w, r, err)
		return
	}
	apiJSON(w, props, http.StatusOK)
}

func (s *Server) apiCreateProperty(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	}
	if err := decodeJSON(r, &req); err != nil {
		apiFail(w, r, err)
		return
	}

	p, err := s.props.Create(req.Name, req.Address, auth.EmailFrom(r.Context()))
	if err != nil {
		apiFail(w, r, err)
		return
	}
	slog.Info("property created", "property", p.ID, "owner", p.OwnerEmail)
	apiJSON(w, p, http.StatusCreated)
}

func (s *Server) apiGetProperty(w http.ResponseWriter, r *http.Request) {
	p, err := s.props.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		apiFail(w, r, err)
		return
	}
	apiJSON(w, p, http.StatusOK)
}

func (s *Server) apiDeleteProperty(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.ownedProperty(r, id); err != nil {
		apiFail(w, r, err)
		return
	}
	if err := s.props.Delete(id); err != nil {
		apiFail(w, r, err)
		return
	}
	apiJSON(w, map[string]interface{}{"id": id, "deleted": true}, http.StatusOK)
}

// Blocked times

func (s *Server) apiListBlocks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.props.GetByID(id); err != nil {
		apiFail(w, r, err)
		return
	}
	blocks, err := s.blocks.ListByProperty(id)
	if err != nil {
		apiFail(w, r, err)
		return
	}
	apiJSON(w, blocks, http.StatusOK)
}

func (s *Server) apiAddBlock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.ownedProperty(r, id); err != nil {
		apiFail(w, r, err)
		return
	}

	var req struct {
		Start string `json:"start"`
		End   string `json:"end"`
		RRule string `json:"rrule"`
		Note  string `json:"note"`
	}
	if err := decodeJSON(r, &req); err != nil {
		apiFail(w, r, err)
		return
	}
	if req.Start == "" || req.End == "" {
		apiError(w, "start and end are required", http.StatusBadRequest)
		return
	}
	start, err := showing.ParseTime(req.Start, s.loc)
	if err != nil {
		apiFail(w, r, err)
		return
	}
	end, err := showing.ParseTime(req.End, s.loc)
	if err != nil {
		apiFail(w, r, err)
		return
	}

	b, err := s.blocks.Create(block.Input{PropertyID: id, Start: start, End: end, RRule: req.RRule, Note: req.Note})
	if err != nil {
		apiFail(w, r, err)
		return
	}
	apiJSON(w, b, http.StatusCreated)
}

func (s *Server) apiDeleteBlock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.ownedProperty(r, id); err != nil {
		apiFail(w, r, err)
		return
	}
	blockID := chi.URLParam(r, "blockID")
	if err := s.blocks.Delete(id, blockID); err != nil {
		apiFail(w, r, err)
		return
	}
	apiJSON(w, map[string]interface{}{"id": blockID, "deleted": true}, http.StatusOK)
}

func (s *Server) apiDashboard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.ownedProperty(r, id); err != nil {
		apiFail(w, r, err)
		return
	}
	d, err := s.dashboard.Build(id)
	if err != nil {
		apiFail(w, r, err)
		return
	}
	apiJSON(w, d, http.StatusOK)
}

// Showings

func (s *Server) apiListShowings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := s.showings.List(showing.ListOptions{
		PropertyID: q.Get("property_id"),
		Status:     showing.Status(q.Get("status")),
	})
	if err != nil {
		apiFail(w, r, err)
		return
	}
	list, err = s.redact(r, list)
	if err != nil {
		apiFail(w, r, err)
		return
	}
	apiJSON(w, list, http.StatusOK)
}

func (s *Server) apiRequestShowing(w http.ResponseWriter, r *http.Request) {
	var in showing.RequestInput
	if err := decodeJSON(r, &in); err != nil {
		apiFail(w, r, err)
		return
	}
	in.RequestedBy = auth.EmailFrom(r.Context())

	sh, err := s.showings.Request(r.Context(), in)
	if err != nil {
		apiFail(w, r, err)
		return
	}
	apiJSON(w, sh, http.StatusCreated)
}

func (s *Server) apiGetShowing(w http.ResponseWriter, r *http.Request) {
	sh, err := s.showings.Get(chi.URLParam(r, "id"))
	if err != nil {
		apiFail(w, r, err)
		return
	}
	visible, err := s.redact(r, []*showing.Showing{sh})
	if err != nil {
		apiFail(w, r, err)
		return
	}
	sh = visible[0]
	fb, err := s.feedback.ListByShowing(sh.ID)
	if err != nil {
		apiFail(w, r, err)
		return
	}
	apiJSON(w, dashboard.ShowingWithFeedback{Showing: sh, Feedback: fb}, http.StatusOK)
}

func (s *Server) apiApprove(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.showings.Approve)
}

func (s *Server) apiDecline(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.showings.Decline)
}

func (s *Server) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (*showing.Showing, error)) {
	id := chi.URLParam(r, "id")
	if err := s.ownedShowing(r, id); err != nil {
		apiFail(w, r, err)
		return
	}
	sh, err := fn(r.Context(), id)
	if err != nil {
		apiFail(w, r, err)
		return
	}
	apiJSON(w, sh, http.StatusOK)
}

func (s *Server) apiReschedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.ownedShowing(r, id); err != nil {
		apiFail(w, r, err)
		return
	}
	var req struct {
		ScheduledAt string `json:"scheduled_at"`
	}
	if err := decodeJSON(r, &req); err != nil {
		apiFail(w, r, err)
		return
	}
	sh, err := s.showings.Reschedule(r.Context(), id, req.ScheduledAt)
	if err != nil {
		apiFail(w, r, err)
		return
	}
	apiJSON(w, sh, http.StatusOK)
}

// apiCode reveals the lockbox code to the agent who booked the showing, the
// property owner and the admin.
func (s *Server) apiCode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sh, err := s.showings.Get(id)
	if err != nil {
		apiFail(w, r, err)
		return
	}
	ok, err := s.canSeeCode(r, sh, map[string]bool{})
	if err != nil {
		apiFail(w, r, err)
		return
	}
	if !ok {
		apiFail(w, r, errForbidden)
		return
	}
	code, err := s.showings.Code(id)
	if err != nil {
		apiFail(w, r, err)
		return
	}
	apiJSON(w, code, http.StatusOK)
}

// Feedback

func (s *Server) apiListFeedback(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.showings.Get(id); err != nil {
		apiFail(w, r, err)
		return
	}
	fb, err := s.feedback.ListByShowing(id)
	if err != nil {
		apiFail(w, r, err)
		return
	}
	apiJSON(w, fb, http.StatusOK)
}

func (s *Server) apiAddFeedback(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.showings.Get(id); err != nil {
		apiFail(w, r, err)
		return
	}

	var req struct {
		Rating  interface{} `json:"rating"`
		Comment string      `json:"comment"`
	}
	if err := decodeJSON(r, &req); err != nil {
		apiFail(w, r, err)
		return
	}
	rating, err := feedback.ParseRating(req.Rating)
	if err != nil {
		apiFail(w, r, err)
		return
	}

	f, err := s.feedback.Add(id, rating, req.Comment, auth.EmailFrom(r.Context()))
	if err != nil {
		apiFail(w, r, err)
		return
	}
	apiJSON(w, f, http.StatusCreated)
}

// Tours

func (s *Server) apiListTours(w http.ResponseWriter, r *http.Request) {
	tours, err := s.tours.List()
	if err != nil {
		apiFail(w, r, err)
		return
	}
	apiJSON(w, tours, http.StatusOK)
}

func (s *Server) apiCreateTour(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BuyerName  string          `json:"buyer_name"`
		ShowingIDs json.RawMessage `json:"showing_ids"`
	}
	if err := decodeJSON(r, &req); err != nil {
		apiFail(w, r, err)
		return
	}

	var ids []string
	if len(bytes.TrimSpace(req.ShowingIDs)) > 0 {
		if err := json.Unmarshal(req.ShowingIDs, &ids); err != nil {
			apiFail(w, r, tour.ErrEmpty)
			return
		}
	}

	t, err := s.tours.Create(req.BuyerName, auth.EmailFrom(r.Context()), ids)
	if err != nil {
		apiFail(w, r, err)
		return
	}
	apiJSON(w, t, http.StatusCreated)
}

func (s *Server) apiGetTour(w http.ResponseWriter, r *http.Request) {
	t, err := s.tours.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		apiFail(w, r, err)
		return
	}
	apiJSON(w, t, http.StatusOK)
}

func (s *Server) apiTourCalendar(w http.ResponseWriter, r *http.Request) {
	t, err := s.tours.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		apiFail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="tour-`+t.ID+`.ics"`)
	if _, err := w.Write([]byte(tour.Calendar(t))); err != nil {
		slog.Error("writing calendar", "err", err)
	}
}

// Notification settings

func (s *Server) apiGetNotify(w http.ResponseWriter, r *http.Request) {
	settings, err := s.settings.Load()
	if err != nil {
		apiFail(w, r, err)
		return
	}
	apiJSON(w, settings, http.StatusOK)
}

func (s *Server) apiPutNotify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Twilio *notify.TwilioSettings `json:"twilio"`
		Email  *notify.EmailSettings  `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		apiFail(w, r, err)
		return
	}
	if req.Twilio == nil && req.Email == nil {
		apiError(w, "twilio or email settings required", http.StatusBadRequest)
		return
	}
	if req.Twilio != nil {
		if err := s.settings.SaveTwilio(*req.Twilio); err != nil {
			apiFail(w, r, err)
			return
		}
	}
	if req.Email != nil {
		if err := s.settings.SaveEmail(*req.Email); err != nil {
			apiFail(w, r, err)
			return
		}
	}
	slog.Info("notification settings updated", "by", auth.EmailFrom(r.Context()))
	s.apiGetNotify(w, r)
}
