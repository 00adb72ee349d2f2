package web

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/evcraddock/showinghive/internal/auth"
)

// userHandlers manages authorized users (admin-only).
type userHandlers struct {
	users *auth.UserStore
}

func (h *userHandlers) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List()
	if err != nil {
		apiFail(w, r, err)
		return
	}
	if users == nil {
		users = []*auth.User{}
	}
	apiJSON(w, users, http.StatusOK)
}

func (h *userHandlers) addUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string    `json:"email"`
		Name  string    `json:"name"`
		Role  auth.Role `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		apiFail(w, r, err)
		return
	}

	user, err := h.users.Add(req.Email, req.Name, req.Role)
	if err != nil {
		apiFail(w, r, err)
		return
	}

	apiJSON(w, user, http.StatusCreated)
}

func (h *userHandlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		apiError(w, "invalid user ID", http.StatusBadRequest)
		return
	}

	if err := h.users.Delete(id); err != nil {
		apiFail(w, r, err)
		return
	}

	apiJSON(w, map[string]interface{}{"id": id, "deleted": true}, http.StatusOK)
}
