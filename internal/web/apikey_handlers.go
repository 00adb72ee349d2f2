package web

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/evcraddock/showinghive/internal/auth"
)

// apikeyHandlers manages the caller's API keys from the web UI.
type apikeyHandlers struct {
	apiKeys *auth.APIKeyStore
}

type apiKeyCreateResponse struct {
	Key    string       `json:"key"` // raw key, shown once
	APIKey *auth.APIKey `json:"api_key"`
}

func (h *apikeyHandlers) handleCreateKey(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &body); err != nil {
		apiFail(w, r, err)
		return
	}

	name := strings.TrimSpace(body.Name)
	if name == "" {
		name = "API Key"
	}

	rawKey, key, err := h.apiKeys.Create(name, auth.EmailFrom(r.Context()))
	if err != nil {
		apiFail(w, r, err)
		return
	}

	apiJSON(w, apiKeyCreateResponse{Key: rawKey, APIKey: key}, http.StatusCreated)
}

func (h *apikeyHandlers) handleListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.apiKeys.List(auth.EmailFrom(r.Context()))
	if err != nil {
		apiFail(w, r, err)
		return
	}
	apiJSON(w, keys, http.StatusOK)
}

func (h *apikeyHandlers) handleDeleteKey(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		apiError(w, "invalid key ID", http.StatusBadRequest)
		return
	}

	if err := h.apiKeys.Delete(id, auth.EmailFrom(r.Context())); err != nil {
		apiFail(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
