package handlers

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/alimatrix/alimatrix/internal/security"
)

type tokenBody struct {
	Token string `json:"token"`
}

// GET /api/csrf-token
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	tok, err := h.tokens.Issue(r.Context())
	if err != nil {
		h.log.Error("issue csrf token", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, msgInternal, nil)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	h.writeJSON(w, http.StatusOK, tokenBody{Token: tok})
}

// POST /api/csrf-token registers a token generated by the client.
func (h *Handler) RegisterToken(w http.ResponseWriter, r *http.Request) {
	var body tokenBody
	if err := decode(w, r, &body); err != nil {
		h.writeError(w, http.StatusBadRequest, msgBadRequest, nil)
		return
	}
	tok := strings.TrimSpace(body.Token)
	if tok == "" {
		h.writeError(w, http.StatusBadRequest, msgBadRequest, nil)
		return
	}
	if err := h.tokens.Register(r.Context(), tok); err != nil {
		if errors.Is(err, security.ErrMalformedToken) {
			h.writeError(w, http.StatusBadRequest, msgBadRequest, nil)
			return
		}
		h.log.Error("register csrf token", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, msgInternal, nil)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
