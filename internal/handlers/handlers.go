package handlers

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/alimatrix/alimatrix/internal/security"
	"github.com/alimatrix/alimatrix/internal/services"
	"github.com/alimatrix/alimatrix/internal/wizard"
)

const maxBody = 1 << 20

// Handler serves the JSON API.
type Handler struct {
	tokens      *security.Tokens
	submissions *services.SubmissionService
	wizard      *wizard.Controller
	adminKey    string
	secure      bool
	log         *zap.Logger
}

type Options struct {
	AdminAPIKey string

	// SecureCookies marks the draft cookie Secure.
	SecureCookies bool
}

func New(
	tokens *security.Tokens,
	submissions *services.SubmissionService,
	wiz *wizard.Controller,
	opts Options,
	log *zap.Logger,
) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		tokens:      tokens,
		submissions: submissions,
		wizard:      wiz,
		adminKey:    opts.AdminAPIKey,
		secure:      opts.SecureCookies,
		log:         log,
	}
}

// GET /healthz
func Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn("encode response", zap.Error(err))
	}
}

type errorBody struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string, fields map[string]string) {
	h.writeJSON(w, status, errorBody{Message: msg, Errors: fields})
}

// decode reads a JSON object body into v.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after JSON body")
	}
	return nil
}

// clientID is the caller's address as set by the RealIP middleware, without
// the port.
func clientID(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
