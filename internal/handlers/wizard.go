package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alimatrix/alimatrix/internal/form"
	"github.com/alimatrix/alimatrix/internal/wizard"
)

const (
	draftCookie    = "alimatrix_draft"
	draftCookieTTL = 30 * 24 * time.Hour
	stepsPath      = "/api/wizard/steps/"
)

// session returns the draft session id, issuing a new cookie when the
// request has none.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(draftCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}
	sid := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     draftCookie,
		Value:    sid,
		Path:     "/api/wizard",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(draftCookieTTL),
	})
	return sid
}

func stepParam(r *http.Request) form.StepID {
	return form.StepID(chi.URLParam(r, "step"))
}

type redirectBody struct {
	Redirect form.StepID `json:"redirect"`
}

func (h *Handler) redirect(w http.ResponseWriter, to form.StepID) {
	w.Header().Set("Location", stepsPath+string(to))
	h.writeJSON(w, http.StatusSeeOther, redirectBody{Redirect: to})
}

// wizardFailed maps controller errors to responses.
func (h *Handler) wizardFailed(w http.ResponseWriter, err error) {
	var (
		re *wizard.RedirectError
		ve *wizard.ValidationError
		se *wizard.SaveError
	)
	switch {
	case errors.As(err, &re):
		h.redirect(w, re.To)
	case errors.As(err, &ve):
		h.writeError(w, http.StatusBadRequest, msgInvalidStep, ve.Errors)
	case errors.As(err, &se):
		h.log.Error("draft save", zap.Int("attempts", se.Attempts), zap.Error(se.Err))
		h.writeError(w, http.StatusServiceUnavailable, msgSaveFailed, nil)
	default:
		h.submitFailed(w, err)
	}
}

// GET /api/wizard/steps/{step}
func (h *Handler) EnterStep(w http.ResponseWriter, r *http.Request) {
	sid := h.session(w, r)
	v, err := h.wizard.Enter(r.Context(), sid, stepParam(r))
	if err != nil {
		h.wizardFailed(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, v)
}

// POST /api/wizard/steps/{step}
func (h *Handler) AdvanceStep(w http.ResponseWriter, r *http.Request) {
	var answers form.FormData
	if err := decode(w, r, &answers); err != nil {
		h.writeError(w, http.StatusBadRequest, msgBadRequest, nil)
		return
	}
	if answers == nil {
		answers = form.FormData{}
	}
	sid := h.session(w, r)
	out, err := h.wizard.Advance(r.Context(), sid, stepParam(r), answers)
	if err != nil {
		h.wizardFailed(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, out)
}

// POST /api/wizard/steps/{step}/back
func (h *Handler) BackStep(w http.ResponseWriter, r *http.Request) {
	sid := h.session(w, r)
	prev, err := h.wizard.Back(r.Context(), sid, stepParam(r))
	if err != nil {
		h.wizardFailed(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"prev": prev, "scrollToTop": true})
}

// GET /api/wizard/draft
func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	sid := h.session(w, r)
	d, err := h.wizard.Draft(r.Context(), sid)
	if err != nil {
		h.log.Error("read draft", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, msgInternal, nil)
		return
	}
	h.writeJSON(w, http.StatusOK, d)
}

// DELETE /api/wizard/draft
func (h *Handler) ResetDraft(w http.ResponseWriter, r *http.Request) {
	sid := h.session(w, r)
	if err := h.wizard.Reset(r.Context(), sid); err != nil {
		h.log.Error("reset draft", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, msgInternal, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type finalizeBody struct {
	NotHuman string `json:"notHuman"`
}

// POST /api/wizard/submit with an optional {notHuman} body.
func (h *Handler) FinalizeDraft(w http.ResponseWriter, r *http.Request) {
	var body finalizeBody
	if err := decode(w, r, &body); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, msgBadRequest, nil)
		return
	}
	sid := h.session(w, r)
	res, err := h.wizard.Finalize(r.Context(), sid, wizard.FinalizeRequest{
		Token:    r.Header.Get(csrfHeader),
		ClientID: clientID(r),
		Honeypot: body.NotHuman,
	})
	if err != nil {
		h.wizardFailed(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, submitBody{Success: true, Message: msgSubmitted, ID: res.ID})
}
