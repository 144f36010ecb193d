package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/alimatrix/alimatrix/internal/form"
	"github.com/alimatrix/alimatrix/internal/services"
)

const csrfHeader = "X-CSRF-Token"

type submitBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      string `json:"id"`
}

// POST /api/submissions
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var data form.FormData
	if err := decode(w, r, &data); err != nil || data == nil {
		h.writeError(w, http.StatusBadRequest, msgBadRequest, nil)
		return
	}
	res, err := h.submissions.Submit(r.Context(), services.SubmitRequest{
		Data:     data,
		Token:    r.Header.Get(csrfHeader),
		ClientID: clientID(r),
	})
	if err != nil {
		h.submitFailed(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, submitBody{Success: true, Message: msgSubmitted, ID: res.ID})
}

// submitFailed writes the response for a refused submission.
func (h *Handler) submitFailed(w http.ResponseWriter, err error) {
	var se *services.SubmitError
	if !errors.As(err, &se) {
		h.log.Error("submit", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, msgInternal, nil)
		return
	}
	st := statusFor(se.Kind)
	if se.RetryAfter > 0 {
		secs := int(math.Ceil(se.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	h.writeError(w, st.code, st.text, se.Fields)
}
