package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// GET /api/admin/submissions?limit=&offset=
func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	page, err := h.submissions.List(r.Context(), limit, offset)
	if err != nil {
		h.log.Error("admin list", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, msgInternal, nil)
		return
	}
	h.writeJSON(w, http.StatusOK, page)
}
