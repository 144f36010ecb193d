package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alimatrix/alimatrix/internal/db"
	"github.com/alimatrix/alimatrix/internal/drafts"
	"github.com/alimatrix/alimatrix/internal/security"
	"github.com/alimatrix/alimatrix/internal/services"
	"github.com/alimatrix/alimatrix/internal/validation"
	"github.com/alimatrix/alimatrix/internal/wizard"
)

const testKey = "s3cret"

type testServer struct {
	router http.Handler
	tokens *security.Tokens
}

func newTestServer(t *testing.T, rateLimit int) *testServer {
	t.Helper()
	gdb, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	v, err := validation.New()
	require.NoError(t, err)
	tokens := security.NewTokens(security.NewMemoryStore(), time.Hour, 1000, 500)
	limiter := security.NewLimiter(security.NewMemoryStore())
	svc := services.NewSubmissionService(gdb, tokens, limiter, v,
		services.Options{RateLimit: rateLimit, RateWindow: time.Minute}, nil, nil)
	store := drafts.NewStore(drafts.NewMemoryRepository(), nil)
	deb := security.NewDebouncer(security.NewMemoryStore(), 0)
	ctl := wizard.New(store, v, svc, deb, wizard.Options{SaveBackoff: time.Millisecond}, nil, nil)

	h := New(tokens, svc, ctl, Options{AdminAPIKey: testKey}, nil)

	r := chi.NewRouter()
	r.Get("/api/csrf-token", h.IssueToken)
	r.Post("/api/csrf-token", h.RegisterToken)
	r.Post("/api/submissions", h.Submit)
	r.Get("/api/submissions/{id}/qr.png", h.QR)
	r.Get("/api/wizard/steps/{step}", h.EnterStep)
	r.Post("/api/wizard/steps/{step}", h.AdvanceStep)
	r.Post("/api/wizard/steps/{step}/back", h.BackStep)
	r.Get("/api/wizard/draft", h.GetDraft)
	r.Delete("/api/wizard/draft", h.ResetDraft)
	r.Post("/api/wizard/submit", h.FinalizeDraft)
	r.With(h.RequireAdmin).Get("/api/admin/submissions", h.AdminList)
	r.With(h.RequireAdmin).Get("/api/admin/submissions.csv", h.AdminExportCSV)
	return &testServer{router: r, tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, path string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "10.0.0.1:5555"
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) token(t *testing.T) string {
	t.Helper()
	tok, err := s.tokens.Issue(context.Background())
	require.NoError(t, err)
	return tok
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func contact() map[string]any {
	return map[string]any{"contactEmail": "Jan@Example.pl", "zgodaPrzetwarzanie": true, "zgodaKontakt": true, "notHuman": ""}
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestCSRFToken(t *testing.T) {
	s := newTestServer(t, 5)

	rec := s.do(t, http.MethodGet, "/api/csrf-token", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tok, _ := decodeBody(t, rec)["token"].(string)
	assert.True(t, security.WellFormed(tok))

	own, err := security.GenerateToken()
	require.NoError(t, err)
	rec = s.do(t, http.MethodPost, "/api/csrf-token", map[string]string{"token": own}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/csrf-token", map[string]string{"token": "not-hex"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/csrf-token", map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmit_Created(t *testing.T) {
	s := newTestServer(t, 5)
	rec := s.do(t, http.MethodPost, "/api/submissions", contact(), map[string]string{csrfHeader: s.token(t)})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, msgSubmitted, body["message"])
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)

	rec = s.do(t, http.MethodGet, "/api/submissions/"+id+"/qr.png", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = s.do(t, http.MethodPost, "/api/submissions", contact(), map[string]string{csrfHeader: s.token(t)})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSubmit_StatusCodes(t *testing.T) {
	s := newTestServer(t, 5)

	rec := s.do(t, http.MethodPost, "/api/submissions", contact(), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/submissions", contact(), map[string]string{csrfHeader: strings.Repeat("ab", 32)})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	bad := contact()
	bad["contactEmail"] = "nope"
	rec = s.do(t, http.MethodPost, "/api/submissions", bad, map[string]string{csrfHeader: s.token(t)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errs, _ := decodeBody(t, rec)["errors"].(map[string]any)
	assert.Contains(t, errs, "contactEmail")

	req := httptest.NewRequest(http.MethodPost, "/api/submissions", strings.NewReader("{"))
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSubmit_RateLimitedHasRetryAfter(t *testing.T) {
	s := newTestServer(t, 1)
	s.do(t, http.MethodPost, "/api/submissions", contact(), map[string]string{csrfHeader: s.token(t)})

	rec := s.do(t, http.MethodPost, "/api/submissions", contact(), map[string]string{csrfHeader: s.token(t)})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestQR_UnknownID(t *testing.T) {
	s := newTestServer(t, 5)
	rec := s.do(t, http.MethodGet, "/api/submissions/7a1d0d2e-4b8f-4f7e-9d43-2c5c7a0e1b11/qr.png", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/submissions/xyz/qr.png", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWizard_ShortPathFlow(t *testing.T) {
	s := newTestServer(t, 5)

	rec := s.do(t, http.MethodGet, "/api/wizard/steps/kontakt", nil, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/api/wizard/steps/wybor-sciezki", rec.Header().Get("Location"))
	cookie := rec.Result().Cookies()
	require.Len(t, cookie, 1)
	assert.Equal(t, draftCookie, cookie[0].Name)
	hdr := map[string]string{"Cookie": draftCookie + "=" + cookie[0].Value}

	rec = s.do(t, http.MethodPost, "/api/wizard/steps/wybor-sciezki", map[string]any{"sciezkaWybor": "bogus"}, hdr)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/wizard/steps/wybor-sciezki", map[string]any{"sciezkaWybor": "nieustalone"}, hdr)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "kontakt", body["next"])
	assert.Equal(t, true, body["scrollToTop"])

	rec = s.do(t, http.MethodPost, "/api/wizard/steps/kontakt/back", nil, hdr)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "wybor-sciezki", decodeBody(t, rec)["prev"])

	rec = s.do(t, http.MethodPost, "/api/wizard/steps/kontakt", contact(), hdr)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, decodeBody(t, rec)["done"])

	rec = s.do(t, http.MethodGet, "/api/wizard/draft", nil, hdr)
	require.Equal(t, http.StatusOK, rec.Code)
	data, _ := decodeBody(t, rec)["formData"].(map[string]any)
	assert.Equal(t, "nieustalone", data["sciezkaWybor"])

	// the token is required for the final step too
	rec = s.do(t, http.MethodPost, "/api/wizard/submit", nil, hdr)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	withToken := map[string]string{"Cookie": hdr["Cookie"], csrfHeader: s.token(t)}
	rec = s.do(t, http.MethodPost, "/api/wizard/submit", nil, withToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/wizard/draft", nil, hdr)
	data, _ = decodeBody(t, rec)["formData"].(map[string]any)
	assert.Empty(t, data)
}

func TestWizard_ResetDraft(t *testing.T) {
	s := newTestServer(t, 5)
	rec := s.do(t, http.MethodPost, "/api/wizard/steps/wybor-sciezki", map[string]any{"sciezkaWybor": "nieustalone"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	hdr := map[string]string{"Cookie": draftCookie + "=" + rec.Result().Cookies()[0].Value}

	rec = s.do(t, http.MethodDelete, "/api/wizard/draft", nil, hdr)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/wizard/steps/kontakt", nil, hdr)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestAdmin_RequiresKey(t *testing.T) {
	s := newTestServer(t, 5)
	rec := s.do(t, http.MethodGet, "/api/admin/submissions", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/admin/submissions", nil, map[string]string{apiKeyHeader: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdmin_ListAndExport(t *testing.T) {
	s := newTestServer(t, 5)
	rec := s.do(t, http.MethodPost, "/api/submissions", contact(), map[string]string{csrfHeader: s.token(t)})
	require.Equal(t, http.StatusCreated, rec.Code)
	admin := map[string]string{apiKeyHeader: testKey}

	rec = s.do(t, http.MethodGet, "/api/admin/submissions?limit=10", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 1, body["total"])
	items, _ := body["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "jan@example.pl", items[0].(map[string]any)["email"])
	assert.EqualValues(t, 10, body["limit"])

	rec = s.do(t, http.MethodGet, "/api/admin/submissions?limit=9999&offset=-1", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.EqualValues(t, 50, body["limit"])
	assert.EqualValues(t, 0, body["offset"])

	rec = s.do(t, http.MethodGet, "/api/admin/submissions.csv", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ID,Created,Email"))
	assert.Contains(t, lines[1], "jan@example.pl")
}

func TestWizard_FinalizeWithTrapFilledStoresNothing(t *testing.T) {
	s := newTestServer(t, 5)
	rec := s.do(t, http.MethodPost, "/api/wizard/steps/wybor-sciezki", map[string]any{"sciezkaWybor": "nieustalone"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	hdr := map[string]string{"Cookie": draftCookie + "=" + rec.Result().Cookies()[0].Value}

	rec = s.do(t, http.MethodPost, "/api/wizard/steps/kontakt", contact(), hdr)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	hdr[csrfHeader] = s.token(t)
	rec = s.do(t, http.MethodPost, "/api/wizard/submit", map[string]string{"notHuman": "spam"}, hdr)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decodeBody(t, rec)["id"])

	rec = s.do(t, http.MethodGet, "/api/admin/submissions", nil, map[string]string{apiKeyHeader: testKey})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decodeBody(t, rec)["total"])
}

func TestWizard_FinalizeRejectsMalformedBody(t *testing.T) {
	s := newTestServer(t, 5)
	req := httptest.NewRequest(http.MethodPost, "/api/wizard/submit", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
