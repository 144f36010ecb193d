package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/alimatrix/alimatrix/internal/handlers"
	"github.com/alimatrix/alimatrix/internal/metrics"
)

func Router(h *handlers.Handler, m *metrics.Metrics, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handlers.Health)
	r.Handle("/metrics", m.Handler())

	r.Route("/api", func(ar chi.Router) {
		ar.Get("/csrf-token", h.IssueToken)
		ar.Post("/csrf-token", h.RegisterToken)

		ar.Post("/submissions", h.Submit)
		ar.Get("/submissions/{id}/qr.png", h.QR)

		// Wizard, keyed by the draft session cookie
		ar.Route("/wizard", func(wr chi.Router) {
			wr.Get("/steps/{step}", h.EnterStep)
			wr.Post("/steps/{step}", h.AdvanceStep)
			wr.Post("/steps/{step}/back", h.BackStep)
			wr.Get("/draft", h.GetDraft)
			wr.Delete("/draft", h.ResetDraft)
			wr.Post("/submit", h.FinalizeDraft)
		})

		ar.Group(func(ag chi.Router) {
			ag.Use(h.RequireAdmin)
			ag.Get("/admin/submissions", h.AdminList)
			ag.Get("/admin/submissions.csv", h.AdminExportCSV)
		})
	})

	return r
}

// requestLogger logs one line per request with zap.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("took", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
