package http

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/mkrupp/homecase-imagekv/internal/infra/logging"
)

// RescueingMiddleware recovers from panics in handlers, logs them with the stack trace and
// answers 500 unless the response was already started. http.ErrAbortHandler is re-raised.
func RescueingMiddleware(next http.Handler, log logging.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec, ok := w.(*ResponseRecorder)
		if !ok {
			rec = NewResponseRecorder(w)
		}

		defer func() {
			p := recover()
			if p == nil {
				return
			}

			if p == http.ErrAbortHandler { //nolint:errorlint,err113
				panic(p)
			}

			log.ErrorContext(r.Context(), "request panic",
				slog.Group("http", "method", r.Method, "uri", r.RequestURI),
				slog.Group("error", "panic", p, "stack", string(debug.Stack())),
			)

			if !rec.WroteHeader() {
				http.Error(rec, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(rec, r)
	})
}
