package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mkrupp/homecase-imagekv/internal/infra/logging"
)

// ResponseRecorder wraps http.ResponseWriter and records what was sent.
type ResponseRecorder struct {
	http.ResponseWriter

	StatusCode  int
	BytesSent   int64
	wroteHeader bool
}

// NewResponseRecorder wraps w. The status defaults to 200 until a header is written.
func NewResponseRecorder(w http.ResponseWriter) *ResponseRecorder {
	return &ResponseRecorder{ResponseWriter: w, StatusCode: http.StatusOK, BytesSent: 0, wroteHeader: false}
}

func (w *ResponseRecorder) WriteHeader(code int) {
	if !w.wroteHeader {
		w.StatusCode = code
		w.wroteHeader = true
	}

	w.ResponseWriter.WriteHeader(code)
}

func (w *ResponseRecorder) Write(b []byte) (int, error) {
	w.wroteHeader = true

	n, err := w.ResponseWriter.Write(b)
	w.BytesSent += int64(n)

	if err != nil {
		return n, fmt.Errorf("write: %w", err)
	}

	return n, nil
}

// WroteHeader reports whether the response has been started.
func (w *ResponseRecorder) WroteHeader() bool {
	return w.wroteHeader
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *ResponseRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// LoggingMiddleware logs every request once it has been served, at a level chosen by status:
// ERROR for 5xx, WARN for 4xx and DEBUG otherwise.
func LoggingMiddleware(next http.Handler, log logging.Logger) http.Handler {
	//nolint:varnamelen
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := NewResponseRecorder(w)

		next.ServeHTTP(rec, r)

		level := logging.LevelDebug

		switch {
		case rec.StatusCode >= http.StatusInternalServerError:
			level = logging.LevelError
		case rec.StatusCode >= http.StatusBadRequest:
			level = logging.LevelWarn
		}

		log.Log(r.Context(), level, "request served", slog.Group("http",
			"method", r.Method,
			"uri", r.RequestURI,
			"status", rec.StatusCode,
			"bytes", rec.BytesSent,
			"elapsed", time.Since(start),
		))
	})
}
