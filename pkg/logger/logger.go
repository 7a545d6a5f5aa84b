package logger

import (
	"net/http"
	"time"
)

// HTTPLogger logs one line per served request and attaches request-scoped
// fields (request id, method, path) to the request context logger.
func HTTPLogger(l Logger, requestID func(r *http.Request) string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx := l.WithFields(r.Context(),
				"request_id", requestID(r),
				"method", r.Method,
				"path", r.URL.Path,
			)

			// Wrap response writer to capture status code
			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(ww, r.WithContext(ctx))

			l.Debugf(ctx, "HTTP request served status=%d duration_ms=%d remote_addr=%s user_agent=%q",
				ww.statusCode,
				time.Since(start).Milliseconds(),
				r.RemoteAddr,
				r.UserAgent(),
			)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming origin responses working through the proxy.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
