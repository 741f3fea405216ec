package middleware

import (
	"net/http"
	"slices"
	"strings"
	"time"
)

// Path segment after any of these carries a one-time token
var tokenPathSegments = []string{"confirm", "done"}

const redacted = "REDACTED"

type logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

type logData struct {
	responseStatus int
	responseSize   int
}

type logWriter struct {
	http.ResponseWriter
	data        logData
	wroteHeader bool
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.wroteHeader = true
	size, err := w.ResponseWriter.Write(p)
	w.data.responseSize += size
	return size, err
}

func (w *logWriter) WriteHeader(statusCode int) {
	w.ResponseWriter.WriteHeader(statusCode)
	if !w.wroteHeader {
		w.data.responseStatus = statusCode
		w.wroteHeader = true
	}
}

// LoggerMiddleware logs every request, server errors are logged with error level
func LoggerMiddleware(l logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			lw := &logWriter{
				ResponseWriter: w,
				data:           logData{responseStatus: http.StatusOK, responseSize: 0},
			}

			next.ServeHTTP(lw, r)

			log := l.Info
			if lw.data.responseStatus >= http.StatusInternalServerError {
				log = l.Error
			}

			log(
				"http request served",
				"method", r.Method,
				"uri", redactURI(r),
				"duration", time.Since(start),
				"status", lw.data.responseStatus,
				"size", lw.data.responseSize,
			)
		})
	}
}

// Request uri with token path segments replaced, tokens are sent in the link path
func redactURI(r *http.Request) string {
	segments := strings.Split(r.URL.EscapedPath(), "/")
	for i := 1; i < len(segments); i++ {
		if segments[i] != "" && slices.Contains(tokenPathSegments, segments[i-1]) {
			segments[i] = redacted
		}
	}

	uri := strings.Join(segments, "/")
	if r.URL.RawQuery != "" {
		uri += "?" + r.URL.RawQuery
	}
	return uri
}
