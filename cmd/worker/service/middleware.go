package service

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alphauslabs/verticalbuilder/internal/logfields"
)

// CORSMiddleware handles Cross-Origin Resource Sharing for the RPC endpoints.
func CORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o != "" {
			allowed[o] = true
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if allowed[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
				w.Header().Set("Access-Control-Expose-Headers", "Content-Type, Connect-Protocol-Version")
				w.Header().Set("Access-Control-Max-Age", "3600")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LoggingMiddleware logs every request and turns handler panics into a 500.
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logfields.OrDiscard(logger)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("HTTP handler panic",
						slog.Any("panic", rec),
						logfields.Method(r.Method),
						logfields.Path(r.URL.Path))
					if !wrapped.wroteHeader {
						http.Error(wrapped, "internal server error", http.StatusInternalServerError)
					}
				}
				logger.Info("HTTP request",
					logfields.Method(r.Method),
					logfields.Path(r.URL.Path),
					logfields.HTTPStatus(wrapped.statusCode),
					logfields.DurationMS(time.Since(start).Milliseconds()),
					logfields.RemoteAddr(r.RemoteAddr))
			}()

			next.ServeHTTP(wrapped, r)
		})
	}
}

// responseWriter captures status codes for logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Flush lets streaming RPC responses through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
