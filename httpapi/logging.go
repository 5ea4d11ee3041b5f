package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/jonwraymond/tokenauth/observe"
)

// requestLogger logs one line per request. Headers and bodies are never
// logged, so credentials and tokens stay out of the logs.
func requestLogger(logger observe.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []observe.Field{
				{Key: "request_id", Value: middleware.GetReqID(r.Context())},
				{Key: "method", Value: r.Method},
				{Key: "path", Value: r.URL.Path},
				{Key: "status", Value: status},
				{Key: "bytes", Value: ww.BytesWritten()},
				{Key: "remote", Value: r.RemoteAddr},
				{Key: "duration_ms", Value: float64(time.Since(start).Microseconds()) / 1000},
			}
			if status >= http.StatusInternalServerError {
				logger.Error(r.Context(), "http request", fields...)
				return
			}
			logger.Info(r.Context(), "http request", fields...)
		})
	}
}
