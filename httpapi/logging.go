package httpapi

import (
	"net/http"
	"strings"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/tabstrip/internal/identity"
	"pkt.systems/tabstrip/internal/logx"
	"pkt.systems/tabstrip/schema"
)

type responseRecorder struct {
	status int
	bytes  int64
	writer http.ResponseWriter
}

func (r *responseRecorder) Header() http.Header {
	return r.writer.Header()
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.writer.WriteHeader(status)
}

func (r *responseRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.writer.Write(p)
	r.bytes += int64(n)
	return n, err
}

func (r *responseRecorder) Flush() {
	if f, ok := r.writer.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *responseRecorder) streaming() bool {
	return strings.HasPrefix(r.writer.Header().Get("Content-Type"), "text/event-stream")
}

type sessionLookupFunc func(*http.Request) (id schema.IdentityID, sessionID string)

// withRequestLogging logs one line per request. A known identity is attached
// to the request context so service logs carry it exactly once.
func withRequestLogging(next http.Handler, lookup sessionLookupFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		var id schema.IdentityID
		var sessionID string
		if lookup != nil {
			id, sessionID = lookup(r)
		}
		logger := pslog.Ctx(r.Context()).With("remote", clientIP(r))
		if sessionID != "" {
			logger = logger.With("http_session", sessionID)
		}
		ctx := pslog.ContextWithLogger(r.Context(), logger)
		if id != "" {
			logger = logger.With("identity", id, "anonymous", identity.IsAnonymous(id))
			ctx = logx.ContextWithIdentityLogger(r.Context(), logger, id)
		}

		rec := &responseRecorder{writer: w}
		next.ServeHTTP(rec, r.WithContext(ctx))

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		fields := []any{"method", r.Method, "path", r.URL.Path, "status", status, "bytes", rec.bytes, "duration_ms", time.Since(start).Milliseconds()}
		if width := r.URL.Query().Get("width"); width != "" {
			fields = append(fields, "width", width)
		}
		switch {
		case rec.streaming():
			logger.Info("http stream closed", fields...)
		case status >= http.StatusInternalServerError:
			logger.Warn("http request failed", fields...)
		default:
			logger.Info("http request", fields...)
		}
		logger.Debug("http request details", "ua", r.UserAgent(), "query", r.URL.RawQuery)
	})
}

func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	return r.RemoteAddr
}
